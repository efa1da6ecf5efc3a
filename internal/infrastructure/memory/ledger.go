package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/monitoring"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"
)

// TransactionLog is an append-only in-memory transaction log.
type TransactionLog struct {
	mu   sync.RWMutex
	logs []transaction.Log
}

func NewTransactionLog() *TransactionLog { return &TransactionLog{} }

func (l *TransactionLog) Append(ctx context.Context, entry transaction.Log) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, entry)
	return nil
}

func (l *TransactionLog) Entries() []transaction.Log {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]transaction.Log(nil), l.logs...)
}

type SalesArchive struct {
	mu       sync.RWMutex
	byNumber map[string]sales.Record
	order    []string
}

func NewSalesArchive() *SalesArchive {
	return &SalesArchive{byNumber: make(map[string]sales.Record)}
}

func (a *SalesArchive) Exists(ctx context.Context, orderNumber string) (bool, error) {
	_ = ctx
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.byNumber[orderNumber]
	return ok, nil
}

func (a *SalesArchive) Insert(ctx context.Context, r sales.Record) error {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byNumber[r.OrderNumber]; !ok {
		a.order = append(a.order, r.OrderNumber)
	}
	a.byNumber[r.OrderNumber] = r
	return nil
}

func (a *SalesArchive) Records() []sales.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]sales.Record, 0, len(a.order))
	for _, n := range a.order {
		out = append(out, a.byNumber[n])
	}
	return out
}

// Alerts keeps monitoring alerts when no alert endpoint is configured.
type Alerts struct {
	mu     sync.RWMutex
	alerts []monitoring.Alert
}

func (a *Alerts) Alert(ctx context.Context, al monitoring.Alert) error {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
	return nil
}

func (a *Alerts) List() []monitoring.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]monitoring.Alert(nil), a.alerts...)
}
