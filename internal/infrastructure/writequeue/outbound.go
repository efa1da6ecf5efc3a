package writequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/monitoring"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"
)

// Enqueuer is the part of Queue the outbound adapters need.
type Enqueuer interface {
	Enqueue(ctx context.Context, target, method string, payload any) (Entry, error)
}

// TransactionLog appends transaction logs through the queue so a payment or refund
// never waits on the transaction log API being reachable.
type TransactionLog struct {
	Queue Enqueuer
}

func (t TransactionLog) Append(ctx context.Context, l transaction.Log) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	_, err := t.Queue.Enqueue(ctx, transaction.Target, http.MethodPost, l)
	return err
}

// Alerts delivers monitoring alerts through the queue.
type Alerts struct {
	Queue Enqueuer
}

func (a Alerts) Alert(ctx context.Context, al monitoring.Alert) error {
	if al.Timestamp.IsZero() {
		al.Timestamp = time.Now().UTC()
	}
	_, err := a.Queue.Enqueue(ctx, monitoring.Target, http.MethodPost, al)
	return err
}

// DeliverTransactionLogs returns a Sender that decodes queued transaction logs and hands
// them to a local appender such as the Postgres ledger.
func DeliverTransactionLogs(a transaction.Appender) Sender {
	return SenderFunc(func(ctx context.Context, e Entry) error {
		var l transaction.Log
		if err := json.Unmarshal(e.Body, &l); err != nil {
			return fmt.Errorf("writequeue: decode transaction log %s: %w", e.ID, err)
		}
		if l.ID == "" {
			l.ID = e.ID
		}
		return a.Append(ctx, l)
	})
}

// DeliverAlerts returns a Sender that decodes queued alerts and hands them to a local alerter.
func DeliverAlerts(a monitoring.Alerter) Sender {
	return SenderFunc(func(ctx context.Context, e Entry) error {
		var al monitoring.Alert
		if err := json.Unmarshal(e.Body, &al); err != nil {
			return fmt.Errorf("writequeue: decode alert %s: %w", e.ID, err)
		}
		return a.Alert(ctx, al)
	})
}
