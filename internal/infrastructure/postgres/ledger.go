package postgres

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/sales"
	"github.com/Zhima-Mochi/kitchen-ops/internal/domain/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionLog appends to transaction_logs. A replayed entry with a known id is
// ignored, so write-queue redelivery does not duplicate it.
type TransactionLog struct {
	pool *pgxpool.Pool
}

func NewTransactionLog(pool *pgxpool.Pool) *TransactionLog {
	return &TransactionLog{pool: pool}
}

func (l *TransactionLog) Append(ctx context.Context, e transaction.Log) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO transaction_logs
		(id, type, order_id, amount, status, logged_at, metadata, payment_method, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Type), e.OrderID, e.Amount, string(e.Status), e.Timestamp, meta, e.PaymentMethod, e.CustomerID,
	)
	if err != nil {
		return fmt.Errorf("postgres: append transaction log %s: %w", e.ID, err)
	}
	return nil
}

type SalesArchive struct {
	pool *pgxpool.Pool
}

func NewSalesArchive(pool *pgxpool.Pool) *SalesArchive {
	return &SalesArchive{pool: pool}
}

func (a *SalesArchive) Exists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sales_history WHERE order_number = $1)`, orderNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: sales lookup %s: %w", orderNumber, err)
	}
	return exists, nil
}

// Insert ignores a second archive of the same order number.
func (a *SalesArchive) Insert(ctx context.Context, r sales.Record) error {
	_, err := a.pool.Exec(ctx, `INSERT INTO sales_history
		(order_number, order_id, total, payment_method, item_count, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_number) DO NOTHING`,
		r.OrderNumber, r.OrderID, r.Total, r.PaymentMethod, r.ItemCount, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: archive %s: %w", r.OrderNumber, err)
	}
	return nil
}
