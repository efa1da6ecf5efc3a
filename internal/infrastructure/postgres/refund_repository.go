package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/refund"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const refundColumns = `id, order_id, order_number, customer_name, original_amount, refund_amount,
	payment_method, reason, authorized_by, requested_by, status, requested_at,
	approved_by, approved_at, rejected_by, rejected_at, notes, completed_at,
	refund_method, transaction_id`

type RefundRepository struct {
	pool *pgxpool.Pool
}

func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) Create(ctx context.Context, req *domain.Request) error {
	q := `INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.pool.Exec(ctx, q,
		req.ID, req.OrderID, req.OrderNumber, req.CustomerName, req.OriginalAmount, req.RefundAmount,
		req.PaymentMethod, req.Reason, req.AuthorizedBy, req.RequestedBy, string(req.Status), req.RequestedAt,
		req.ApprovedBy, req.ApprovedAt, req.RejectedBy, req.RejectedAt, req.Notes, req.CompletedAt,
		string(req.RefundMethod), req.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert refund %s: %w", req.ID, err)
	}
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, req *domain.Request) error {
	q := `UPDATE refunds SET status = $2, approved_by = $3, approved_at = $4, rejected_by = $5,
		rejected_at = $6, notes = $7, completed_at = $8, refund_method = $9, transaction_id = $10
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		req.ID, string(req.Status), req.ApprovedBy, req.ApprovedAt, req.RejectedBy,
		req.RejectedAt, req.Notes, req.CompletedAt, string(req.RefundMethod), req.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update refund %s: %w", req.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RefundRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
	req, err := scanRefund(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get refund %s: %w", id, err)
	}
	return req, nil
}

func (r *RefundRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Request, error) {
	q, args := listRefundsQuery(f)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list refunds: %w", err)
	}
	defer rows.Close()

	var out []*domain.Request
	for rows.Next() {
		req, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan refund: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func listRefundsQuery(f domain.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + refundColumns + ` FROM refunds`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	return q + ` ORDER BY requested_at DESC, id DESC`, args
}

func scanRefund(row pgx.Row) (*domain.Request, error) {
	var (
		req          domain.Request
		status       string
		refundMethod string
	)
	err := row.Scan(
		&req.ID, &req.OrderID, &req.OrderNumber, &req.CustomerName, &req.OriginalAmount, &req.RefundAmount,
		&req.PaymentMethod, &req.Reason, &req.AuthorizedBy, &req.RequestedBy, &status, &req.RequestedAt,
		&req.ApprovedBy, &req.ApprovedAt, &req.RejectedBy, &req.RejectedAt, &req.Notes, &req.CompletedAt,
		&refundMethod, &req.TransactionID,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.Status(status)
	req.RefundMethod = domain.Method(refundMethod)
	return &req, nil
}
