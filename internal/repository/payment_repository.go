package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/guincho-facil/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, provider_id, plano, provider, session_id, currency, amount, status, COALESCE(raw_payload, ''), created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	var plan, status string
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.ProviderID, &plan, &p.Provider, &p.SessionID, &p.Currency, &p.Amount, &status, &p.RawPayload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Plan = models.PlanName(plan)
	p.Status = models.PaymentStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	const query = `
INSERT INTO payments (provider_id, plano, provider, session_id, currency, amount, status, raw_payload, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = payment.CreatedAt
	res, err := r.db.ExecContext(ctx, query, payment.ProviderID, string(payment.Plan), payment.Provider, payment.SessionID,
		payment.Currency, payment.Amount, string(payment.Status), payment.RawPayload, payment.CreatedAt.Unix(), payment.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	payment.ID = id
	return nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, paymentID int64, status models.PaymentStatus, payload string) error {
	const query = `UPDATE payments SET status = ?, raw_payload = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(status), payload, time.Now().UTC().Unix(), paymentID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// MarkPaid flips a payment to paid once. It reports false when another caller already
// did, so plan activation runs a single time per checkout.
func (r *PaymentRepository) MarkPaid(ctx context.Context, paymentID int64, payload string) (bool, error) {
	const query = `UPDATE payments SET status = ?, raw_payload = ?, updated_at = ? WHERE id = ? AND status <> ?`
	res, err := r.db.ExecContext(ctx, query, string(models.PaymentPaid), payload, time.Now().UTC().Unix(), paymentID, string(models.PaymentPaid))
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *PaymentRepository) FindBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE session_id = ? LIMIT 1`, sessionID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

// LatestPending returns the newest checkout still waiting for confirmation.
func (r *PaymentRepository) LatestPending(ctx context.Context, providerID string) (*models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE provider_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, providerID, string(models.PaymentPending))
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pending payment: %w", err)
	}
	return p, nil
}
