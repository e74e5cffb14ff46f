package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/guincho-facil/internal/database"
	"github.com/digkill/guincho-facil/internal/models"
)

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SubscriptionRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSubscriptionRepository(db *sql.DB, dialect database.Dialect) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, dialect: dialect}
}

const subscriptionColumns = `provider_id, plano, adesao_paga, trial_ativo, trial_corridas_restantes, corridas_usadas,
limite_corridas, mensalidade_atual, proxima_cobranca, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.ProviderSubscription, error) {
	var s models.ProviderSubscription
	var plan sql.NullString
	var paid, trial int
	var nextBilling sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(&s.ProviderID, &plan, &paid, &trial, &s.TrialRidesRemaining, &s.RidesUsed,
		&s.RideLimit, &s.MonthlyFee, &nextBilling, &s.StripeCustomerID, &s.StripeSubscriptionID,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if plan.Valid && plan.String != "" {
		name := models.PlanName(plan.String)
		s.Plan = &name
	}
	s.SignupPaid = paid != 0
	s.TrialActive = trial != 0
	if nextBilling.Valid {
		ts := time.Unix(nextBilling.Int64, 0).UTC()
		s.NextBillingAt = &ts
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

func getSubscription(ctx context.Context, q rowQuerier, providerID string) (*models.ProviderSubscription, error) {
	row := q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM provider_subscriptions WHERE provider_id = ?`, providerID)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return s, nil
}

// Get returns the stored record, or nil when the provider has none yet.
func (r *SubscriptionRepository) Get(ctx context.Context, providerID string) (*models.ProviderSubscription, error) {
	return getSubscription(ctx, r.db, providerID)
}

// ListAll returns every stored record keyed by provider id.
func (r *SubscriptionRepository) ListAll(ctx context.Context) (map[string]models.ProviderSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM provider_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.ProviderSubscription)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription list: %w", err)
		}
		out[s.ProviderID] = *s
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SubscriptionRepository) insertTrial(ctx context.Context, e execer, providerID string, now time.Time) (bool, error) {
	query := r.dialect.InsertIgnore() + ` INTO provider_subscriptions
(provider_id, adesao_paga, trial_ativo, trial_corridas_restantes, corridas_usadas, limite_corridas, mensalidade_atual, created_at, updated_at)
VALUES (?, 0, 1, ?, 0, 0, 0, ?, ?)`
	res, err := e.ExecContext(ctx, query, providerID, models.DefaultTrialRides, now.Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("insert trial subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trial rows affected: %w", err)
	}
	return affected > 0, nil
}

// InsertTrial creates the default trial record unless one exists. It reports whether
// a row was created.
func (r *SubscriptionRepository) InsertTrial(ctx context.Context, providerID string, now time.Time) (bool, error) {
	return r.insertTrial(ctx, r.db, providerID, now)
}

const consumeRideQuery = `
UPDATE provider_subscriptions
SET trial_corridas_restantes = CASE WHEN adesao_paga = 0 THEN trial_corridas_restantes - 1 ELSE trial_corridas_restantes END,
    corridas_usadas = corridas_usadas + 1,
    updated_at = ?
WHERE provider_id = ? AND (
    (adesao_paga = 0 AND trial_ativo = 1 AND trial_corridas_restantes > 0)
    OR (adesao_paga = 1 AND limite_corridas = ?)
    OR (adesao_paga = 1 AND limite_corridas > 0 AND corridas_usadas < limite_corridas)
)`

// ConsumeRide records one ride in a single guarded statement. The WHERE clause admits
// exactly the permitted states: an active unpaid trial with rides left, an unlimited
// paid plan, or a capped paid plan below its cap. It reports whether the ride was
// recorded; false leaves the row untouched.
func (r *SubscriptionRepository) ConsumeRide(ctx context.Context, providerID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, consumeRideQuery, now.Unix(), providerID, models.UnlimitedRides)
	if err != nil {
		return false, fmt.Errorf("consume ride: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ride rows affected: %w", err)
	}
	return affected > 0, nil
}

// ConsumeRideWithState runs the same guarded update while holding the row lock and
// returns the record the guard was evaluated against: the updated row when the ride was
// recorded, the untouched row when it was not. The record is nil when the provider has
// none.
func (r *SubscriptionRepository) ConsumeRideWithState(ctx context.Context, providerID string, now time.Time) (bool, *models.ProviderSubscription, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM provider_subscriptions WHERE provider_id = ?`+r.dialect.ForUpdate(), providerID)
	before, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("lock subscription: %w", err)
	}

	res, err := tx.ExecContext(ctx, consumeRideQuery, now.Unix(), providerID, models.UnlimitedRides)
	if err != nil {
		return false, nil, fmt.Errorf("consume ride: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("ride rows affected: %w", err)
	}

	state := before
	if affected > 0 {
		if state, err = getSubscription(ctx, tx, providerID); err != nil {
			return false, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("commit ride tx: %w", err)
	}
	return affected > 0, state, nil
}

// mutate applies an admin update as an upsert: the default row is created first when
// missing, then the update runs and the resulting record is read back, all in one
// transaction.
func (r *SubscriptionRepository) mutate(ctx context.Context, providerID string, now time.Time, query string, args ...any) (*models.ProviderSubscription, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.insertTrial(ctx, tx, providerID, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	sub, err := getSubscription(ctx, tx, providerID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoRecord
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription tx: %w", err)
	}
	return sub, nil
}

// ToggleTrial flips trial_ativo. Turning it on restores the default allotment, turning
// it off zeroes the remaining rides.
func (r *SubscriptionRepository) ToggleTrial(ctx context.Context, providerID string, now time.Time) (*models.ProviderSubscription, error) {
	// The allotment is assigned before the flag so both dialects read the old flag.
	const query = `
UPDATE provider_subscriptions
SET trial_corridas_restantes = CASE WHEN trial_ativo = 1 THEN 0 ELSE ? END,
    trial_ativo = 1 - trial_ativo,
    updated_at = ?
WHERE provider_id = ?`
	return r.mutate(ctx, providerID, now, query, models.DefaultTrialRides, now.Unix(), providerID)
}

// SetTrialRides forces the remaining allotment and marks the trial active.
func (r *SubscriptionRepository) SetTrialRides(ctx context.Context, providerID string, rides int, now time.Time) (*models.ProviderSubscription, error) {
	const query = `
UPDATE provider_subscriptions
SET trial_corridas_restantes = ?, trial_ativo = 1, updated_at = ?
WHERE provider_id = ?`
	return r.mutate(ctx, providerID, now, query, rides, now.Unix(), providerID)
}

// StripeRefs are external billing references; empty fields keep the stored value.
type StripeRefs struct {
	CustomerID     string
	SubscriptionID string
}

// ActivatePlan switches the provider to paid mode on plan, resets usage, schedules the
// next charge one cycle from now and clears the trial.
func (r *SubscriptionRepository) ActivatePlan(ctx context.Context, providerID string, plan models.Plan, refs StripeRefs, now time.Time) (*models.ProviderSubscription, error) {
	const query = `
UPDATE provider_subscriptions
SET plano = ?, adesao_paga = 1, limite_corridas = ?, mensalidade_atual = ?, corridas_usadas = 0,
    proxima_cobranca = ?, trial_ativo = 0, trial_corridas_restantes = 0,
    stripe_customer_id = COALESCE(NULLIF(?, ''), stripe_customer_id),
    stripe_subscription_id = COALESCE(NULLIF(?, ''), stripe_subscription_id),
    updated_at = ?
WHERE provider_id = ?`
	next := now.Add(models.BillingCycle).Unix()
	return r.mutate(ctx, providerID, now, query,
		string(plan.Name), plan.RideLimit, plan.MonthlyFee, next,
		refs.CustomerID, refs.SubscriptionID, now.Unix(), providerID)
}

// ResetRides zeroes the cycle usage counter only.
func (r *SubscriptionRepository) ResetRides(ctx context.Context, providerID string, now time.Time) (*models.ProviderSubscription, error) {
	const query = `UPDATE provider_subscriptions SET corridas_usadas = 0, updated_at = ? WHERE provider_id = ?`
	return r.mutate(ctx, providerID, now, query, now.Unix(), providerID)
}

// DeactivatePlan clears plan, fee, cap and the paid flag. The trial is not restored.
func (r *SubscriptionRepository) DeactivatePlan(ctx context.Context, providerID string, now time.Time) (*models.ProviderSubscription, error) {
	const query = `
UPDATE provider_subscriptions
SET plano = NULL, mensalidade_atual = 0, limite_corridas = 0, adesao_paga = 0, proxima_cobranca = NULL, updated_at = ?
WHERE provider_id = ?`
	return r.mutate(ctx, providerID, now, query, now.Unix(), providerID)
}

// FindByStripeSubscription returns the record bound to a Stripe subscription id.
func (r *SubscriptionRepository) FindByStripeSubscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM provider_subscriptions WHERE stripe_subscription_id = ?`, subscriptionID)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription by stripe id: %w", err)
	}
	return s, nil
}
