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

type CustomizationRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewCustomizationRepository(db *sql.DB, dialect database.Dialect) *CustomizationRepository {
	return &CustomizationRepository{db: db, dialect: dialect}
}

const customizationColumns = `provider_id, logo_url, cor_primaria, cor_secundaria, nome_empresa, COALESCE(dominio_personalizado, ''), updated_at`

func scanCustomization(row interface{ Scan(...any) error }) (*models.ProviderCustomization, error) {
	var c models.ProviderCustomization
	var updatedAt int64
	if err := row.Scan(&c.ProviderID, &c.LogoURL, &c.PrimaryColor, &c.SecondaryColor, &c.CompanyName, &c.CustomDomain, &updatedAt); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

func getCustomization(ctx context.Context, q rowQuerier, query string, arg any) (*models.ProviderCustomization, error) {
	c, err := scanCustomization(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customization: %w", err)
	}
	return c, nil
}

func (r *CustomizationRepository) GetByProvider(ctx context.Context, providerID string) (*models.ProviderCustomization, error) {
	return getCustomization(ctx, r.db, `SELECT `+customizationColumns+` FROM provider_customizations WHERE provider_id = ?`, providerID)
}

// FindByCustomDomain matches the stored custom domain against a full hostname.
func (r *CustomizationRepository) FindByCustomDomain(ctx context.Context, hostname string) (*models.ProviderCustomization, error) {
	return getCustomization(ctx, r.db, `SELECT `+customizationColumns+` FROM provider_customizations WHERE dominio_personalizado = ?`, hostname)
}

func (r *CustomizationRepository) ensure(ctx context.Context, tx *sql.Tx, providerID string, now time.Time) error {
	query := r.dialect.InsertIgnore() + ` INTO provider_customizations (provider_id, updated_at) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, query, providerID, now.Unix()); err != nil {
		return fmt.Errorf("insert customization: %w", err)
	}
	return nil
}

func (r *CustomizationRepository) upsert(ctx context.Context, providerID string, now time.Time, query string, args ...any) (*models.ProviderCustomization, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.ensure(ctx, tx, providerID, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update customization: %w", err)
	}
	c, err := getCustomization(ctx, tx, `SELECT `+customizationColumns+` FROM provider_customizations WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoRecord
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit customization tx: %w", err)
	}
	return c, nil
}

// Upsert stores colors, company name and custom domain. The logo is left alone.
func (r *CustomizationRepository) Upsert(ctx context.Context, c models.ProviderCustomization, now time.Time) (*models.ProviderCustomization, error) {
	const query = `
UPDATE provider_customizations
SET cor_primaria = ?, cor_secundaria = ?, nome_empresa = ?, dominio_personalizado = NULLIF(?, ''), updated_at = ?
WHERE provider_id = ?`
	return r.upsert(ctx, c.ProviderID, now, query, c.PrimaryColor, c.SecondaryColor, c.CompanyName, c.CustomDomain, now.Unix(), c.ProviderID)
}

func (r *CustomizationRepository) SetLogo(ctx context.Context, providerID, logoURL string, now time.Time) (*models.ProviderCustomization, error) {
	const query = `UPDATE provider_customizations SET logo_url = ?, updated_at = ? WHERE provider_id = ?`
	return r.upsert(ctx, providerID, now, query, logoURL, now.Unix(), providerID)
}
