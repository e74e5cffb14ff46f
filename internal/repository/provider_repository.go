package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/guincho-facil/internal/models"
)

type ProviderRepository struct {
	db *sql.DB
}

func NewProviderRepository(db *sql.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

const providerColumns = `id, nome, whatsapp, slug, cidade, ativo, created_at`

func scanProvider(row interface{ Scan(...any) error }) (*models.Provider, error) {
	var p models.Provider
	var active int
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.WhatsApp, &p.Slug, &p.City, &active, &createdAt); err != nil {
		return nil, err
	}
	p.Active = active != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

func (r *ProviderRepository) findOne(ctx context.Context, query string, arg any) (*models.Provider, error) {
	p, err := scanProvider(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan provider: %w", err)
	}
	return p, nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	return r.findOne(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
}

func (r *ProviderRepository) FindByWhatsApp(ctx context.Context, whatsapp string) (*models.Provider, error) {
	return r.findOne(ctx, `SELECT `+providerColumns+` FROM providers WHERE whatsapp = ?`, whatsapp)
}

func (r *ProviderRepository) FindBySlug(ctx context.Context, slug string) (*models.Provider, error) {
	return r.findOne(ctx, `SELECT `+providerColumns+` FROM providers WHERE slug = ?`, slug)
}

func (r *ProviderRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM providers WHERE slug = ?`, slug)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check slug: %w", err)
	}
	return true, nil
}

func (r *ProviderRepository) Create(ctx context.Context, p *models.Provider) error {
	const query = `
INSERT INTO providers (id, nome, whatsapp, slug, cidade, ativo, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.WhatsApp, p.Slug, p.City, boolToInt(p.Active), p.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]models.Provider, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY created_at DESC, nome ASC`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider list: %w", err)
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
