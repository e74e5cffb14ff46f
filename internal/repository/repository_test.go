package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/database"
	"github.com/digkill/guincho-facil/internal/database/databasetest"
	"github.com/digkill/guincho-facil/internal/models"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db            *sql.DB
	providers     *ProviderRepository
	subscriptions *SubscriptionRepository
	customization *CustomizationRepository
	payments      *PaymentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.New(t)
	return &fixture{
		db:            db,
		providers:     NewProviderRepository(db),
		subscriptions: NewSubscriptionRepository(db, database.SQLite),
		customization: NewCustomizationRepository(db, database.SQLite),
		payments:      NewPaymentRepository(db),
	}
}

func (f *fixture) provider(t *testing.T, slug, whatsapp string) *models.Provider {
	t.Helper()
	p := &models.Provider{
		ID:        uuid.NewString(),
		Name:      "Guincho " + slug,
		WhatsApp:  whatsapp,
		Slug:      slug,
		City:      "São Paulo",
		Active:    true,
		CreatedAt: fixedNow,
	}
	require.NoError(t, f.providers.Create(context.Background(), p))
	return p
}
