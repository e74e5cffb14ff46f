package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/database"
	"github.com/digkill/guincho-facil/internal/database/databasetest"
	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type env struct {
	providers      *repository.ProviderRepository
	subscriptions  *repository.SubscriptionRepository
	customizations *repository.CustomizationRepository
	payments       *repository.PaymentRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := databasetest.New(t)
	return &env{
		providers:      repository.NewProviderRepository(db),
		subscriptions:  repository.NewSubscriptionRepository(db, database.SQLite),
		customizations: repository.NewCustomizationRepository(db, database.SQLite),
		payments:       repository.NewPaymentRepository(db),
	}
}

func (e *env) provider(t *testing.T, slug, whatsapp string) *models.Provider {
	t.Helper()
	p := &models.Provider{
		ID:        uuid.NewString(),
		Name:      "Guincho " + slug,
		WhatsApp:  whatsapp,
		Slug:      slug,
		City:      "Campinas",
		Active:    true,
		CreatedAt: fixedNow,
	}
	require.NoError(t, e.providers.Create(context.Background(), p))
	return p
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}
