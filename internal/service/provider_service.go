package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

const maxSlugAttempts = 50

type RegisterInput struct {
	Name     string
	WhatsApp string
	City     string
}

type ProviderService struct {
	log           *slog.Logger
	providers     *repository.ProviderRepository
	subscriptions *repository.SubscriptionRepository
	notifier      Notifier
	now           func() time.Time
}

func NewProviderService(log *slog.Logger, providers *repository.ProviderRepository, subscriptions *repository.SubscriptionRepository, notifier Notifier) *ProviderService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &ProviderService{
		log:           log,
		providers:     providers,
		subscriptions: subscriptions,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a provider with a unique slug and opens its trial.
func (s *ProviderService) Register(ctx context.Context, in RegisterInput) (*models.Provider, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("nome is required")
	}
	phone, err := NormalizeWhatsApp(in.WhatsApp)
	if err != nil {
		return nil, err
	}

	existing, err := s.providers.FindByWhatsApp(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateProvider
	}

	slug, err := s.uniqueSlug(ctx, Slugify(name))
	if err != nil {
		return nil, err
	}

	now := s.now()
	provider := &models.Provider{
		ID:        uuid.NewString(),
		Name:      name,
		WhatsApp:  phone,
		Slug:      slug,
		City:      strings.TrimSpace(in.City),
		Active:    true,
		CreatedAt: now,
	}
	if err := s.providers.Create(ctx, provider); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	if _, err := s.subscriptions.InsertTrial(ctx, provider.ID, now); err != nil {
		return nil, err
	}

	s.log.Info("provider registered", "provider_id", provider.ID, "slug", slug)
	text := fmt.Sprintf("Novo prestador cadastrado: %s (%s) - %s", provider.Name, provider.City, provider.Slug)
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Warn("notify registration", "err", err)
	}
	return provider, nil
}

// Get returns a provider by id.
func (s *ProviderService) Get(ctx context.Context, id string) (*models.Provider, error) {
	p, err := s.providers.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if p == nil {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// uniqueSlug returns base, or base-2, base-3 and so on, skipping reserved labels.
func (s *ProviderService) uniqueSlug(ctx context.Context, base string) (string, error) {
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		if reservedSlugs[candidate] {
			continue
		}
		taken, err := s.providers.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}
