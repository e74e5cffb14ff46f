package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

// ProviderLookup identifies a provider either by id or by WhatsApp handle. When both are
// set the id wins.
type ProviderLookup struct {
	ProviderID string
	WhatsApp   string
}

// resolveProvider returns ErrProviderNotFound when nothing matches.
func resolveProvider(ctx context.Context, providers *repository.ProviderRepository, lookup ProviderLookup) (*models.Provider, error) {
	var (
		provider *models.Provider
		err      error
	)
	switch {
	case strings.TrimSpace(lookup.ProviderID) != "":
		provider, err = providers.GetByID(ctx, strings.TrimSpace(lookup.ProviderID))
	case strings.TrimSpace(lookup.WhatsApp) != "":
		phone, normErr := NormalizeWhatsApp(lookup.WhatsApp)
		if normErr != nil {
			return nil, normErr
		}
		provider, err = providers.FindByWhatsApp(ctx, phone)
	default:
		return nil, validationError("provider_id or whatsapp is required")
	}
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// SubscriptionSnapshot is the read model served to the provider dashboard.
type SubscriptionSnapshot struct {
	Found              bool                          `json:"found"`
	Provider           *models.Provider              `json:"provider,omitempty"`
	Subscription       *models.ProviderSubscription  `json:"subscription,omitempty"`
	Customization      *models.ProviderCustomization `json:"customization"`
	NeedsPlanSelection bool                          `json:"needs_plan_selection"`
}

type SubscriptionService struct {
	providers      *repository.ProviderRepository
	subscriptions  *repository.SubscriptionRepository
	customizations *repository.CustomizationRepository
}

func NewSubscriptionService(providers *repository.ProviderRepository, subscriptions *repository.SubscriptionRepository, customizations *repository.CustomizationRepository) *SubscriptionService {
	return &SubscriptionService{providers: providers, subscriptions: subscriptions, customizations: customizations}
}

// Current returns the metering state of a provider, falling back to the default trial
// when no record exists. It never writes.
func (s *SubscriptionService) Current(ctx context.Context, providerID string) (models.ProviderSubscription, error) {
	sub, err := s.subscriptions.Get(ctx, providerID)
	if err != nil {
		return models.ProviderSubscription{}, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return models.DefaultSubscription(providerID), nil
	}
	return *sub, nil
}

// Snapshot looks the provider up and returns its subscription, customization and
// whether it has to pick a plan. An unknown provider yields Found=false, not an error.
func (s *SubscriptionService) Snapshot(ctx context.Context, lookup ProviderLookup) (*SubscriptionSnapshot, error) {
	provider, err := resolveProvider(ctx, s.providers, lookup)
	if errors.Is(err, ErrProviderNotFound) {
		return &SubscriptionSnapshot{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}

	sub, err := s.Current(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	custom, err := s.customizations.GetByProvider(ctx, provider.ID)
	if err != nil {
		return nil, fmt.Errorf("get customization: %w", err)
	}

	return &SubscriptionSnapshot{
		Found:              true,
		Provider:           provider,
		Subscription:       &sub,
		Customization:      custom,
		NeedsPlanSelection: sub.NeedsPlanSelection(),
	}, nil
}
