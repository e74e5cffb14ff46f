package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/guincho-facil/internal/metrics"
	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

// AdminAction names a privileged operation on a provider's subscription.
type AdminAction string

const (
	ActionToggleTrial    AdminAction = "toggle_trial"
	ActionSetTrialRides  AdminAction = "set_trial_rides"
	ActionActivatePlan   AdminAction = "activate_plan"
	ActionResetRides     AdminAction = "reset_rides"
	ActionDeactivatePlan AdminAction = "deactivate_plan"
	ActionListProviders  AdminAction = "list_providers"
	ActionGetProvider    AdminAction = "get_provider"
)

var ErrUnauthorized = errors.New("invalid admin password")

// AdminCommand is one decoded admin request. TrialRides and Plan are only read by the
// actions that need them.
type AdminCommand struct {
	Action     AdminAction
	ProviderID string
	TrialRides *int
	Plan       models.PlanName
}

// ProviderOverview pairs a provider with its effective subscription.
type ProviderOverview struct {
	Provider     models.Provider             `json:"provider"`
	Subscription models.ProviderSubscription `json:"subscription"`
}

// AdminResult echoes the action and carries whatever the action produced.
type AdminResult struct {
	Success      bool                         `json:"success"`
	Action       AdminAction                  `json:"action"`
	ProviderID   string                       `json:"provider_id,omitempty"`
	Subscription *models.ProviderSubscription `json:"subscription,omitempty"`
	Providers    []ProviderOverview           `json:"providers,omitempty"`
}

type AdminService struct {
	log           *slog.Logger
	password      string
	providers     *repository.ProviderRepository
	subscriptions *repository.SubscriptionRepository
	now           func() time.Time
}

func NewAdminService(log *slog.Logger, password string, providers *repository.ProviderRepository, subscriptions *repository.SubscriptionRepository) *AdminService {
	return &AdminService{
		log:           log,
		password:      password,
		providers:     providers,
		subscriptions: subscriptions,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Authorize compares the supplied secret in constant time. An unset password never matches.
func (s *AdminService) Authorize(password string) error {
	if s.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Execute authorizes and runs one admin command. Every call is audit logged.
func (s *AdminService) Execute(ctx context.Context, password string, cmd AdminCommand) (*AdminResult, error) {
	if err := s.Authorize(password); err != nil {
		metrics.AdminActionsTotal.WithLabelValues(string(cmd.Action), "unauthorized").Inc()
		s.log.Warn("admin action rejected", "action", cmd.Action, "provider_id", cmd.ProviderID)
		return nil, err
	}

	res, err := s.run(ctx, cmd)
	if err != nil {
		metrics.AdminActionsTotal.WithLabelValues(string(cmd.Action), "error").Inc()
		s.log.Error("admin action failed", "action", cmd.Action, "provider_id", cmd.ProviderID, "err", err)
		return nil, err
	}
	metrics.AdminActionsTotal.WithLabelValues(string(cmd.Action), "ok").Inc()
	s.log.Info("admin action", "action", cmd.Action, "provider_id", cmd.ProviderID)
	return res, nil
}

func (s *AdminService) run(ctx context.Context, cmd AdminCommand) (*AdminResult, error) {
	if cmd.Action == ActionListProviders {
		overview, err := s.listProviders(ctx)
		if err != nil {
			return nil, err
		}
		return &AdminResult{Success: true, Action: cmd.Action, Providers: overview}, nil
	}

	providerID := strings.TrimSpace(cmd.ProviderID)
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}

	now := s.now()
	var sub *models.ProviderSubscription
	switch cmd.Action {
	case ActionToggleTrial:
		sub, err = s.subscriptions.ToggleTrial(ctx, providerID, now)
	case ActionSetTrialRides:
		if cmd.TrialRides == nil || *cmd.TrialRides < 0 {
			return nil, validationError("trial_corridas_restantes must be a non-negative integer")
		}
		sub, err = s.subscriptions.SetTrialRides(ctx, providerID, *cmd.TrialRides, now)
	case ActionActivatePlan:
		plan, ok := models.LookupPlan(cmd.Plan)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, cmd.Plan)
		}
		sub, err = s.subscriptions.ActivatePlan(ctx, providerID, plan, repository.StripeRefs{}, now)
		if err == nil {
			metrics.PlanActivationsTotal.WithLabelValues(string(plan.Name), "admin").Inc()
		}
	case ActionResetRides:
		sub, err = s.subscriptions.ResetRides(ctx, providerID, now)
	case ActionDeactivatePlan:
		sub, err = s.subscriptions.DeactivatePlan(ctx, providerID, now)
	case ActionGetProvider:
		var current *models.ProviderSubscription
		current, err = s.subscriptions.Get(ctx, providerID)
		if err == nil && current == nil {
			def := models.DefaultSubscription(providerID)
			current = &def
		}
		sub = current
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	if err != nil {
		return nil, err
	}
	return &AdminResult{Success: true, Action: cmd.Action, ProviderID: providerID, Subscription: sub}, nil
}

func (s *AdminService) listProviders(ctx context.Context) ([]ProviderOverview, error) {
	providers, err := s.providers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	subs, err := s.subscriptions.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProviderOverview, 0, len(providers))
	for _, p := range providers {
		sub, ok := subs[p.ID]
		if !ok {
			sub = models.DefaultSubscription(p.ID)
		}
		out = append(out, ProviderOverview{Provider: p, Subscription: sub})
	}
	return out, nil
}
