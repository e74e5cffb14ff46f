package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/guincho-facil/internal/metrics"
	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

// BlockReason explains why a ride was not recorded.
type BlockReason string

const (
	ReasonTrialExhausted BlockReason = "trial_exhausted"
	ReasonNoPlan         BlockReason = "no_plan"
	ReasonLimitReached   BlockReason = "limit_reached"
)

var blockMessages = map[BlockReason]string{
	ReasonTrialExhausted: "Suas corridas gratuitas acabaram. Escolha um plano para continuar recebendo chamados.",
	ReasonNoPlan:         "Você não possui um plano ativo. Escolha um plano para continuar.",
	ReasonLimitReached:   "Você atingiu o limite de corridas do seu plano neste ciclo.",
}

// RideResult is the outcome of one metering call. A blocked ride is a business answer,
// not an error.
type RideResult struct {
	Success             bool        `json:"success"`
	Blocked             bool        `json:"blocked"`
	Reason              BlockReason `json:"reason,omitempty"`
	Message             string      `json:"message,omitempty"`
	TrialStarted        bool        `json:"trial_started,omitempty"`
	TrialActive         bool        `json:"trial_ativo"`
	TrialRidesRemaining int         `json:"trial_corridas_restantes"`
	RidesUsed           int         `json:"corridas_usadas"`
	RideLimit           int         `json:"limite_corridas"`
}

func resultFrom(sub models.ProviderSubscription) *RideResult {
	return &RideResult{
		Success:             true,
		TrialActive:         sub.TrialActive,
		TrialRidesRemaining: sub.TrialRidesRemaining,
		RidesUsed:           sub.RidesUsed,
		RideLimit:           sub.RideLimit,
	}
}

type MeteringService struct {
	log           *slog.Logger
	providers     *repository.ProviderRepository
	subscriptions *repository.SubscriptionRepository
	now           func() time.Time
}

func NewMeteringService(log *slog.Logger, providers *repository.ProviderRepository, subscriptions *repository.SubscriptionRepository) *MeteringService {
	return &MeteringService{
		log:           log,
		providers:     providers,
		subscriptions: subscriptions,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RecordRide meters one ride for the provider.
//
// The first call for a provider without a record opens its trial and succeeds without
// consuming. Afterwards the ride is recorded by a single guarded update. The reported
// state and block reason come from the locked row the guard saw, so a concurrent admin
// change cannot make the answer contradict itself.
func (s *MeteringService) RecordRide(ctx context.Context, providerID string) (*RideResult, error) {
	providerID = strings.TrimSpace(providerID)
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
	created, err := s.subscriptions.InsertTrial(ctx, providerID, now)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.RideIncrementsTotal.WithLabelValues("trial_started").Inc()
		s.log.Info("trial started", "provider_id", providerID)
		res := resultFrom(models.DefaultSubscription(providerID))
		res.TrialStarted = true
		return res, nil
	}

	recorded, sub, err := s.subscriptions.ConsumeRideWithState(ctx, providerID, now)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrProviderNotFound
	}

	if recorded {
		metrics.RideIncrementsTotal.WithLabelValues("recorded").Inc()
		return resultFrom(*sub), nil
	}

	reason := classifyBlock(*sub)
	metrics.RideIncrementsTotal.WithLabelValues(string(reason)).Inc()
	s.log.Info("ride blocked", "provider_id", providerID, "reason", reason)

	res := resultFrom(*sub)
	res.Success = false
	res.Blocked = true
	res.Reason = reason
	res.Message = blockMessages[reason]
	return res, nil
}

// classifyBlock names the rule that rejected a ride, evaluated in the same order the
// guarded update admits rides.
func classifyBlock(sub models.ProviderSubscription) BlockReason {
	switch {
	case !sub.SignupPaid && sub.TrialActive:
		return ReasonTrialExhausted
	case !sub.SignupPaid:
		return ReasonNoPlan
	default:
		return ReasonLimitReached
	}
}
