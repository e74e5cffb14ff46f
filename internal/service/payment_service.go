package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/digkill/guincho-facil/internal/metrics"
	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

var ErrInvalidSignature = errors.New("invalid stripe signature")

// PaymentConfig carries the Stripe settings the payment flow needs.
type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// CheckoutRequest starts a checkout for one plan.
type CheckoutRequest struct {
	ProviderID string
	Plan       models.PlanName
	WhatsApp   string
}

// VerifyResult is the billing view of a provider after verification.
type VerifyResult struct {
	SignupPaid    bool             `json:"adesao_paga"`
	Plan          *models.PlanName `json:"plano"`
	RideLimit     int              `json:"limite_corridas"`
	MonthlyFee    float64          `json:"mensalidade_atual"`
	NextBillingAt *time.Time       `json:"proxima_cobranca"`
}

func verifyResultFrom(sub models.ProviderSubscription) *VerifyResult {
	return &VerifyResult{
		SignupPaid:    sub.SignupPaid,
		Plan:          sub.Plan,
		RideLimit:     sub.RideLimit,
		MonthlyFee:    sub.MonthlyFee,
		NextBillingAt: sub.NextBillingAt,
	}
}

type PaymentService struct {
	cfg           PaymentConfig
	log           *slog.Logger
	payments      *repository.PaymentRepository
	providers     *repository.ProviderRepository
	subscriptions *repository.SubscriptionRepository
	notifier      Notifier
	now           func() time.Time

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewPaymentService(cfg PaymentConfig, log *slog.Logger, payments *repository.PaymentRepository, providers *repository.ProviderRepository, subscriptions *repository.SubscriptionRepository, notifier Notifier) *PaymentService {
	if cfg.SecretKey != "" {
		stripe.Key = strings.TrimSpace(cfg.SecretKey)
	}
	if cfg.Currency == "" {
		cfg.Currency = "brl"
	}
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &PaymentService{
		cfg:           cfg,
		log:           log,
		payments:      payments,
		providers:     providers,
		subscriptions: subscriptions,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
		createSession: stripesession.New,
		getSession:    stripesession.Get,
	}
}

func (s *PaymentService) enabled() bool {
	return s.cfg.SecretKey != ""
}

// CreateCheckout opens a Stripe checkout session in subscription mode for the plan's
// monthly fee and records it as a pending payment. It returns the hosted session URL.
func (s *PaymentService) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if !s.enabled() {
		return "", ErrBillingDisabled
	}
	plan, ok := models.LookupPlan(req.Plan)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, req.Plan)
	}
	provider, err := resolveProvider(ctx, s.providers, ProviderLookup{ProviderID: req.ProviderID, WhatsApp: req.WhatsApp})
	if err != nil {
		return "", err
	}

	successURL := withSessionPlaceholder(s.cfg.SuccessURL)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(provider.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(plan.AmountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Guincho Fácil " + plan.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"provider_id": provider.ID, "plano": string(plan.Name)},
		},
	}
	params.AddMetadata("provider_id", provider.ID)
	params.AddMetadata("plano", string(plan.Name))
	params.AddMetadata("whatsapp", provider.WhatsApp)
	params.Context = ctx

	session, err := s.createSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("checkout session without url")
	}

	record := &models.Payment{
		ProviderID: provider.ID,
		Plan:       plan.Name,
		Provider:   "stripe",
		SessionID:  session.ID,
		Currency:   s.cfg.Currency,
		Amount:     plan.AmountCents,
		Status:     models.PaymentPending,
		RawPayload: string(jsonMustMarshal(session)),
		CreatedAt:  s.now(),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return "", fmt.Errorf("record payment: %w", err)
	}
	s.log.Info("checkout created", "provider_id", provider.ID, "plano", plan.Name, "session_id", session.ID)
	return session.URL, nil
}

// Verify reports the billing state of a provider. When a pending checkout exists it is
// confirmed against Stripe first, activating the plan if the session was paid. An
// unknown provider or missing payment yields adesao_paga=false, not an error.
func (s *PaymentService) Verify(ctx context.Context, lookup ProviderLookup) (*VerifyResult, error) {
	provider, err := resolveProvider(ctx, s.providers, lookup)
	if errors.Is(err, ErrProviderNotFound) {
		return &VerifyResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Get(ctx, provider.ID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub != nil && sub.SignupPaid {
		return verifyResultFrom(*sub), nil
	}

	pending, err := s.payments.LatestPending(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	if pending == nil || !s.enabled() {
		return s.currentResult(provider.ID, sub), nil
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := s.getSession(pending.SessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	if session == nil || session.Status != stripe.CheckoutSessionStatusComplete || session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		if session != nil && session.Status == stripe.CheckoutSessionStatusExpired {
			if err := s.payments.UpdateStatus(ctx, pending.ID, models.PaymentExpired, string(jsonMustMarshal(session))); err != nil {
				return nil, err
			}
		}
		return s.currentResult(provider.ID, sub), nil
	}

	activated, err := s.completePayment(ctx, pending, sessionRefs(session), string(jsonMustMarshal(session)), "verify")
	if err != nil {
		return nil, err
	}
	if activated == nil {
		return s.reload(ctx, provider.ID)
	}
	return verifyResultFrom(*activated), nil
}

func (s *PaymentService) currentResult(providerID string, sub *models.ProviderSubscription) *VerifyResult {
	if sub == nil {
		return verifyResultFrom(models.DefaultSubscription(providerID))
	}
	return verifyResultFrom(*sub)
}

func (s *PaymentService) reload(ctx context.Context, providerID string) (*VerifyResult, error) {
	sub, err := s.subscriptions.Get(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s.currentResult(providerID, sub), nil
}

// completePayment marks the payment paid and activates its plan. The paid flag is
// claimed first, so concurrent verify and webhook calls activate once; a nil record
// means another caller already did.
func (s *PaymentService) completePayment(ctx context.Context, payment *models.Payment, refs repository.StripeRefs, payload, source string) (*models.ProviderSubscription, error) {
	plan, ok := models.LookupPlan(payment.Plan)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, payment.Plan)
	}
	claimed, err := s.payments.MarkPaid(ctx, payment.ID, payload)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	sub, err := s.subscriptions.ActivatePlan(ctx, payment.ProviderID, plan, refs, s.now())
	if err != nil {
		// Release the claim so a retry can activate.
		if rerr := s.payments.UpdateStatus(ctx, payment.ID, models.PaymentPending, payload); rerr != nil {
			s.log.Error("release payment claim", "payment_id", payment.ID, "err", rerr)
		}
		return nil, fmt.Errorf("activate plan: %w", err)
	}
	metrics.PlanActivationsTotal.WithLabelValues(string(plan.Name), source).Inc()
	s.log.Info("plan activated", "provider_id", payment.ProviderID, "plano", plan.Name, "source", source)

	text := fmt.Sprintf("Plano %s ativado para o prestador %s (R$ %.2f/mês).", plan.Title, payment.ProviderID, plan.MonthlyFee)
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Warn("notify plan activation", "err", err)
	}
	return sub, nil
}

func sessionRefs(session *stripe.CheckoutSession) repository.StripeRefs {
	var refs repository.StripeRefs
	if session.Customer != nil {
		refs.CustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		refs.SubscriptionID = session.Subscription.ID
	}
	return refs
}

// Webhook payloads only carry ids for customer and subscription.
type checkoutSessionEvent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type subscriptionEvent struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// HandleWebhook verifies a Stripe webhook payload and applies it. Unknown event types
// are accepted and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if strings.TrimSpace(signature) == "" || s.cfg.WebhookSecret == "" {
		metrics.WebhookRequestsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	if err := s.handleEvent(ctx, eventType, event.Data.Raw); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, "error").Inc()
		s.log.Error("stripe webhook", "event_id", event.ID, "type", eventType, "err", err)
		return err
	}
	metrics.WebhookRequestsTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}

func (s *PaymentService) handleEvent(ctx context.Context, eventType string, raw json.RawMessage) error {
	switch eventType {
	case "checkout.session.completed":
		var session checkoutSessionEvent
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, session, string(raw))
	case "customer.subscription.deleted":
		var sub subscriptionEvent
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, sub)
	default:
		s.log.Info("stripe webhook ignored", "type", eventType)
		return nil
	}
}

func (s *PaymentService) handleCheckoutCompleted(ctx context.Context, session checkoutSessionEvent, raw string) error {
	if session.PaymentStatus != "" && session.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) {
		s.log.Info("checkout completed without payment", "session_id", session.ID, "payment_status", session.PaymentStatus)
		return nil
	}
	payment, err := s.payments.FindBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		// Sessions opened outside this service still carry enough metadata to activate.
		providerID := session.Metadata["provider_id"]
		plan, ok := models.LookupPlan(models.PlanName(session.Metadata["plano"]))
		if providerID == "" || !ok {
			return fmt.Errorf("payment not found for session %s", session.ID)
		}
		payment = &models.Payment{
			ProviderID: providerID,
			Plan:       plan.Name,
			Provider:   "stripe",
			SessionID:  session.ID,
			Currency:   s.cfg.Currency,
			Amount:     plan.AmountCents,
			Status:     models.PaymentPending,
			RawPayload: raw,
			CreatedAt:  s.now(),
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
	}
	if payment.Status == models.PaymentPaid {
		return nil
	}
	refs := repository.StripeRefs{CustomerID: session.Customer, SubscriptionID: session.Subscription}
	_, err = s.completePayment(ctx, payment, refs, raw, "webhook")
	return err
}

func (s *PaymentService) handleSubscriptionDeleted(ctx context.Context, event subscriptionEvent) error {
	providerID := event.Metadata["provider_id"]
	if event.ID != "" {
		sub, err := s.subscriptions.FindByStripeSubscription(ctx, event.ID)
		if err != nil {
			return err
		}
		if sub != nil {
			providerID = sub.ProviderID
		}
	}
	if providerID != "" {
		provider, err := s.providers.GetByID(ctx, providerID)
		if err != nil {
			return fmt.Errorf("find provider: %w", err)
		}
		if provider == nil {
			providerID = ""
		}
	}
	if providerID == "" {
		s.log.Warn("subscription deleted for unknown provider", "subscription_id", event.ID)
		return nil
	}
	if _, err := s.subscriptions.DeactivatePlan(ctx, providerID, s.now()); err != nil {
		return fmt.Errorf("deactivate plan: %w", err)
	}
	s.log.Info("plan deactivated", "provider_id", providerID, "subscription_id", event.ID)
	return nil
}

// withSessionPlaceholder appends Stripe's session id template so the front-end can
// verify the checkout on return.
func withSessionPlaceholder(u string) string {
	if strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session_id={CHECKOUT_SESSION_ID}"
}

func jsonMustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
