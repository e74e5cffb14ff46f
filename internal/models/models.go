package models

import "time"

// PlanName identifies a paid tier.
type PlanName string

const (
	PlanBasico       PlanName = "basico"
	PlanProfissional PlanName = "profissional"
	PlanPro          PlanName = "pro"
)

const (
	// DefaultTrialRides is the free allotment every provider starts with.
	DefaultTrialRides = 10
	// UnlimitedRides marks a plan without a usage cap.
	UnlimitedRides = -1
	// BillingCycle is the period between monthly charges.
	BillingCycle = 30 * 24 * time.Hour
)

// Plan is a row of the fixed price table.
type Plan struct {
	Name        PlanName `json:"plano"`
	Title       string   `json:"titulo"`
	RideLimit   int      `json:"limite_corridas"`
	MonthlyFee  float64  `json:"mensalidade"`
	AmountCents int64    `json:"valor_centavos"`
}

var plans = map[PlanName]Plan{
	PlanBasico:       {Name: PlanBasico, Title: "Básico", RideLimit: 50, MonthlyFee: 47, AmountCents: 4700},
	PlanProfissional: {Name: PlanProfissional, Title: "Profissional", RideLimit: 150, MonthlyFee: 39, AmountCents: 3900},
	PlanPro:          {Name: PlanPro, Title: "Pro", RideLimit: UnlimitedRides, MonthlyFee: 19.90, AmountCents: 1990},
}

// LookupPlan returns the price table entry for name.
func LookupPlan(name PlanName) (Plan, bool) {
	p, ok := plans[name]
	return p, ok
}

// Plans lists the price table in display order.
func Plans() []Plan {
	return []Plan{plans[PlanBasico], plans[PlanProfissional], plans[PlanPro]}
}

type Provider struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	WhatsApp  string    `json:"whatsapp"`
	Slug      string    `json:"slug"`
	City      string    `json:"cidade"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderSubscription is the metering record of one provider.
type ProviderSubscription struct {
	ProviderID           string     `json:"provider_id"`
	Plan                 *PlanName  `json:"plano"`
	SignupPaid           bool       `json:"adesao_paga"`
	TrialActive          bool       `json:"trial_ativo"`
	TrialRidesRemaining  int        `json:"trial_corridas_restantes"`
	RidesUsed            int        `json:"corridas_usadas"`
	RideLimit            int        `json:"limite_corridas"`
	MonthlyFee           float64    `json:"mensalidade_atual"`
	NextBillingAt        *time.Time `json:"proxima_cobranca"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DefaultSubscription is the state of a provider that has no stored record yet.
func DefaultSubscription(providerID string) ProviderSubscription {
	return ProviderSubscription{
		ProviderID:          providerID,
		TrialActive:         true,
		TrialRidesRemaining: DefaultTrialRides,
	}
}

// NeedsPlanSelection is true when the provider must pick a paid plan to keep working.
func (s ProviderSubscription) NeedsPlanSelection() bool {
	return !s.SignupPaid && (s.TrialRidesRemaining <= 0 || !s.TrialActive)
}

// Unlimited reports whether the paid plan has no usage cap.
func (s ProviderSubscription) Unlimited() bool {
	return s.RideLimit == UnlimitedRides
}

type ProviderCustomization struct {
	ProviderID     string    `json:"provider_id"`
	LogoURL        string    `json:"logo_url"`
	PrimaryColor   string    `json:"cor_primaria"`
	SecondaryColor string    `json:"cor_secundaria"`
	CompanyName    string    `json:"nome_empresa"`
	CustomDomain   string    `json:"dominio_personalizado"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentExpired PaymentStatus = "expired"
)

// Payment records one checkout session opened with the billing provider.
type Payment struct {
	ID         int64
	ProviderID string
	Plan       PlanName
	Provider   string
	SessionID  string
	Currency   string
	Amount     int64
	Status     PaymentStatus
	RawPayload string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TenantBranding is what the front-end needs to pick between the marketplace and a
// single provider's white-label view.
type TenantBranding struct {
	IsWhiteLabel   bool      `json:"isWhiteLabel"`
	Provider       *Provider `json:"provider,omitempty"`
	LogoURL        string    `json:"logo_url"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	CompanyName    string    `json:"company_name"`
}
