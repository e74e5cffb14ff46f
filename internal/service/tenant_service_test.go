package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/pkg/logger"
)

func tenantOptions(ttl time.Duration) TenantOptions {
	return TenantOptions{
		MainDomains:        []string{"localhost", "guinchofacil.com.br", "www.guinchofacil.com.br"},
		MainDomainSuffixes: []string{"lovable.app"},
		CacheTTL:           ttl,
		PrimaryColor:       "#6366f1",
		SecondaryColor:     "#8b5cf6",
		CompanyName:        "Guincho Fácil",
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"Joao.Example.COM:443": "joao.example.com",
		"localhost:8080":       "localhost",
		"[::1]:8080":           "::1",
		"example.com.":         "example.com",
		" ":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}

func TestResolveMainDomains(t *testing.T) {
	e := newEnv(t)
	e.provider(t, "localhost", "5511999990001")
	svc := NewTenantService(tenantOptions(0), e.providers, e.customizations)
	ctx := context.Background()

	for _, host := range []string{"localhost:8080", "guinchofacil.com.br", "preview-123.lovable.app", ""} {
		b, err := svc.Resolve(ctx, host)
		require.NoError(t, err)
		assert.False(t, b.IsWhiteLabel, host)
		assert.Nil(t, b.Provider)
		assert.Equal(t, "#6366f1", b.PrimaryColor)
		assert.Equal(t, "#8b5cf6", b.SecondaryColor)
	}
}

func TestResolveBySubdomainSlug(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := NewTenantService(tenantOptions(0), e.providers, e.customizations)

	b, err := svc.Resolve(context.Background(), "joao.seudominio.com")
	require.NoError(t, err)
	assert.True(t, b.IsWhiteLabel)
	require.NotNil(t, b.Provider)
	assert.Equal(t, p.ID, b.Provider.ID)
	assert.Equal(t, "#6366f1", b.PrimaryColor)
	assert.Equal(t, p.Name, b.CompanyName)

	// Two labels never count as a subdomain.
	b, err = svc.Resolve(context.Background(), "joao.com")
	require.NoError(t, err)
	assert.False(t, b.IsWhiteLabel)
}

func TestResolveByCustomDomain(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	ctx := context.Background()
	_, err := e.customizations.Upsert(ctx, models.ProviderCustomization{
		ProviderID:   p.ID,
		PrimaryColor: "#112233",
		CompanyName:  "Guincho do João",
		CustomDomain: "guinchojoao.com.br",
	}, fixedNow)
	require.NoError(t, err)
	svc := NewTenantService(tenantOptions(0), e.providers, e.customizations)

	b, err := svc.Resolve(ctx, "GuinchoJoao.com.br:443")
	require.NoError(t, err)
	assert.True(t, b.IsWhiteLabel)
	assert.Equal(t, p.ID, b.Provider.ID)
	assert.Equal(t, "#112233", b.PrimaryColor)
	assert.Equal(t, "#8b5cf6", b.SecondaryColor)
	assert.Equal(t, "Guincho do João", b.CompanyName)

	// Subdomain of a custom domain falls through to the domain lookup.
	b, err = svc.Resolve(ctx, "www.guinchojoao.com.br")
	require.NoError(t, err)
	assert.False(t, b.IsWhiteLabel)
}

func TestResolveUnknownAndInactive(t *testing.T) {
	e := newEnv(t)
	inactive := &models.Provider{ID: uuid.NewString(), Name: "Parado", WhatsApp: "5511999990009", Slug: "parado", Active: false, CreatedAt: fixedNow}
	require.NoError(t, e.providers.Create(context.Background(), inactive))
	svc := NewTenantService(tenantOptions(0), e.providers, e.customizations)

	for _, host := range []string{"ninguem.seudominio.com", "parado.seudominio.com", "desconhecido.com.br"} {
		b, err := svc.Resolve(context.Background(), host)
		require.NoError(t, err)
		assert.False(t, b.IsWhiteLabel, host)
		assert.Equal(t, "Guincho Fácil", b.CompanyName)
	}
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	ctx := context.Background()
	svc := NewTenantService(tenantOptions(time.Minute), e.providers, e.customizations)

	b, err := svc.Resolve(ctx, "joao.seudominio.com")
	require.NoError(t, err)
	assert.Equal(t, "#6366f1", b.PrimaryColor)

	_, err = e.customizations.Upsert(ctx, models.ProviderCustomization{ProviderID: p.ID, PrimaryColor: "#000000"}, fixedNow)
	require.NoError(t, err)

	b, err = svc.Resolve(ctx, "joao.seudominio.com")
	require.NoError(t, err)
	assert.Equal(t, "#6366f1", b.PrimaryColor)

	svc.Invalidate()
	b, err = svc.Resolve(ctx, "joao.seudominio.com")
	require.NoError(t, err)
	assert.Equal(t, "#000000", b.PrimaryColor)
}

func TestResolveFindsProviderRegisteredAfterMiss(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewTenantService(tenantOptions(time.Minute), e.providers, e.customizations)
	providers := NewProviderService(logger.Discard(), e.providers, e.subscriptions, nil)

	b, err := svc.Resolve(ctx, "joao.seudominio.com")
	require.NoError(t, err)
	assert.False(t, b.IsWhiteLabel)

	p, err := providers.Register(ctx, RegisterInput{Name: "Joao", WhatsApp: "11999990001", City: "Campinas"})
	require.NoError(t, err)
	require.Equal(t, "joao", p.Slug)

	b, err = svc.Resolve(ctx, "joao.seudominio.com")
	require.NoError(t, err)
	assert.True(t, b.IsWhiteLabel)
	require.NotNil(t, b.Provider)
	assert.Equal(t, p.ID, b.Provider.ID)
}

func TestResolveInactiveSlugFallsThroughToCustomDomain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inactive := &models.Provider{ID: uuid.NewString(), Name: "Parado", WhatsApp: "5511999990009", Slug: "parado", Active: false, CreatedAt: fixedNow}
	require.NoError(t, e.providers.Create(ctx, inactive))
	owner := e.provider(t, "maria", "5511999990002")
	_, err := e.customizations.Upsert(ctx, models.ProviderCustomization{
		ProviderID:   owner.ID,
		CustomDomain: "parado.guinchomaria.com.br",
	}, fixedNow)
	require.NoError(t, err)
	svc := NewTenantService(tenantOptions(0), e.providers, e.customizations)

	b, err := svc.Resolve(ctx, "parado.guinchomaria.com.br")
	require.NoError(t, err)
	assert.True(t, b.IsWhiteLabel)
	require.NotNil(t, b.Provider)
	assert.Equal(t, owner.ID, b.Provider.ID)
}
