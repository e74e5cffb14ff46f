package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/digkill/guincho-facil/internal/metrics"
	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

// TenantOptions configures which hosts belong to the marketplace and the branding it
// falls back to.
type TenantOptions struct {
	MainDomains        []string
	MainDomainSuffixes []string
	CacheTTL           time.Duration
	PrimaryColor       string
	SecondaryColor     string
	CompanyName        string
}

type TenantService struct {
	opts           TenantOptions
	providers      *repository.ProviderRepository
	customizations *repository.CustomizationRepository
	cache          *cache.Cache
}

func NewTenantService(opts TenantOptions, providers *repository.ProviderRepository, customizations *repository.CustomizationRepository) *TenantService {
	s := &TenantService{opts: opts, providers: providers, customizations: customizations}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// DefaultBranding is the marketplace look used when no provider owns the host.
func (s *TenantService) DefaultBranding() models.TenantBranding {
	return models.TenantBranding{
		PrimaryColor:   s.opts.PrimaryColor,
		SecondaryColor: s.opts.SecondaryColor,
		CompanyName:    s.opts.CompanyName,
	}
}

// Resolve maps a request hostname to the branding it should be served with. Unknown
// hosts get the default branding; only store failures are errors.
func (s *TenantService) Resolve(ctx context.Context, hostname string) (models.TenantBranding, error) {
	host := NormalizeHost(hostname)
	if host == "" || s.isMainDomain(host) {
		metrics.TenantResolutionsTotal.WithLabelValues("main").Inc()
		return s.DefaultBranding(), nil
	}

	if s.cache != nil {
		if cached, found := s.cache.Get(host); found {
			metrics.TenantResolutionsTotal.WithLabelValues("cache").Inc()
			return cached.(models.TenantBranding), nil
		}
	}

	branding, match, err := s.lookup(ctx, host)
	if err != nil {
		return models.TenantBranding{}, err
	}
	metrics.TenantResolutionsTotal.WithLabelValues(match).Inc()

	// Misses are not cached so a provider registered after the first visit is found
	// on the next request.
	if s.cache != nil && branding.IsWhiteLabel {
		s.cache.Set(host, branding, cache.DefaultExpiration)
	}
	return branding, nil
}

// lookup tries the subdomain slug, then the full host as a custom domain. An inactive
// provider counts as no match at either step.
func (s *TenantService) lookup(ctx context.Context, host string) (models.TenantBranding, string, error) {
	if labels := strings.Split(host, "."); len(labels) >= 3 {
		p, err := s.providers.FindBySlug(ctx, labels[0])
		if err != nil {
			return models.TenantBranding{}, "", fmt.Errorf("find provider by slug: %w", err)
		}
		if p != nil && p.Active {
			custom, err := s.customizations.GetByProvider(ctx, p.ID)
			if err != nil {
				return models.TenantBranding{}, "", fmt.Errorf("get customization: %w", err)
			}
			return s.brandingFor(p, custom), "slug", nil
		}
	}

	custom, err := s.customizations.FindByCustomDomain(ctx, host)
	if err != nil {
		return models.TenantBranding{}, "", fmt.Errorf("find custom domain: %w", err)
	}
	if custom != nil {
		p, err := s.providers.GetByID(ctx, custom.ProviderID)
		if err != nil {
			return models.TenantBranding{}, "", fmt.Errorf("find provider by domain: %w", err)
		}
		if p != nil && p.Active {
			return s.brandingFor(p, custom), "custom_domain", nil
		}
	}
	return s.DefaultBranding(), "none", nil
}

func (s *TenantService) brandingFor(provider *models.Provider, custom *models.ProviderCustomization) models.TenantBranding {
	b := s.DefaultBranding()
	b.IsWhiteLabel = true
	b.Provider = provider
	b.CompanyName = provider.Name
	if custom == nil {
		return b
	}
	b.LogoURL = custom.LogoURL
	if custom.PrimaryColor != "" {
		b.PrimaryColor = custom.PrimaryColor
	}
	if custom.SecondaryColor != "" {
		b.SecondaryColor = custom.SecondaryColor
	}
	if custom.CompanyName != "" {
		b.CompanyName = custom.CompanyName
	}
	return b
}

// Invalidate drops every cached resolution. A single customization write can move a
// custom domain between providers, so entries are not evicted one by one.
func (s *TenantService) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *TenantService) isMainDomain(host string) bool {
	for _, d := range s.opts.MainDomains {
		if host == d {
			return true
		}
	}
	for _, suffix := range s.opts.MainDomainSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// NormalizeHost lowercases a Host header value and drops the port and trailing dot.
func NormalizeHost(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}
