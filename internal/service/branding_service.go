package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ImageStorage persists uploaded logos and returns their public URL.
type ImageStorage interface {
	UploadLogo(ctx context.Context, providerID string, data []byte, contentType string) (string, error)
}

type CustomizationInput struct {
	PrimaryColor   string
	SecondaryColor string
	CompanyName    string
	CustomDomain   string
}

type BrandingService struct {
	log            *slog.Logger
	providers      *repository.ProviderRepository
	customizations *repository.CustomizationRepository
	storage        ImageStorage
	tenants        *TenantService
	now            func() time.Time
}

// NewBrandingService wires branding writes. storage may be nil when uploads are not
// configured.
func NewBrandingService(log *slog.Logger, providers *repository.ProviderRepository, customizations *repository.CustomizationRepository, storage ImageStorage, tenants *TenantService) *BrandingService {
	return &BrandingService{
		log:            log,
		providers:      providers,
		customizations: customizations,
		storage:        storage,
		tenants:        tenants,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// UpdateCustomization stores colors, company name and custom domain for a provider.
func (s *BrandingService) UpdateCustomization(ctx context.Context, providerID string, in CustomizationInput) (*models.ProviderCustomization, error) {
	if _, err := s.provider(ctx, providerID); err != nil {
		return nil, err
	}
	for _, c := range []string{in.PrimaryColor, in.SecondaryColor} {
		if c != "" && !hexColor.MatchString(c) {
			return nil, validationError("invalid color %q", c)
		}
	}

	domain := NormalizeHost(in.CustomDomain)
	if domain != "" {
		if !strings.Contains(domain, ".") {
			return nil, validationError("invalid custom domain %q", in.CustomDomain)
		}
		owner, err := s.customizations.FindByCustomDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("find custom domain: %w", err)
		}
		if owner != nil && owner.ProviderID != providerID {
			return nil, ErrDomainTaken
		}
	}

	custom, err := s.customizations.Upsert(ctx, models.ProviderCustomization{
		ProviderID:     providerID,
		PrimaryColor:   strings.ToLower(in.PrimaryColor),
		SecondaryColor: strings.ToLower(in.SecondaryColor),
		CompanyName:    strings.TrimSpace(in.CompanyName),
		CustomDomain:   domain,
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.log.Info("customization updated", "provider_id", providerID, "domain", domain)
	return custom, nil
}

// UploadLogo stores the image and points the provider's customization at it.
func (s *BrandingService) UploadLogo(ctx context.Context, providerID string, data []byte, contentType string) (*models.ProviderCustomization, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := s.provider(ctx, providerID); err != nil {
		return nil, err
	}
	url, err := s.storage.UploadLogo(ctx, providerID, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}
	custom, err := s.customizations.SetLogo(ctx, providerID, url, s.now())
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.log.Info("logo uploaded", "provider_id", providerID, "url", url)
	return custom, nil
}

func (s *BrandingService) provider(ctx context.Context, providerID string) (*models.Provider, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, validationError("provider id is required")
	}
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if p == nil {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

func (s *BrandingService) invalidate() {
	if s.tenants != nil {
		s.tenants.Invalidate()
	}
}
