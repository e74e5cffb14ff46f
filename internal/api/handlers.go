package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/quote"
	"github.com/digkill/guincho-facil/internal/service"
	"github.com/digkill/guincho-facil/internal/storage"
)

type lookupRequest struct {
	ProviderID string `json:"provider_id"`
	WhatsApp   string `json:"whatsapp"`
}

func (l lookupRequest) lookup() service.ProviderLookup {
	return service.ProviderLookup{ProviderID: l.ProviderID, WhatsApp: l.WhatsApp}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			s.log.Error("health check", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.svc.Subscriptions.Snapshot(r.Context(), req.lookup())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleIncrementRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Metering.RecordRide(r.Context(), req.ProviderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type adminRequest struct {
	Action        string `json:"action"`
	ProviderID    string `json:"provider_id"`
	AdminPassword string `json:"admin_password"`
	Data          struct {
		TrialRides *int   `json:"trial_corridas_restantes"`
		Plan       string `json:"plano"`
	} `json:"data"`
}

// handleAdminAction answers 401 on a bad password and 500 with the error text on any
// other failure, except unknown providers.
func (s *Server) handleAdminAction(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	password := req.AdminPassword
	if password == "" {
		password = r.Header.Get(adminPasswordHeader)
	}

	res, err := s.svc.Admin.Execute(r.Context(), password, service.AdminCommand{
		Action:     service.AdminAction(strings.TrimSpace(req.Action)),
		ProviderID: req.ProviderID,
		TrialRides: req.Data.TrialRides,
		Plan:       models.PlanName(strings.TrimSpace(req.Data.Plan)),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
		Plan       string `json:"plano"`
		WhatsApp   string `json:"whatsapp"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	url, err := s.svc.Payments.CreateCheckout(r.Context(), service.CheckoutRequest{
		ProviderID: req.ProviderID,
		Plan:       models.PlanName(strings.TrimSpace(req.Plan)),
		WhatsApp:   req.WhatsApp,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest || status == http.StatusInternalServerError {
			status = http.StatusInternalServerError
			s.log.Error("checkout failed", "provider_id", req.ProviderID, "err", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Payments.Verify(r.Context(), req.lookup())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTenant(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("hostname")
	if host == "" {
		host = r.Host
	}
	branding, err := s.svc.Tenants.Resolve(r.Context(), host)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, branding)
}

func (s *Server) handleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"nome"`
		WhatsApp string `json:"whatsapp"`
		City     string `json:"cidade"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	provider, err := s.svc.Providers.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		WhatsApp: req.WhatsApp,
		City:     req.City,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, provider)
}

func (s *Server) handleUpdateCustomization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrimaryColor   string `json:"cor_primaria"`
		SecondaryColor string `json:"cor_secundaria"`
		CompanyName    string `json:"nome_empresa"`
		CustomDomain   string `json:"dominio_personalizado"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	custom, err := s.svc.Branding.UpdateCustomization(r.Context(), chi.URLParam(r, "id"), service.CustomizationInput{
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
		CompanyName:    req.CompanyName,
		CustomDomain:   req.CustomDomain,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, custom)
}

// handleUploadLogo accepts a multipart form with the image in the "logo" field.
func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxLogoBytes+64<<10)
	file, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "logo file is required")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, storage.MaxLogoBytes+1)); err != nil {
		writeError(w, http.StatusBadRequest, "read logo")
		return
	}
	if buf.Len() > storage.MaxLogoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("logo exceeds %d bytes", storage.MaxLogoBytes))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(buf.Bytes())
	}
	custom, err := s.svc.Branding.UploadLogo(r.Context(), chi.URLParam(r, "id"), buf.Bytes(), contentType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, custom)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      *quote.Point `json:"origem"`
		Destination *quote.Point `json:"destino"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Origin == nil || req.Destination == nil {
		writeError(w, http.StatusBadRequest, "origem and destino are required")
		return
	}
	q, err := s.opts.Tariff.Estimate(*req.Origin, *req.Destination)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

const stripeWebhookBodyLimit = 64 << 10

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, stripeWebhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	err = s.svc.Payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, service.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid stripe signature")
	default:
		writeError(w, http.StatusInternalServerError, "failed to process webhook")
	}
}
