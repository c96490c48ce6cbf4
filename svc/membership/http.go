package membership

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdeck/membership/pkg/billing"
)

// Stripe signs deliveries over the raw body; payloads past this size
// are not legitimate events.
const maxWebhookBody = 1 << 16

// UserIDFunc extracts the authenticated user id from a request. The
// boolean is false for anonymous requests.
type UserIDFunc func(r *http.Request) (string, bool)

// Handler exposes the membership service over HTTP.
type Handler struct {
	svc    *Service
	userID UserIDFunc
	log    *slog.Logger
}

// NewHandler creates the HTTP handler. Panics if svc or userID is nil.
func NewHandler(svc *Service, userID UserIDFunc, log *slog.Logger) *Handler {
	if svc == nil {
		panic("membership handler: service cannot be nil")
	}
	if userID == nil {
		panic("membership handler: user id extractor cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, userID: userID, log: log}
}

// Routes mounts the billing endpoints. The limit middleware, when not
// nil, wraps the user-facing endpoints; the webhook endpoint is left
// outside it because the provider controls that traffic and retries on
// anything but 2xx.
func (h *Handler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/billing", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/checkout", h.startCheckout)
			r.Post("/portal", h.managePortal)
			r.Get("/members/count", h.membersCount)
		})
		r.Post("/webhook", h.webhook)
	})
	return r
}

type checkoutRequest struct {
	Tier       string `json:"tier"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.StartCheckout(r.Context(), userID, billing.Tier(req.Tier), req.SuccessURL, req.CancelURL)
	switch {
	case errors.Is(err, billing.ErrUnknownTier):
		respondError(w, http.StatusBadRequest, "unknown tier")
	case err != nil:
		h.log.ErrorContext(r.Context(), "checkout failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "could not start checkout")
	default:
		respondJSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
	}
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

type portalResponse struct {
	URL string `json:"url"`
}

func (h *Handler) managePortal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.ManageSubscription(r.Context(), userID, req.ReturnURL)
	switch {
	case errors.Is(err, ErrNoCustomer):
		respondError(w, http.StatusNotFound, "no billing history")
	case err != nil:
		h.log.ErrorContext(r.Context(), "portal session failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "could not open billing portal")
	default:
		respondJSON(w, http.StatusOK, portalResponse{URL: session.URL})
	}
}

func (h *Handler) membersCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountMembers(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "member count failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "could not count members")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// webhook answers 200 for every settled delivery, 400 for payloads that
// fail signature verification, and 500 for transient failures so the
// provider redelivers.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, ErrInvalidWebhook):
		respondError(w, http.StatusBadRequest, "invalid signature")
	case err != nil:
		h.log.ErrorContext(r.Context(), "webhook processing failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "processing failed")
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
