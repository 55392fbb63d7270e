package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voyago/travel-sagas/internal/adapter"
	"github.com/voyago/travel-sagas/internal/booking"
	"github.com/voyago/travel-sagas/internal/orchestration"
	"github.com/voyago/travel-sagas/internal/pkg/cache"
	"github.com/voyago/travel-sagas/internal/pkg/requestmeta"
	"github.com/voyago/travel-sagas/internal/refund"
)

const statusCacheTTL = 5 * time.Second

// Handler exposes the reservation orchestrator over HTTP.
// statusCache may be nil — status lookups then always hit the store.
type Handler struct {
	orch        *orchestration.Orchestrator
	statusCache cache.Cache
}

func NewHandler(orch *orchestration.Orchestrator, statusCache cache.Cache) *Handler {
	return &Handler{orch: orch, statusCache: statusCache}
}

// Submit books every requested leg and returns the settled orchestration.
// The idempotency key may come from the body or the X-Idempotency-Key
// header; the body wins when both are present.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = requestmeta.IdempotencyKey(r.Context())
	}

	requests := make([]booking.ServiceRequest, 0, len(req.Services))
	for _, svc := range req.Services {
		requests = append(requests, booking.ServiceRequest{
			Kind:     booking.ServiceKind(svc.Kind),
			OfferRef: svc.OfferRef,
			Party: booking.PartyInfo{
				LeadName:  svc.Party.LeadName,
				Email:     svc.Party.Email,
				Travelers: svc.Party.Travelers,
			},
		})
	}

	customer := booking.CustomerInfo{
		UserID: req.Customer.UserID,
		Name:   req.Customer.Name,
		Email:  req.Customer.Email,
	}

	slog.InfoContext(r.Context(), "submitting reservation",
		"request_id", requestmeta.RequestID(r.Context()),
		"idempotency_key", key,
		"legs", len(requests))

	orch, err := h.orch.Submit(r.Context(), key, requests, customer, req.PaymentRef)
	if err != nil {
		h.writeOrchestrationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrchestration(orch))
}

// Status returns the orchestration snapshot, served from the cache when
// fresh enough.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "orchestration_id_required", "")
		return
	}

	if h.statusCache != nil {
		key := h.statusCache.GenerateKey("status", id)
		if cached, err := h.statusCache.Get(r.Context(), key); err == nil && cached != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	orch, err := h.orch.Status(r.Context(), id)
	if err != nil {
		h.writeOrchestrationError(w, r, err)
		return
	}

	resp := mapOrchestration(orch)
	if h.statusCache != nil {
		if body, err := json.Marshal(resp); err == nil {
			key := h.statusCache.GenerateKey("status", id)
			if err := h.statusCache.Set(r.Context(), key, string(body), statusCacheTTL); err != nil {
				slog.WarnContext(r.Context(), "status cache set failed", "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel unwinds one booking and returns the refund breakdown.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id_required", "")
		return
	}

	policy, err := refund.ByName(req.RefundPolicy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_refund_policy", err.Error())
		return
	}

	rec, err := h.orch.Cancel(r.Context(), req.BookingID, req.Reason, policy)
	if err != nil {
		h.writeOrchestrationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		RefundID:        rec.ID,
		CancellationFee: rec.Fee,
		RefundAmount:    rec.RefundAmount,
		NeedsReview:     rec.NeedsReview,
	})
}

// Modify reroutes a change request for one leg to its provider.
func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	var req ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.OrchestrationID == "" {
		writeError(w, http.StatusBadRequest, "orchestration_id_required", "")
		return
	}

	leg, err := h.orch.Modify(r.Context(), req.OrchestrationID, req.LegIndex, req.Changes)
	if err != nil {
		h.writeOrchestrationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapLeg(leg))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeOrchestrationError translates orchestrator errors to HTTP statuses.
func (h *Handler) writeOrchestrationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orchestration.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, orchestration.ErrNotFound), errors.Is(err, orchestration.ErrLegNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orchestration.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, adapter.ErrModificationRejected):
		writeError(w, http.StatusUnprocessableEntity, "modification_rejected", err.Error())
	case errors.Is(err, adapter.ErrCancellationRejected):
		writeError(w, http.StatusUnprocessableEntity, "cancellation_rejected", err.Error())
	default:
		slog.ErrorContext(r.Context(), "orchestration error", "error", err)
		writeError(w, http.StatusBadGateway, "orchestration_error", err.Error())
	}
}

func mapOrchestration(o *booking.Orchestration) OrchestrationResponse {
	legs := make([]LegResponse, 0, len(o.Legs))
	for _, leg := range o.Legs {
		legs = append(legs, mapLeg(leg))
	}

	resp := OrchestrationResponse{
		OrchestrationID: o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Legs:            legs,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
	if !o.CompletedAt.IsZero() {
		resp.CompletedAt = o.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapLeg(leg booking.BookingLeg) LegResponse {
	return LegResponse{
		Kind:             string(leg.Kind),
		BookingID:        leg.ExternalBookingID,
		ConfirmationCode: leg.ConfirmationCode,
		Amount:           leg.Amount,
		Currency:         leg.Currency,
		LegStatus:        string(leg.Status),
		FailureReason:    leg.FailureReason,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
