package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/travel-sagas/internal/adapter"
	"github.com/voyago/travel-sagas/internal/booking"
	"github.com/voyago/travel-sagas/internal/orchestration"
	"github.com/voyago/travel-sagas/internal/payment"
	"github.com/voyago/travel-sagas/internal/provider"
	"github.com/voyago/travel-sagas/internal/store"
)

type testServer struct {
	*httptest.Server
	hotel *provider.InMemory
	clock *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry := adapter.NewRegistry()
	flight := provider.NewFlight()
	hotel := provider.NewHotel()
	registry.Register(booking.KindFlight, flight)
	registry.Register(booking.KindHotel, hotel)
	registry.Register(booking.KindActivity, provider.NewActivity())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := &testServer{hotel: hotel, clock: &now}

	orch := orchestration.New(registry, store.NewMemory(), payment.NewInMemory(), nil, orchestration.Config{
		Now: func() time.Time { return *ts.clock },
	})
	ts.Server = httptest.NewServer(NewRouter(NewHandler(orch, nil)))
	t.Cleanup(ts.Close)

	return ts
}

func (s *testServer) postJSON(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func submitBody(key string) SubmitRequest {
	return SubmitRequest{
		IdempotencyKey: key,
		Services: []ServiceRequestDTO{
			{Kind: "flight", OfferRef: "FL-MAD-LIM-0800", Party: PartyDTO{LeadName: "Ana", Email: "ana@example.com", Travelers: 2}},
			{Kind: "hotel", OfferRef: "HT-CUZ-CENTRO-2N", Party: PartyDTO{LeadName: "Ana", Travelers: 2}},
		},
		Customer:   CustomerDTO{UserID: "u1", Name: "Ana", Email: "ana@example.com"},
		PaymentRef: "card-tok-1",
	}
}

func TestSubmitAndStatusEndToEnd(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.postJSON(t, "/reservations", submitBody("trip-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "trip-1", created.OrchestrationID)
	assert.Equal(t, string(booking.StatusCompleted), created.Status)
	require.Len(t, created.Legs, 2)
	assert.Equal(t, string(booking.LegConfirmed), created.Legs[0].LegStatus)
	assert.NotEmpty(t, created.Legs[0].BookingID)
	assert.NotEmpty(t, created.CompletedAt)

	// The status endpoint returns the same snapshot.
	getResp, err := http.Get(s.URL + "/reservations/trip-1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched OrchestrationResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	assert.Equal(t, created.OrchestrationID, fetched.OrchestrationID)
	assert.Equal(t, created.Status, fetched.Status)
}

func TestSubmitPartialOutage(t *testing.T) {
	s := newTestServer(t)
	s.hotel.SetDown(true)

	resp, body := s.postJSON(t, "/reservations", submitBody("trip-2"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, string(booking.StatusPartial), created.Status)
	require.Len(t, created.Legs, 2)
	assert.Equal(t, string(booking.LegFailed), created.Legs[1].LegStatus)
	assert.Equal(t, "ProviderUnavailable", created.Legs[1].FailureReason)
}

func TestSubmitIdempotencyKeyHeaderFallback(t *testing.T) {
	s := newTestServer(t)

	reqBody := submitBody("")
	payload, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/reservations", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", "trip-hdr")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created OrchestrationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "trip-hdr", created.OrchestrationID)
}

func TestSubmitValidationErrors(t *testing.T) {
	s := newTestServer(t)

	// No idempotency key anywhere.
	resp, body := s.postJSON(t, "/reservations", submitBody(""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "invalid_request", e.Error)

	// Unknown service kind.
	bad := submitBody("trip-3")
	bad.Services[0].Kind = "submarine"
	resp, body = s.postJSON(t, "/reservations", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "invalid_request", e.Error)
}

func TestCancelEndToEnd(t *testing.T) {
	s := newTestServer(t)

	_, body := s.postJSON(t, "/reservations", submitBody("trip-4"))
	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	bookingID := created.Legs[0].BookingID

	resp, body := s.postJSON(t, "/reservations/cancel", CancelRequest{BookingID: bookingID, Reason: "plans changed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled CancelResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.NotEmpty(t, cancelled.RefundID)
	// Same-day flight cancellation is fee-free.
	assert.InDelta(t, 0.0, cancelled.CancellationFee, 1e-9)
	assert.InDelta(t, 840.0, cancelled.RefundAmount, 1e-9)

	// Cancelling twice is a conflict.
	resp, body = s.postJSON(t, "/reservations/cancel", CancelRequest{BookingID: bookingID, Reason: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "already_cancelled", e.Error)
}

func TestCancelWithNamedRefundPolicy(t *testing.T) {
	s := newTestServer(t)

	_, body := s.postJSON(t, "/reservations", submitBody("trip-policy"))
	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))

	// Five days on, the standard table charges the hotel 15% but a
	// flexible fare cancels free.
	*s.clock = s.clock.Add(5 * 24 * time.Hour)

	resp, body := s.postJSON(t, "/reservations/cancel", CancelRequest{
		BookingID:    created.Legs[1].BookingID,
		Reason:       "flex fare",
		RefundPolicy: "flexible",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled CancelResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.InDelta(t, 0.0, cancelled.CancellationFee, 1e-9)
	assert.InDelta(t, 300.0, cancelled.RefundAmount, 1e-9)

	// The flight leg cancelled under the standard table pays its 10% tier.
	resp, body = s.postJSON(t, "/reservations/cancel", CancelRequest{
		BookingID:    created.Legs[0].BookingID,
		RefundPolicy: "standard",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.InDelta(t, 84.0, cancelled.CancellationFee, 1e-9)
	assert.InDelta(t, 756.0, cancelled.RefundAmount, 1e-9)
}

func TestCancelUnknownRefundPolicy(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.postJSON(t, "/reservations/cancel", CancelRequest{
		BookingID:    "whatever",
		RefundPolicy: "platinum",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "unknown_refund_policy", e.Error)
}

func TestCancelUnknownBooking(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.postJSON(t, "/reservations/cancel", CancelRequest{BookingID: "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModifyEndToEnd(t *testing.T) {
	s := newTestServer(t)

	_, body := s.postJSON(t, "/reservations", submitBody("trip-5"))
	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	oldCode := created.Legs[1].ConfirmationCode

	resp, body := s.postJSON(t, "/reservations/modify", ModifyRequest{
		OrchestrationID: "trip-5",
		LegIndex:        1,
		Changes:         map[string]string{"late_checkout": "true"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var leg LegResponse
	require.NoError(t, json.Unmarshal(body, &leg))
	assert.NotEqual(t, oldCode, leg.ConfirmationCode)

	// Out-of-range leg index.
	resp, _ = s.postJSON(t, "/reservations/modify", ModifyRequest{OrchestrationID: "trip-5", LegIndex: 9})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModifyFailedLegRejected(t *testing.T) {
	s := newTestServer(t)
	s.hotel.SetDown(true)

	_, body := s.postJSON(t, "/reservations", submitBody("trip-6"))
	var created OrchestrationResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, string(booking.LegFailed), created.Legs[1].LegStatus)

	resp, body := s.postJSON(t, "/reservations/modify", ModifyRequest{OrchestrationID: "trip-6", LegIndex: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
}

func TestStatusUnknownOrchestration(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/reservations/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/reservations", "/reservations/cancel", "/reservations/modify"} {
		resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("path %s", path))
	}
}
