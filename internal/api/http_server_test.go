package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/events"
	"gatepass/internal/export"
	"gatepass/internal/gateway"
	"gatepass/internal/models"
	"gatepass/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test_gateway_secret"
	scannerKey   = "scanner-key-1"
	adminKey     = "admin-key-1"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type stubGateway struct {
	orders int
}

func (g *stubGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.OrderRef, error) {
	g.orders++
	return &gateway.OrderRef{
		ID:          fmt.Sprintf("order_%d", g.orders),
		AmountPaise: req.AmountPaise,
		Currency:    req.Currency,
	}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(orderID, paymentID, signature, testSecret)
}

type stubQueue struct{}

func (stubQueue) EnqueueIssued(context.Context, int64) error { return nil }

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Port: 0,
		Auth: config.AuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: scannerKey, Name: "gate-scanner", Permissions: []string{PermissionScan}},
				{Key: adminKey, Name: "admin", Permissions: []string{PermissionScan, PermissionExport}},
			},
		},
	}
}

func newTestServer(t *testing.T) (http.Handler, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tz := time.FixedZone("IST", 5*3600+30*60)
	bookings := service.NewBookingService(db, &stubGateway{}, stubQueue{}, events.NewEventBus(), tz, nil)
	redemption := service.NewRedemptionService(db, events.NewEventBus(), nil)
	exporter := export.NewExporter(db)

	srv := NewHTTPServer(testServerConfig(), bookings, redemption, exporter, nil)
	return srv.Handler(), db
}

func doJSON(t *testing.T, handler http.Handler, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// runHTTPPipeline drives a booking from creation through payment
// confirmation over the HTTP surface and returns the booking id.
func runHTTPPipeline(t *testing.T, handler http.Handler) int64 {
	t.Helper()
	eventDate := time.Now().AddDate(0, 0, 14).Format("2006-01-02")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings", "", map[string]any{
		"event_date":       eventDate,
		"requested_counts": map[string]int{"girls": 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody(t, rec)["booking"].(map[string]any)
	bookingID := int64(booking["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/attendee", bookingID), "", map[string]any{
		"name":  "Asha Rao",
		"email": "asha@example.com",
		"phone": "+911234567890",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/order", bookingID), "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderBody := decodeBody(t, rec)
	orderID := orderBody["gateway_order_id"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/payments/confirm", "", map[string]any{
		"booking_id":       bookingID,
		"gateway_order_id": orderID,
		"payment_id":       "pay_1",
		"signature":        gateway.SignPayment(orderID, "pay_1", testSecret),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return bookingID
}

func TestBookingPipelineOverHTTP(t *testing.T) {
	handler, db := newTestServer(t)

	bookingID := runHTTPPipeline(t, handler)

	booking, err := db.GetBooking(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFulfilled, booking.State)

	tickets, err := db.ListTickets(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestCreateBookingRejectsBoysWithoutGirls(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings", "", map[string]any{
		"event_date":       time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"requested_counts": map[string]int{"boys": 2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingRejectsBadDate(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings", "", map[string]any{
		"event_date":       "31-12-2026",
		"requested_counts": map[string]int{"girls": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmRejectsForgedSignature(t *testing.T) {
	handler, db := newTestServer(t)
	ctx := context.Background()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings", "", map[string]any{
		"event_date":       time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"requested_counts": map[string]int{"girls": 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	booking := decodeBody(t, rec)["booking"].(map[string]any)
	bookingID := int64(booking["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/attendee", bookingID), "", map[string]any{
		"name": "Asha", "email": "asha@example.com", "phone": "+91123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/order", bookingID), "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody(t, rec)["gateway_order_id"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/payments/confirm", "", map[string]any{
		"booking_id":       bookingID,
		"gateway_order_id": orderID,
		"payment_id":       "pay_1",
		"signature":        "forged",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment_verification_failed", decodeBody(t, rec)["error"])

	got, err := db.GetBooking(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)
}

func TestScanRequiresAPIKey(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", "", map[string]any{
		"booking_id": 1, "ticket_number": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", "wrong-key", map[string]any{
		"booking_id": 1, "ticket_number": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportRequiresExportPermission(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/export?from=2026-01-01&to=2026-01-31", scannerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/export?from=2026-01-01&to=2026-01-31", adminKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMimeType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_2026-01-01_2026-01-31.xlsx")
}

func TestScanLookupAndRedeem(t *testing.T) {
	handler, db := newTestServer(t)
	ctx := context.Background()

	bookingID := runHTTPPipeline(t, handler)
	tickets, err := db.ListTickets(ctx, bookingID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/scan/lookup", scannerKey, map[string]any{
		"qr_payload": tickets[0].QRPayload,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", scannerKey, map[string]any{
		"booking_id": bookingID, "ticket_number": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Second scan of the same ticket is rejected as a conflict.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", scannerKey, map[string]any{
		"booking_id": bookingID, "ticket_number": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown tickets come back as 404.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", scannerKey, map[string]any{
		"booking_id": bookingID, "ticket_number": 99,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanRedeemExpiredTicket(t *testing.T) {
	handler, db := newTestServer(t)
	ctx := context.Background()

	bookingID := runHTTPPipeline(t, handler)

	// Backdate the expiry, then sweep-style expire the tickets.
	_, err := db.ExecContext(ctx,
		`UPDATE tickets SET expiry = ? WHERE booking_id = ?`,
		time.Now().Add(-time.Hour).UTC(), bookingID)
	require.NoError(t, err)
	_, err = db.ExpireTickets(ctx, time.Now())
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/scan/redeem", scannerKey, map[string]any{
		"booking_id": bookingID, "ticket_number": 1,
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestUnknownBookingSubroute(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings/1/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bookings/abc/order", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
