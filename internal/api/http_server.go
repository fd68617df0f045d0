package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/export"
	"gatepass/internal/gateway"
	"gatepass/internal/metrics"
	"gatepass/internal/models"
	"gatepass/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking pipeline and the gate scanner as a
// JSON API.
type HTTPServer struct {
	cfg        config.ServerConfig
	bookings   *service.BookingService
	redemption *service.RedemptionService
	exporter   *export.Exporter
	server     *http.Server
	auth       *Auth
	logger     zerolog.Logger
}

func NewHTTPServer(
	cfg config.ServerConfig,
	bookings *service.BookingService,
	redemption *service.RedemptionService,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:        cfg,
		bookings:   bookings,
		redemption: redemption,
		exporter:   exporter,
		logger:     l,
	}
	srv.auth = NewAuth(cfg)

	mux.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingSubroute)
	mux.HandleFunc("/api/v1/payments/confirm", srv.handleConfirmPayment)
	mux.HandleFunc("/api/v1/scan/lookup", srv.handleScanLookup)
	mux.HandleFunc("/api/v1/scan/redeem", srv.handleScanRedeem)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler exposes the configured handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("create_booking")

	type request struct {
		EventDate       string            `json:"event_date"`
		RequestedCounts models.PassCounts `json:"requested_counts"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eventDate, err := time.Parse("2006-01-02", strings.TrimSpace(body.EventDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event_date; expected YYYY-MM-DD")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), eventDate, body.RequestedCounts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

// handleBookingSubroute dispatches /api/v1/bookings/{id}/attendee and
// /api/v1/bookings/{id}/order.
func (s *HTTPServer) handleBookingSubroute(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	bookingID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch parts[1] {
	case "attendee":
		s.handleAttachAttendee(w, r, bookingID)
	case "order":
		s.handleCreateOrder(w, r, bookingID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleAttachAttendee(w http.ResponseWriter, r *http.Request, bookingID int64) {
	metrics.IncHTTP("attach_attendee")

	type request struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	attendee, err := s.bookings.AttachAttendee(r.Context(), bookingID, body.Name, body.Email, body.Phone)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"attendee": attendee})
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request, bookingID int64) {
	metrics.IncHTTP("create_order")

	order, err := s.bookings.CreateOrder(r.Context(), bookingID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"gateway_order_id": order.GatewayOrderID,
		"amount":           order.AmountPaise,
		"currency":         order.Currency,
		"receipt":          order.Receipt,
	})
}

func (s *HTTPServer) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("confirm_payment")

	type request struct {
		BookingID      int64  `json:"booking_id"`
		GatewayOrderID string `json:"gateway_order_id"`
		PaymentID      string `json:"payment_id"`
		Signature      string `json:"signature"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.BookingID <= 0 || body.GatewayOrderID == "" || body.PaymentID == "" || body.Signature == "" {
		writeError(w, http.StatusBadRequest, "booking_id, gateway_order_id, payment_id and signature are required")
		return
	}

	booking, err := s.bookings.Confirm(r.Context(), service.ConfirmRequest{
		BookingID:      body.BookingID,
		GatewayOrderID: body.GatewayOrderID,
		PaymentID:      body.PaymentID,
		Signature:      body.Signature,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "confirmed",
		"booking": booking,
	})
}

func (s *HTTPServer) handleScanLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("scan_lookup")

	type request struct {
		QRPayload string `json:"qr_payload"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.redemption.Lookup(r.Context(), body.QRPayload)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleScanRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("scan_redeem")

	type request struct {
		BookingID    int64 `json:"booking_id"`
		TicketNumber int   `json:"ticket_number"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.BookingID <= 0 || body.TicketNumber <= 0 {
		writeError(w, http.StatusBadRequest, "booking_id and ticket_number are required")
		return
	}

	ticket, err := s.redemption.Redeem(r.Context(), body.BookingID, body.TicketNumber)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export")

	from, err := time.Parse("2006-01-02", strings.TrimSpace(r.URL.Query().Get("from")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", strings.TrimSpace(r.URL.Query().Get("to")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	buf, err := s.exporter.Build(r.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("build export")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("bookings_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeServiceError maps service and store errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrAttendeeNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrTicketExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, database.ErrTicketUsed),
		errors.Is(err, database.ErrTicketsExist),
		errors.Is(err, database.ErrAttendeeExists),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, service.ErrBookingNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "payment_verification_failed")
	case errors.Is(err, gateway.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	case errors.Is(err, models.ErrNoTickets),
		errors.Is(err, models.ErrUnknownPassKind),
		errors.Is(err, models.ErrNegativeCount),
		errors.Is(err, models.ErrBoysWithoutGirls),
		errors.Is(err, service.ErrEventDatePast),
		errors.Is(err, service.ErrInvalidAttendee),
		errors.Is(err, service.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
