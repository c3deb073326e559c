package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/app"
	"futuresGuard/internal/domain"
	"futuresGuard/internal/order"
	"futuresGuard/internal/ports"
	"futuresGuard/internal/position"
	"futuresGuard/internal/risk"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Service is the application surface exposed over HTTP. *app.Portfolio satisfies it.
type Service interface {
	AccountSummary() app.AccountSummary
	PositionSummaries() []domain.PositionSummary
	Position(symbol string) (domain.ManagedPosition, bool)
	PositionStats() position.Stats
	RiskSummary() risk.Summary
	ActiveRisks() []domain.RiskEvent
	RecentRiskEvents(limit int) []domain.RiskEvent
	AcknowledgeRisk(ctx context.Context, eventID string) error
	ResolveRisk(ctx context.Context, eventID string) error
	ActivateKillSwitch(ctx context.Context, reason string) error
	DeactivateKillSwitch(ctx context.Context, reason string)
	PauseTrading(ctx context.Context, reason string)
	ResumeTrading(ctx context.Context, reason string) bool
	SubmitMarketOrder(ctx context.Context, in app.Intent) (domain.OrderResult, error)
	SubmitLimitOrder(ctx context.Context, in app.Intent) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ClosePosition(ctx context.Context, symbol string) (domain.ManagedPosition, error)
	SetStops(ctx context.Context, symbol string, stopLoss, takeProfit decimal.NullDecimal) (domain.ManagedPosition, error)
	SetTrailingStop(symbol string, distancePct decimal.Decimal) (domain.ManagedPosition, error)
	ExecutionSummary() order.ExecutionSummary
	ActiveOrders() []domain.Order
}

// NewRouter builds the control surface. metricsHandler may be nil.
func NewRouter(svc Service, metricsHandler http.Handler, logger ports.Logger) *mux.Router {
	h := &handler{svc: svc, logger: logger}

	router := mux.NewRouter()
	router.Use(h.recovery)
	router.Use(h.logging)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/account", h.getAccount).Methods(http.MethodGet)
	api.HandleFunc("/positions", h.getPositions).Methods(http.MethodGet)
	api.HandleFunc("/positions/{symbol}", h.closePosition).Methods(http.MethodDelete)
	api.HandleFunc("/positions/{symbol}/stops", h.updateStops).Methods(http.MethodPatch)

	api.HandleFunc("/orders", h.getOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.submitOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{symbol}/{id}", h.cancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/execution", h.getExecution).Methods(http.MethodGet)

	api.HandleFunc("/risk", h.getRisk).Methods(http.MethodGet)
	api.HandleFunc("/risk/events", h.getRiskEvents).Methods(http.MethodGet)
	api.HandleFunc("/risk/events/{id}/ack", h.acknowledgeRisk).Methods(http.MethodPost)
	api.HandleFunc("/risk/events/{id}/resolve", h.resolveRisk).Methods(http.MethodPost)

	api.HandleFunc("/killswitch", h.activateKillSwitch).Methods(http.MethodPost)
	api.HandleFunc("/killswitch", h.deactivateKillSwitch).Methods(http.MethodDelete)
	api.HandleFunc("/trading/pause", h.pauseTrading).Methods(http.MethodPost)
	api.HandleFunc("/trading/resume", h.resumeTrading).Methods(http.MethodPost)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

type handler struct {
	svc    Service
	logger ports.Logger
}

func (h *handler) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error(r.Context(), fmt.Errorf("panic: %v", rec), "http: handler panicked", map[string]interface{}{
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				})
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug(r.Context(), "http: request served", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
	})
}

// statusFor maps core sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case ports.IsConnectivity(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrKillSwitch):
		return http.StatusConflict
	case errors.Is(err, ports.ErrValidation),
		errors.Is(err, ports.ErrInvalidRequest),
		errors.Is(err, ports.ErrDuplicateSymbol),
		errors.Is(err, ports.ErrInsufficientFunds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), err, "http: "+op+" failed", map[string]interface{}{"path": r.URL.Path})
	}
	writeError(w, status, err.Error())
}
