package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"futuresGuard/internal/app"
	"futuresGuard/internal/domain"
	"futuresGuard/internal/order"
)

const maxBodyBytes = 1 << 16

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.AccountSummary())
}

func (h *handler) getPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": h.svc.PositionSummaries(),
		"stats":     h.svc.PositionStats(),
	})
}

func (h *handler) getOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ActiveOrders())
}

func (h *handler) getExecution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ExecutionSummary())
}

func (h *handler) getRisk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.RiskSummary())
}

// getRiskEvents lists active events with ?active=true, otherwise recent history.
func (h *handler) getRiskEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if active, _ := strconv.ParseBool(q.Get("active")); active {
		writeJSON(w, http.StatusOK, h.svc.ActiveRisks())
		return
	}
	limit := 100
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.svc.RecentRiskEvents(limit))
}

func (h *handler) acknowledgeRisk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.AcknowledgeRisk(r.Context(), id); err != nil {
		h.fail(w, r, "acknowledgeRisk", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "acknowledged": true})
}

func (h *handler) resolveRisk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.ResolveRisk(r.Context(), id); err != nil {
		h.fail(w, r, "resolveRisk", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "resolved": true})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func readReason(r *http.Request, fallback string) string {
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Reason) == "" {
		return fallback
	}
	return req.Reason
}

func (h *handler) activateKillSwitch(w http.ResponseWriter, r *http.Request) {
	reason := readReason(r, "Manual kill switch via API")
	if err := h.svc.ActivateKillSwitch(r.Context(), reason); err != nil {
		// The switch is latched even when the flatten failed.
		h.logger.Error(r.Context(), err, "http: activateKillSwitch shutdown incomplete")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"active": true,
			"reason": reason,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": true, "reason": reason})
}

func (h *handler) deactivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	reason := readReason(r, "Manual deactivation via API")
	h.svc.DeactivateKillSwitch(r.Context(), reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": false, "reason": reason})
}

func (h *handler) pauseTrading(w http.ResponseWriter, r *http.Request) {
	reason := readReason(r, "Manual pause via API")
	h.svc.PauseTrading(r.Context(), reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": true, "reason": reason})
}

func (h *handler) resumeTrading(w http.ResponseWriter, r *http.Request) {
	reason := readReason(r, "Manual resume via API")
	if !h.svc.ResumeTrading(r.Context(), reason) {
		writeError(w, http.StatusConflict, "kill switch active; deactivate it first")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": false, "reason": reason})
}

type orderRequest struct {
	Symbol         string              `json:"symbol"`
	Side           string              `json:"side"`
	Type           string              `json:"type"` // market (default) or limit
	Size           decimal.Decimal     `json:"size"`
	Price          decimal.Decimal     `json:"price"`
	StopLoss       decimal.NullDecimal `json:"stop_loss"`
	TakeProfit     decimal.NullDecimal `json:"take_profit"`
	Leverage       int                 `json:"leverage"`
	TimeoutSeconds *int                `json:"timeout_seconds"`
	Strategy       string              `json:"strategy"`
}

func (req orderRequest) intent() app.Intent {
	in := app.Intent{
		Symbol:     strings.ToUpper(req.Symbol),
		Side:       domain.OrderSide(strings.ToUpper(req.Side)),
		Size:       req.Size,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Leverage:   req.Leverage,
		Timeout:    order.UseDefaultTimeout,
		Strategy:   req.Strategy,
	}
	if req.TimeoutSeconds != nil {
		in.Timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	return in
}

func (h *handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		res domain.OrderResult
		err error
	)
	switch strings.ToLower(req.Type) {
	case "", "market":
		res, err = h.svc.SubmitMarketOrder(r.Context(), req.intent())
	case "limit":
		res, err = h.svc.SubmitLimitOrder(r.Context(), req.intent())
	default:
		writeError(w, http.StatusBadRequest, "type must be market or limit")
		return
	}
	if err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{"error": err.Error(), "result": res})
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.CancelOrder(r.Context(), strings.ToUpper(vars["symbol"]), vars["id"]); err != nil {
		h.fail(w, r, "cancelOrder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": vars["id"], "cancelled": true})
}

type closeResponse struct {
	Symbol      string              `json:"symbol"`
	Side        domain.PositionSide `json:"side"`
	Size        decimal.Decimal     `json:"size"`
	EntryPrice  decimal.Decimal     `json:"entry_price"`
	ClosePrice  decimal.Decimal     `json:"close_price"`
	RealizedPnL decimal.Decimal     `json:"realized_pnl"`
	Reason      domain.CloseReason  `json:"close_reason"`
}

func (h *handler) closePosition(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	pos, err := h.svc.ClosePosition(r.Context(), symbol)
	if err != nil {
		h.fail(w, r, "closePosition", err)
		return
	}
	writeJSON(w, http.StatusOK, closeResponse{
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ClosePrice:  pos.ClosePrice,
		RealizedPnL: pos.RealizedPnL,
		Reason:      pos.CloseReason,
	})
}

type stopsResponse struct {
	Symbol       string              `json:"symbol"`
	StopLoss     decimal.NullDecimal `json:"stop_loss"`
	TakeProfit   decimal.NullDecimal `json:"take_profit"`
	TrailingStop decimal.NullDecimal `json:"trailing_stop"`
}

// updateStops applies a partial update. Absent keys keep the current level,
// an explicit null clears it.
func (h *handler) updateStops(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	var raw map[string]jsoniter.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	pos, ok := h.svc.Position(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no open position for "+symbol)
		return
	}

	stopLoss, takeProfit := pos.StopLoss, pos.TakeProfit
	_, hasSL := raw["stop_loss"]
	_, hasTP := raw["take_profit"]
	var err error
	if hasSL {
		if stopLoss, err = nullablePrice(raw["stop_loss"]); err != nil {
			writeError(w, http.StatusBadRequest, "invalid stop_loss")
			return
		}
	}
	if hasTP {
		if takeProfit, err = nullablePrice(raw["take_profit"]); err != nil {
			writeError(w, http.StatusBadRequest, "invalid take_profit")
			return
		}
	}
	trailingRaw, hasTrail := raw["trailing_distance_pct"]
	if !hasSL && !hasTP && !hasTrail {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if hasSL || hasTP {
		if pos, err = h.svc.SetStops(r.Context(), symbol, stopLoss, takeProfit); err != nil {
			h.fail(w, r, "updateStops", err)
			return
		}
	}
	if hasTrail {
		var dist decimal.Decimal
		if err := json.Unmarshal(trailingRaw, &dist); err != nil {
			writeError(w, http.StatusBadRequest, "invalid trailing_distance_pct")
			return
		}
		if pos, err = h.svc.SetTrailingStop(symbol, dist); err != nil {
			h.fail(w, r, "updateStops", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, stopsResponse{
		Symbol:       pos.Symbol,
		StopLoss:     pos.StopLoss,
		TakeProfit:   pos.TakeProfit,
		TrailingStop: pos.TrailingStop,
	})
}

func nullablePrice(raw jsoniter.RawMessage) (decimal.NullDecimal, error) {
	if strings.TrimSpace(string(raw)) == "null" {
		return decimal.NullDecimal{}, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.NullDecimal{}, err
	}
	return domain.Price(d), nil
}

// decodeBody reads a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
