package admissionservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
	"github.com/crowdlunch/admission/internal/shared/logger"
)

// HTTPHandler adapts HTTP requests to the AdmissionService.
type HTTPHandler struct {
	svc    ports.AdmissionService
	clock  ports.Clock
	logger *logger.Logger
}

// NewHTTPHandler wires an HTTP handler around the AdmissionService.
func NewHTTPHandler(svc ports.AdmissionService, clock ports.Clock, logger *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, clock: clock, logger: logger}
}

// Register mounts the admission routes on the provided mux.
func (handler *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", handler.handlePlaceOrder)
	mux.HandleFunc("GET /slots", handler.handleListSlots)
	mux.HandleFunc("GET /server-time", handler.handleServerTime)
	mux.HandleFunc("GET /healthz", handler.handleHealthz)
}

// --- Request/Response DTOs (HTTP boundary) ---

type placeOrderRequest struct {
	ServeDate        string                  `json:"serve_date"`
	PickupAt         *time.Time              `json:"pickup_at,omitempty"`
	RequestTime      string                  `json:"request_time,omitempty"` // legacy slot label
	TimeSlotID       *int64                  `json:"time_slot_id,omitempty"`
	DeliveryType     string                  `json:"delivery_type"`
	DeliveryLocation *string                 `json:"delivery_location,omitempty"`
	Department       *string                 `json:"department,omitempty"`
	Name             *string                 `json:"name,omitempty"`
	Items            []placeOrderItemRequest `json:"items"`
}

type placeOrderItemRequest struct {
	MenuItemID int64 `json:"menu_item_id"`
	Qty        int   `json:"qty"`
}

type placeOrderResponse struct {
	OrderCode  string             `json:"order_code"`
	PickupAt   time.Time          `json:"pickup_at"`
	TimeSlotID *int64             `json:"time_slot_id,omitempty"`
	TotalPrice int64              `json:"total_price"`
	Items      []admittedItemBody `json:"items"`
}

type admittedItemBody struct {
	MenuItemID int64  `json:"menu_item_id"`
	Title      string `json:"title"`
	Qty        int    `json:"qty"`
	UnitPrice  int64  `json:"unit_price"`
}

type slotResponse struct {
	ID            int64     `json:"id"`
	StartAt       time.Time `json:"start_at"`
	MaxOrders     int       `json:"max_orders"`
	ReservedCount int       `json:"reserved_count"`
}

type rejectionBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	MenuItemID int64  `json:"menu_item_id,omitempty"`
}

// --- Handlers ---

func (handler *HTTPHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", errors.New("unsupported content type: "+ct))
		return
	}

	var req placeOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	cmd, err := toPlaceOrderCommand(req)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	handler.logger.Debug(ctx, "order_received", "new admission request", map[string]any{
		"serve_date":  req.ServeDate,
		"items_count": len(req.Items),
	})

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	admitted, err := handler.svc.PlaceOrder(ctxWithTimeout, cmd)
	if err != nil {
		handler.admissionError(ctxWithTimeout, w, err)
		return
	}

	resp := placeOrderResponse{
		OrderCode:  admitted.OrderCode,
		PickupAt:   admitted.PickupAt,
		TimeSlotID: admitted.TimeSlotID,
		TotalPrice: int64(admitted.TotalPrice),
	}
	resp.Items = make([]admittedItemBody, len(admitted.Items))
	for i, it := range admitted.Items {
		resp.Items[i] = admittedItemBody{
			MenuItemID: it.MenuItemID,
			Title:      it.Title,
			Qty:        it.Quantity,
			UnitPrice:  int64(it.UnitPrice),
		}
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, resp)
}

func (handler *HTTPHandler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context())

	date, err := admission.ParseServiceDate(r.URL.Query().Get("date"))
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slots, err := handler.svc.AvailableSlots(ctxWithTimeout, date)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to list slots", err)
		return
	}

	resp := make([]slotResponse, len(slots))
	for i, s := range slots {
		resp[i] = slotResponse{
			ID:            s.ID,
			StartAt:       s.StartAt,
			MaxOrders:     s.MaxOrders,
			ReservedCount: s.ReservedCount,
		}
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, resp)
}

// handleServerTime exposes the service clock; client-side validation tooling
// compares against it.
func (handler *HTTPHandler) handleServerTime(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context())
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{
		"server_time": handler.clock.Now().Format(time.RFC3339),
	})
}

func (handler *HTTPHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func toPlaceOrderCommand(req placeOrderRequest) (ports.PlaceOrderCommand, error) {
	date, err := admission.ParseServiceDate(req.ServeDate)
	if err != nil {
		return ports.PlaceOrderCommand{}, errors.New("serve_date must be YYYY-MM-DD")
	}

	items := make([]ports.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = ports.ItemInput{MenuItemID: it.MenuItemID, Quantity: it.Qty}
	}

	return ports.PlaceOrderCommand{
		ServeDate:        date,
		PickupAt:         req.PickupAt,
		RequestTime:      req.RequestTime,
		TimeSlotID:       req.TimeSlotID,
		DeliveryType:     admission.DeliveryType(strings.ToLower(strings.TrimSpace(req.DeliveryType))),
		DeliveryLocation: req.DeliveryLocation,
		Department:       req.Department,
		CustomerName:     req.Name,
		Items:            items,
	}, nil
}

// admissionError maps service errors onto the HTTP surface: taxonomy
// rejections to 422, the transient allocation conflict to 409, malformed
// commands to 400. Everything else is an infrastructure failure: 500 with a
// generic body, details only in the log.
func (handler *HTTPHandler) admissionError(ctx context.Context, w http.ResponseWriter, err error) {
	var rej *admission.Rejection
	if errors.As(err, &rej) {
		status := http.StatusUnprocessableEntity
		if rej.Code == admission.CodeAllocationConflict {
			status = http.StatusConflict
		}
		handler.logger.Debug(ctx, "order_rejected", string(rej.Code), nil)
		handler.jsonResponse(ctx, w, status, rejectionBody{
			Code:       string(rej.Code),
			Message:    rej.Message,
			MenuItemID: rej.MenuItemID,
		})
		return
	}

	var badReq *BadRequestError
	if errors.As(err, &badReq) {
		handler.httpError(ctx, w, http.StatusBadRequest, badReq.Error(), err)
		return
	}
	handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
}

// withReqID attaches a fresh request id to the context for log correlation.
func (handler *HTTPHandler) withReqID(ctx context.Context) context.Context {
	return handler.logger.WithRequestID(ctx, uuid.NewString())
}

// httpError sends a JSON error response with a message.
func (handler *HTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
	case status == http.StatusBadRequest:
		action = "validation_failed"
	case status == http.StatusUnsupportedMediaType:
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// jsonResponse encodes data and writes it with the given status.
func (handler *HTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// Encode to a buffer first so we can still control the status on failure.
	buf, err := json.Marshal(data)
	if err != nil {
		handler.logger.Error(ctx, "response_encode_failed", "failed to encode response", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}
