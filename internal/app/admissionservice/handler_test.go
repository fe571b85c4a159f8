package admissionservice

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/shared/logger"
)

func newTestServer(t *testing.T) (*serviceFixture, *httptest.Server) {
	t.Helper()
	f := newFixture(t)
	h := NewHTTPHandler(f.svc, f.clock, logger.NewLogger("admission-test"))
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func postOrder(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/orders", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /orders: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func TestHandlePlaceOrderCreated(t *testing.T) {
	f, srv := newTestServer(t)
	f.addBento(1, 500, intPtr(10))

	resp := postOrder(t, srv, `{
		"serve_date": "2025-06-10",
		"request_time": "12:30～12:45",
		"delivery_type": "pickup",
		"items": [{"menu_item_id": 1, "qty": 2}]
	}`)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var body struct {
		OrderCode  string `json:"order_code"`
		TotalPrice int64  `json:"total_price"`
		Items      []struct {
			MenuItemID int64 `json:"menu_item_id"`
			Qty        int   `json:"qty"`
		} `json:"items"`
	}
	decodeBody(t, resp, &body)

	if body.OrderCode != "#0610001" {
		t.Errorf("order_code = %q, want %q", body.OrderCode, "#0610001")
	}
	if body.TotalPrice != 1000 {
		t.Errorf("total_price = %d, want 1000", body.TotalPrice)
	}
	if len(body.Items) != 1 || body.Items[0].Qty != 2 {
		t.Errorf("items = %+v, want one line with qty 2", body.Items)
	}
}

func TestHandlePlaceOrderRejection(t *testing.T) {
	f, srv := newTestServer(t)
	f.addBento(1, 500, intPtr(10))
	f.clock.set(testDay.At(18, 15))

	resp := postOrder(t, srv, `{
		"serve_date": "2025-06-10",
		"request_time": "18:20",
		"delivery_type": "pickup",
		"items": [{"menu_item_id": 1, "qty": 1}]
	}`)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	if body.Code != string(admission.CodeCafeTimeClosed) {
		t.Errorf("code = %q, want %q", body.Code, admission.CodeCafeTimeClosed)
	}
	if body.Message == "" {
		t.Error("rejection message is empty")
	}
}

func TestHandlePlaceOrderRejectionNamesItem(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postOrder(t, srv, `{
		"serve_date": "2025-06-10",
		"request_time": "12:30",
		"delivery_type": "pickup",
		"items": [{"menu_item_id": 42, "qty": 1}]
	}`)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Code       string `json:"code"`
		MenuItemID int64  `json:"menu_item_id"`
	}
	decodeBody(t, resp, &body)
	if body.Code != string(admission.CodeMenuNotAvailable) {
		t.Errorf("code = %q, want %q", body.Code, admission.CodeMenuNotAvailable)
	}
	if body.MenuItemID != 42 {
		t.Errorf("menu_item_id = %d, want 42", body.MenuItemID)
	}
}

func TestHandlePlaceOrderBadRequests(t *testing.T) {
	f, srv := newTestServer(t)
	f.addBento(1, 500, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalidJSON", body: `{`},
		{name: "unknownField", body: `{"serve_date":"2025-06-10","surprise":true}`},
		{name: "badServeDate", body: `{"serve_date":"06/10","request_time":"12:30","delivery_type":"pickup","items":[{"menu_item_id":1,"qty":1}]}`},
		{name: "noItems", body: `{"serve_date":"2025-06-10","request_time":"12:30","delivery_type":"pickup","items":[]}`},
		{name: "badDeliveryType", body: `{"serve_date":"2025-06-10","request_time":"12:30","delivery_type":"drone","items":[{"menu_item_id":1,"qty":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postOrder(t, srv, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

// An unreachable database is an internal failure: 500 with a generic body,
// never a caller error, and the driver error text stays out of the response.
func TestHandlePlaceOrderStorageFailure(t *testing.T) {
	f, srv := newTestServer(t)
	f.addBento(1, 500, nil)
	f.store.txErr = errors.New("begin tx: dial tcp 127.0.0.1:5432: connect: connection refused")

	resp := postOrder(t, srv, `{
		"serve_date": "2025-06-10",
		"request_time": "12:30",
		"delivery_type": "pickup",
		"items": [{"menu_item_id": 1, "qty": 1}]
	}`)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(string(raw), "dial tcp") {
		t.Errorf("response body leaks the driver error: %s", raw)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "internal error" {
		t.Errorf("error = %q, want generic %q", body.Error, "internal error")
	}
}

func TestHandlePlaceOrderUnsupportedMediaType(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/orders", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("POST /orders: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestHandleListSlots(t *testing.T) {
	f, srv := newTestServer(t)
	f.clock.set(testDay.At(9, 0))

	resp, err := http.Get(srv.URL + "/slots?date=2025-06-10")
	if err != nil {
		t.Fatalf("GET /slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var slots []struct {
		ID            int64     `json:"id"`
		StartAt       time.Time `json:"start_at"`
		MaxOrders     int       `json:"max_orders"`
		ReservedCount int       `json:"reserved_count"`
	}
	decodeBody(t, resp, &slots)
	if len(slots) != 12 {
		t.Fatalf("got %d slots, want 12", len(slots))
	}
	if slots[0].MaxOrders != admission.SlotMaxOrders {
		t.Errorf("max_orders = %d, want %d", slots[0].MaxOrders, admission.SlotMaxOrders)
	}
}

func TestHandleListSlotsBadDate(t *testing.T) {
	_, srv := newTestServer(t)

	for _, q := range []string{"", "?date=", "?date=June-10"} {
		resp, err := http.Get(srv.URL + "/slots" + q)
		if err != nil {
			t.Fatalf("GET /slots%s: %v", q, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET /slots%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestHandleServerTime(t *testing.T) {
	f, srv := newTestServer(t)
	f.clock.set(testDay.At(9, 30))

	resp, err := http.Get(srv.URL + "/server-time")
	if err != nil {
		t.Fatalf("GET /server-time: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		ServerTime string `json:"server_time"`
	}
	decodeBody(t, resp, &body)
	got, err := time.Parse(time.RFC3339, body.ServerTime)
	if err != nil {
		t.Fatalf("server_time %q is not RFC3339: %v", body.ServerTime, err)
	}
	if !got.Equal(testDay.At(9, 30)) {
		t.Errorf("server_time = %v, want %v", got, testDay.At(9, 30))
	}
}

func TestHandleHealthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders")
	if err != nil {
		t.Fatalf("GET /orders: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
