package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupPaymentRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User"); userID != "" {
			c.Set("userId", userID)
		}
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(router.Group("/api"))
	return router
}

func paymentRequest(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Test-User", "google:1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body.String(), err)
	}
	return resp, payload
}

func TestInitiatePaymentHandler(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{}, &fakeGranter{})
	router := setupPaymentRouter(svc)

	resp, payload := paymentRequest(t, router, http.MethodPost, "/api/initiate-payment", `{"amount":499,"orderId":"order_1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload["success"] != true || payload["tokenUrl"] != "https://pay.example/order_1" {
		t.Fatalf("unexpected payload %v", payload)
	}

	resp, _ = paymentRequest(t, router, http.MethodPost, "/api/initiate-payment", `{"amount":499,"orderId":"order_1"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}
}

func TestInitiatePaymentValidation(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{}, &fakeGranter{})
	router := setupPaymentRouter(svc)

	bodies := []string{
		`{}`,
		`{"amount":499}`,
		`{"orderId":"order_1"}`,
		`{"amount":-5,"orderId":"order_1"}`,
		`{"amount":499,"orderId":"bad id/with slash"}`,
		`not json`,
	}
	for _, body := range bodies {
		resp, _ := paymentRequest(t, router, http.MethodPost, "/api/initiate-payment", body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{checkoutErr: &GatewayError{StatusCode: 500}}, &fakeGranter{})
	router := setupPaymentRouter(svc)

	resp, _ := paymentRequest(t, router, http.MethodPost, "/api/initiate-payment", `{"amount":10,"orderId":"order_1"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestVerifyPaymentHandler(t *testing.T) {
	gw := &fakeGateway{status: Status{State: StateCompleted, TransactionID: "OM123", Amount: 49900, ExpireAt: 1724866793837}}
	users := &fakeGranter{}
	svc, _ := newPaymentService(gw, users)
	if _, err := svc.Initiate(context.Background(), "google:1", "order_1", 499); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	router := setupPaymentRouter(svc)

	resp, payload := paymentRequest(t, router, http.MethodGet, "/api/verify-payment/order_1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	data, _ := payload["data"].(map[string]any)
	if data["status"] != StateCompleted || data["transactionId"] != "OM123" || data["amount"] != float64(49900) {
		t.Fatalf("unexpected data %v", data)
	}
	if data["errorCode"] != nil {
		t.Fatalf("expected null errorCode, got %v", data["errorCode"])
	}
	if len(users.granted) != 1 || users.granted[0] != "google:1" {
		t.Fatalf("expected premium grant, got %v", users.granted)
	}
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	svc, _ := newPaymentService(&fakeGateway{}, &fakeGranter{})
	router := setupPaymentRouter(svc)

	resp, _ := paymentRequest(t, router, http.MethodGet, "/api/verify-payment/missing", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestValidOrderID(t *testing.T) {
	for _, id := range []string{"order_1", "ORD-2026-0001", "a"} {
		if !ValidOrderID(id) {
			t.Fatalf("expected %q valid", id)
		}
	}
	for _, id := range []string{"", "has space", "../etc", string(bytes.Repeat([]byte("a"), 64))} {
		if ValidOrderID(id) {
			t.Fatalf("expected %q invalid", id)
		}
	}
}
