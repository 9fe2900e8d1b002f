package middleware

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resuradar/internal/shared/crypto/envelope"
)

func newEnvelopeCipher(t *testing.T) *envelope.Cipher {
	t.Helper()
	c, err := envelope.New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	return c
}

func envelopeRouter(cipher *envelope.Cipher, seen *[]byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Envelope(cipher))
	r.POST("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		if seen != nil {
			*seen = body
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "echo": json.RawMessage(body)})
	})
	r.POST("/upload", func(c *gin.Context) {
		if _, err := c.FormFile("resume"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	r.GET("/text", func(c *gin.Context) {
		c.String(http.StatusOK, "plain")
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func decodeEnvelopeResponse(t *testing.T, cipher *envelope.Cipher, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env envelope.Envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, resp.Body.String())
	}
	if env.IV == "" || env.Data == "" {
		t.Fatalf("expected envelope response, got %s", resp.Body.String())
	}
	plain, err := cipher.Decrypt(env)
	if err != nil {
		t.Fatalf("decrypt response: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(plain, &payload); err != nil {
		t.Fatalf("decode plaintext: %v", err)
	}
	return payload
}

func TestEnvelopeDecryptsRequestAndEncryptsResponse(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	var seen []byte
	r := envelopeRouter(cipher, &seen)

	env, err := cipher.Encrypt([]byte(`{"text":"hello"}`))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	body, _ := json.Marshal(env)
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if string(seen) != `{"text":"hello"}` {
		t.Fatalf("handler saw %q", seen)
	}
	payload := decodeEnvelopeResponse(t, cipher, resp)
	echo, _ := payload["echo"].(map[string]any)
	if echo["text"] != "hello" {
		t.Fatalf("unexpected echo payload: %v", payload)
	}
}

func TestEnvelopePassesThroughPlainRequests(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	var seen []byte
	r := envelopeRouter(cipher, &seen)

	for _, body := range []string{`{"text":"plain"}`, `{"iv":"abc"}`, `{"iv":"","data":"x"}`} {
		req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("body %s: expected 200, got %d", body, resp.Code)
		}
		if string(seen) != body {
			t.Fatalf("body %s: handler saw %q", body, seen)
		}
		decodeEnvelopeResponse(t, cipher, resp)
	}
}

func TestEnvelopeRejectsTamperedCiphertext(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	handlerCalled := false
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Envelope(cipher))
	r.POST("/echo", func(c *gin.Context) {
		handlerCalled = true
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	env, _ := cipher.Encrypt([]byte(`{"text":"hello"}`))
	raw, _ := base64.StdEncoding.DecodeString(env.Data)
	env.Data = base64.StdEncoding.EncodeToString(raw[:len(raw)-1])
	body, _ := json.Marshal(env)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler must not run for a rejected envelope")
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["message"] != "Invalid encrypted request" || payload["success"] != false {
		t.Fatalf("unexpected rejection body: %v", payload)
	}
}

func TestEnvelopeRejectsOversizedBody(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	handlerCalled := false
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Envelope(cipher))
	r.POST("/echo", func(c *gin.Context) {
		handlerCalled = true
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	body := `{"iv":"` + strings.Repeat("A", maxEnvelopeBody) + `","data":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler must not run for an oversized body")
	}
}

func TestEnvelopeAcceptsBodyAtLimit(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	var seen []byte
	r := envelopeRouter(cipher, &seen)

	prefix, suffix := `{"text":"`, `"}`
	body := prefix + strings.Repeat("a", maxEnvelopeBody-len(prefix)-len(suffix)) + suffix
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(seen) != maxEnvelopeBody {
		t.Fatalf("expected handler to see %d bytes, got %d", maxEnvelopeBody, len(seen))
	}
}

func TestEnvelopeSkipsMultipartRequests(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	r := envelopeRouter(cipher, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("iv", "not-base64")
	_ = mw.WriteField("data", "not-base64")
	fw, _ := mw.CreateFormFile("resume", "cv.pdf")
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	payload := decodeEnvelopeResponse(t, cipher, resp)
	if payload["success"] != true {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEnvelopeLeavesNonJSONResponses(t *testing.T) {
	cipher := newEnvelopeCipher(t)
	r := envelopeRouter(cipher, nil)

	req := httptest.NewRequest(http.MethodGet, "/text", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Body.String() != "plain" {
		t.Fatalf("expected plain body, got %q", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/empty", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent || resp.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestEnvelopeEncryptionFailureFallsBackToStaticBody(t *testing.T) {
	broken := &envelope.Cipher{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Envelope(broken))
	r.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Body.String() != `{"success":false,"message":"Response encryption failed"}` {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestEnvelopeDisabledWithNilCipher(t *testing.T) {
	r := envelopeRouter(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["success"] != true {
		t.Fatalf("expected plaintext response, got %s", resp.Body.String())
	}
}
