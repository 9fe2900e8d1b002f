package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resuradar/internal/shared/crypto/envelope"
	"resuradar/internal/shared/metrics"
	"resuradar/internal/shared/telemetry"
)

const maxEnvelopeBody = 5 << 20 // 5MB

var encryptionFailedBody = []byte(`{"success":false,"message":"Response encryption failed"}`)

// Envelope decrypts {iv, data} request bodies and encrypts every JSON response.
// A nil cipher disables the transform.
func Envelope(cipher *envelope.Cipher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cipher == nil {
			c.Next()
			return
		}

		if ok := decryptRequest(c, cipher); !ok {
			return
		}

		w := &envelopeWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter
		w.flush(c, cipher)
	}
}

func decryptRequest(c *gin.Context, cipher *envelope.Cipher) bool {
	req := c.Request
	if !methodHasBody(req.Method) || isMultipart(req) || req.Body == nil || req.Body == http.NoBody {
		return true
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, req.Body, maxEnvelopeBody))
	_ = req.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rejectOversized(c, tooLarge.Limit)
			return false
		}
		rejectEncrypted(c, err)
		return false
	}

	if env, ok := envelopeShape(raw); ok {
		plain, err := cipher.Decrypt(env)
		if err == nil && !json.Valid(plain) {
			err = &envelope.DecryptionError{Reason: "plaintext is not JSON"}
		}
		if err != nil {
			rejectEncrypted(c, err)
			return false
		}
		raw = plain
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(len(raw))
		req.Header.Set("Content-Length", strconv.Itoa(len(raw)))
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	return true
}

// envelopeShape reports whether the body is a JSON object carrying both iv and data.
func envelopeShape(raw []byte) (envelope.Envelope, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return envelope.Envelope{}, false
	}
	ivRaw, hasIV := probe["iv"]
	dataRaw, hasData := probe["data"]
	if !hasIV || !hasData || isFalsy(ivRaw) || isFalsy(dataRaw) {
		return envelope.Envelope{}, false
	}
	var env envelope.Envelope
	// Non-string members still count as an envelope attempt and fail decryption.
	_ = json.Unmarshal(ivRaw, &env.IV)
	_ = json.Unmarshal(dataRaw, &env.Data)
	return env, true
}

func isFalsy(v json.RawMessage) bool {
	switch strings.TrimSpace(string(v)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

func rejectEncrypted(c *gin.Context, err error) {
	metrics.IncEnvelopeFailure("request")
	telemetry.Warn("envelope.decrypt_failed", map[string]any{
		"request_id": RequestIDFromContext(c),
		"path":       c.Request.URL.Path,
		"error":      err.Error(),
	})
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Invalid encrypted request",
	})
}

func rejectOversized(c *gin.Context, limit int64) {
	telemetry.Warn("envelope.body_too_large", map[string]any{
		"request_id": RequestIDFromContext(c),
		"path":       c.Request.URL.Path,
		"limit":      limit,
	})
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"success": false,
		"message": "Request body too large",
	})
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func isJSONContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// envelopeWriter buffers the handler's body so it can be sealed before it reaches the client.
type envelopeWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *envelopeWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *envelopeWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *envelopeWriter) flush(c *gin.Context, cipher *envelope.Cipher) {
	body := w.buf.Bytes()
	if len(body) == 0 {
		w.ResponseWriter.WriteHeaderNow()
		return
	}
	if !isJSONContent(w.Header().Get("Content-Type")) {
		_, _ = w.ResponseWriter.Write(body)
		return
	}

	out, err := seal(cipher, body)
	if err != nil {
		metrics.IncEnvelopeFailure("response")
		telemetry.Error("envelope.encrypt_failed", map[string]any{
			"request_id": RequestIDFromContext(c),
			"path":       c.Request.URL.Path,
			"error":      err.Error(),
		})
		out = encryptionFailedBody
	}
	w.Header().Del("Content-Length")
	_, _ = w.ResponseWriter.Write(out)
}

func seal(cipher *envelope.Cipher, body []byte) ([]byte, error) {
	env, err := cipher.Encrypt(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
