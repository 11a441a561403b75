package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/payments"
)

// newAuthedContext builds a request context with an authenticated user,
// bypassing the middleware. Validation paths run before any service call,
// so a bare Server works.
func newAuthedContext(t *testing.T, method, target string, body string) *echo.Context {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(userContextKey, &models.User{ID: uuid.New(), PreferredLanguage: "pt"})
	return c
}

func assertHTTPError(t *testing.T, err error, wantCode int, wantMsg string) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected echo.HTTPError, got %T", err)
	assert.Equal(t, wantCode, he.Code)
	if wantMsg != "" {
		assert.Contains(t, he.Message, wantMsg)
	}
}

func TestSessionHandlersRequireAuth(t *testing.T) {
	s := &Server{}
	e := echo.New()

	handlers := map[string]func(*echo.Context) error{
		"create":   s.createSessionHandler,
		"list":     s.listSessionsHandler,
		"get":      s.getSessionHandler,
		"finalize": s.finalizeSessionHandler,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			assertHTTPError(t, handler(c), http.StatusUnauthorized, "not authenticated")
		})
	}
}

func TestGetSessionHandlerInvalidID(t *testing.T) {
	s := &Server{}
	c := newAuthedContext(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
	c.SetPathValues(echo.PathValues{{Name: "id", Value: "not-a-uuid"}})

	assertHTTPError(t, s.getSessionHandler(c), http.StatusBadRequest, "invalid session id")
}

func TestListSessionsHandlerValidation(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name   string
		query  string
		errMsg string
	}{
		{"limit zero", "limit=0", "invalid limit"},
		{"limit too large", "limit=500", "invalid limit"},
		{"limit not a number", "limit=ten", "invalid limit"},
		{"negative offset", "offset=-5", "invalid offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAuthedContext(t, http.MethodGet, "/api/v1/sessions?"+tt.query, "")
			assertHTTPError(t, s.listSessionsHandler(c), http.StatusBadRequest, tt.errMsg)
		})
	}
}

func TestAppendBlockHandlerInvalidBody(t *testing.T) {
	s := &Server{}
	c := newAuthedContext(t, http.MethodPost, "/api/v1/sessions/x/blocks", `{"block_type":`)
	c.SetPathValues(echo.PathValues{{Name: "id", Value: uuid.NewString()}})

	assertHTTPError(t, s.appendBlockHandler(c), http.StatusBadRequest, "invalid request body")
}

func TestPresignUploadHandlerMissingSessionID(t *testing.T) {
	s := &Server{}
	c := newAuthedContext(t, http.MethodPost, "/api/v1/uploads/presign",
		`{"type":"audio","content_type":"audio/m4a"}`)

	assertHTTPError(t, s.presignUploadHandler(c), http.StatusBadRequest, "session_id is required")
}

func TestCommitUploadHandlerMissingMediaID(t *testing.T) {
	s := &Server{}
	c := newAuthedContext(t, http.MethodPost, "/api/v1/uploads/commit", `{}`)

	assertHTTPError(t, s.commitUploadHandler(c), http.StatusBadRequest, "media_id is required")
}

func TestDeleteMediaHandlerInvalidMediaID(t *testing.T) {
	s := &Server{}
	c := newAuthedContext(t, http.MethodDelete, "/api/v1/sessions/x/media/y", "")
	c.SetPathValues(echo.PathValues{
		{Name: "id", Value: uuid.NewString()},
		{Name: "mediaId", Value: "not-a-uuid"},
	})

	assertHTTPError(t, s.deleteMediaHandler(c), http.StatusBadRequest, "invalid media id")
}

func TestPaymentHandlersUnavailableWithoutStripe(t *testing.T) {
	s := &Server{}

	t.Run("packages", func(t *testing.T) {
		c := newAuthedContext(t, http.MethodGet, "/api/v1/payments/packages", "")
		assertHTTPError(t, s.listPackagesHandler(c), http.StatusServiceUnavailable, "payments are not configured")
	})

	t.Run("checkout", func(t *testing.T) {
		c := newAuthedContext(t, http.MethodPost, "/api/v1/payments/checkout",
			`{"package_id":"prod_123","success_url":"https://a","cancel_url":"https://b"}`)
		assertHTTPError(t, s.createCheckoutHandler(c), http.StatusServiceUnavailable, "payments are not configured")
	})

	t.Run("webhook", func(t *testing.T) {
		c := newAuthedContext(t, http.MethodPost, "/webhooks/stripe", `{}`)
		assertHTTPError(t, s.stripeWebhookHandler(c), http.StatusServiceUnavailable, "payments are not configured")
	})
}

func TestCheckoutHandlerMissingPackage(t *testing.T) {
	// A non-nil payments service gets past the availability check;
	// package id validation happens before any Stripe call.
	s := &Server{payments: &payments.Service{}}
	c := newAuthedContext(t, http.MethodPost, "/api/v1/payments/checkout", `{}`)

	assertHTTPError(t, s.createCheckoutHandler(c), http.StatusBadRequest, "package_id is required")
}
