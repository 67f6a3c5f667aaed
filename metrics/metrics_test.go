package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	tests := map[string]error{
		"ok":                  nil,
		"invalid_input":       services.ValidationError{Msg: "bad"},
		"conflict":            services.ConflictError{Field: "email"},
		"invalid_credentials": services.ErrCurrentPassword,
		"forbidden":           services.ErrForbidden,
		"not_found":           services.ErrNotFound,
		"unavailable":         fmt.Errorf("login: %w", services.ErrUnavailable),
		"error":               errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, Outcome(err), "err=%v", err)
	}
}

func TestObserveIdentityOp(t *testing.T) {
	m := New()
	m.ObserveIdentityOp("login", nil)
	m.ObserveIdentityOp("login", services.ErrInvalidCredentials)
	m.ObserveIdentityOp("login", services.ErrInvalidCredentials)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityOpsTotal.WithLabelValues("login", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IdentityOpsTotal.WithLabelValues("login", "invalid_credentials")))
}

func TestObserveStoreState(t *testing.T) {
	m := New()
	m.ObserveStoreState(database.StateConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreUp))
	m.ObserveStoreState(database.StateConnecting)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreUp))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveStoreState(database.StateConnected)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "authgate_store_up 1")
}
