package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockedRequestRateLimiter struct {
	allow bool
}

func (m *mockedRequestRateLimiter) Consume(r *http.Request) bool {
	return m.allow
}

func (m *mockedRequestRateLimiter) KeyFor(r *http.Request) string {
	return r.RemoteAddr
}

func TestRateLimitMiddleware(t *testing.T) {
	runTest := func(t *testing.T, allow bool) {
		t.Helper()
		called := false

		w := httptest.NewRecorder()
		middleware := NewRateLimitMiddleware(&mockedRequestRateLimiter{allow: allow})
		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			},
		)

		handler(w, httptest.NewRequest(http.MethodGet, "/tile/osm/1/0/0", nil))

		if allow {
			assert.True(t, called, "Expected handler to be called")
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.False(t, called, "Expected handler to not be called")
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}

	t.Run("allowed", func(t *testing.T) {
		runTest(t, true)
	})

	t.Run("not allowed", func(t *testing.T) {
		runTest(t, false)
	})
}

func TestComposeMiddlewares(t *testing.T) {
	var order []string
	tag := func(name string) func(http.HandlerFunc) http.HandlerFunc {
		return func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next(w, r)
			}
		}
	}

	composed := ComposeMiddlewares(tag("outer"), tag("middle"), tag("inner"))
	handler := composed(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner", "handler"}, order)
}
