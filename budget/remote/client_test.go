package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("success - decodes budget", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/budgets/acme", r.URL.Path)
			assert.Equal(t, "key", r.Header.Get("X-Internal-API-Key"))
			w.Write([]byte(`{"spend": 85, "limit": 100, "alert_threshold": 0.8}`))
		}))
		defer srv.Close()

		st, err := NewClient(srv.URL+"/", "key", time.Second).FetchBudget(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", st.TenantID)
		assert.Equal(t, 85.0, st.Spend)
		assert.Equal(t, 100.0, st.Limit)
		assert.Equal(t, 0.8, st.AlertThreshold)
	})

	t.Run("success - not found is an empty budget", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		st, err := NewClient(srv.URL, "", time.Second).FetchBudget(ctx, "acme")
		require.NoError(t, err)
		assert.Zero(t, st.Limit)
	})

	t.Run("error - server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "", time.Second).FetchBudget(ctx, "acme")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("error - slow server hits the client timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "", 50*time.Millisecond).FetchBudget(ctx, "acme")
		require.Error(t, err)
	})

	t.Run("error - missing base url", func(t *testing.T) {
		_, err := NewClient("", "", time.Second).FetchBudget(ctx, "acme")
		require.Error(t, err)
	})
}
