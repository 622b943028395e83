package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

func TestInvalidator_PurgeAggregates(t *testing.T) {
	t.Run("posts to the configured endpoint", func(t *testing.T) {
		var method, path string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.Path
			w.WriteHeader(http.StatusAccepted)
		}))
		t.Cleanup(srv.Close)

		inv := NewInvalidator(domain.CacheConfig{PurgeURL: srv.URL + "/internal/cache/purge"})

		require.NoError(t, inv.PurgeAggregates(context.Background()))
		assert.Equal(t, http.MethodPost, method)
		assert.Equal(t, "/internal/cache/purge", path)
	})

	t.Run("reports non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		inv := NewInvalidator(domain.CacheConfig{PurgeURL: srv.URL})

		err := inv.PurgeAggregates(context.Background())
		assert.ErrorContains(t, err, "502")
	})

	t.Run("no-op with empty url", func(t *testing.T) {
		inv := NewInvalidator(domain.CacheConfig{})
		assert.NoError(t, inv.PurgeAggregates(context.Background()))
	})
}
