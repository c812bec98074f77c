package remote

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceCountsFromAnalytics(t *testing.T) {
	var analyticsCalls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/accounts/acct1/storage/analytics/stored" {
			analyticsCalls.Add(1)
			assert.Equal(t, "namespaceId", r.URL.Query().Get("dimensions"))
			assert.Equal(t, "storedKeys", r.URL.Query().Get("metrics"))
			writeEnvelope(w, http.StatusOK, map[string]any{
				"success": true,
				"result": map[string]any{
					"data": []map[string]any{
						{"dimensions": []string{"ns1"}, "metrics": [][]float64{{12}}},
						{"dimensions": []string{"ns2"}, "metrics": [][]float64{{3}}},
						{"dimensions": []string{"other"}, "metrics": [][]float64{{99}}},
					},
				},
			})
			return
		}
		t.Errorf("unexpected request %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	counts := client.NamespaceCounts(context.Background(), testCreds, []string{"ns1", "ns2"})
	assert.Equal(t, map[string]int{"ns1": 12, "ns2": 3}, counts)

	counts = client.NamespaceCounts(context.Background(), testCreds, []string{"ns1", "ns2"})
	assert.Equal(t, map[string]int{"ns1": 12, "ns2": 3}, counts)
	assert.Equal(t, int32(1), analyticsCalls.Load())
}

func TestNamespaceCountsListingFallback(t *testing.T) {
	var listings atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/accounts/acct1/storage/analytics/stored":
			writeEnvelope(w, http.StatusForbidden, map[string]any{"success": false})
		case strings.HasSuffix(r.URL.Path, "/ns1/keys"):
			listings.Add(1)
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			writeEnvelope(w, http.StatusOK, map[string]any{
				"success":     true,
				"result":      []map[string]any{{"name": "a"}},
				"result_info": map[string]any{"count": 1, "total_count": 42},
			})
		case strings.HasSuffix(r.URL.Path, "/ns2/keys"):
			listings.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	counts := client.NamespaceCounts(context.Background(), testCreds, []string{"ns1", "ns2"})
	assert.Equal(t, map[string]int{"ns1": 42}, counts)
	assert.Equal(t, int32(2), listings.Load())

	client.ForgetCounts("acct1", "ns1")
	counts = client.NamespaceCounts(context.Background(), testCreds, []string{"ns1"})
	assert.Equal(t, map[string]int{"ns1": 42}, counts)
	assert.Equal(t, int32(3), listings.Load())
}
