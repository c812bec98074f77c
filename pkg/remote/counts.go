package remote

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/beam-cloud/airkv/pkg/metrics"
	"github.com/beam-cloud/airkv/pkg/types"
)

type analyticsResult struct {
	Data []struct {
		Dimensions []string    `json:"dimensions"`
		Metrics    [][]float64 `json:"metrics"`
	} `json:"data"`
}

func countKey(accountID, namespaceID string) string {
	return accountID + "/" + namespaceID
}

// NamespaceCounts returns best-effort key counts for the given namespaces.
// Namespaces whose count could not be determined are absent from the result.
func (c *Client) NamespaceCounts(ctx context.Context, creds types.Credentials, namespaceIDs []string) map[string]int {
	counts := make(map[string]int, len(namespaceIDs))
	var missing []string
	for _, id := range namespaceIDs {
		if n, ok := c.counts.Get(countKey(creds.AccountID, id)); ok {
			metrics.RecordCountCache(true)
			counts[id] = n
			continue
		}
		metrics.RecordCountCache(false)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return counts
	}

	sort.Strings(missing)
	flightKey := creds.AccountID + ":" + strings.Join(missing, ",")
	v, _, _ := c.group.Do(flightKey, func() (any, error) {
		fetched := c.fetchCounts(ctx, creds, missing)
		for id, n := range fetched {
			c.counts.Add(countKey(creds.AccountID, id), n)
		}
		return fetched, nil
	})

	for id, n := range v.(map[string]int) {
		counts[id] = n
	}
	return counts
}

// fetchCounts reads the account analytics first and asks each namespace listing only when that yields nothing.
func (c *Client) fetchCounts(ctx context.Context, creds types.Credentials, namespaceIDs []string) map[string]int {
	wanted := make(map[string]struct{}, len(namespaceIDs))
	for _, id := range namespaceIDs {
		wanted[id] = struct{}{}
	}

	counts := make(map[string]int, len(namespaceIDs))
	for id, n := range c.analyticsCounts(ctx, creds) {
		if _, ok := wanted[id]; ok {
			counts[id] = n
		}
	}
	if len(counts) > 0 {
		return counts
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.countConcurrency)
	for _, id := range namespaceIDs {
		g.Go(func() error {
			n, err := c.listingCount(gctx, creds, id)
			if err != nil {
				log.Debug().Err(err).Str("account_id", creds.AccountID).Str("namespace", id).Msg("key count lookup failed")
				return nil
			}
			mu.Lock()
			counts[id] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

func (c *Client) analyticsCounts(ctx context.Context, creds types.Credentials) map[string]int {
	env, err := call[analyticsResult](ctx, c, creds, request{
		op:     "analytics_stored",
		method: http.MethodGet,
		path:   c.accountPath(creds.AccountID, "storage", "analytics", "stored"),
		query:  url.Values{"dimensions": {"namespaceId"}, "metrics": {"storedKeys"}},
	})
	if err != nil {
		log.Debug().Err(err).Str("account_id", creds.AccountID).Msg("kv analytics unavailable")
		return nil
	}

	counts := map[string]int{}
	for _, item := range env.Result.Data {
		if len(item.Dimensions) == 0 || len(item.Metrics) == 0 || len(item.Metrics[0]) == 0 {
			continue
		}
		v := item.Metrics[0][0]
		if v < 0 || math.IsNaN(v) {
			continue
		}
		counts[item.Dimensions[0]] = int(v)
	}
	return counts
}

func (c *Client) listingCount(ctx context.Context, creds types.Credentials, namespaceID string) (int, error) {
	env, err := call[[]keyRecord](ctx, c, creds, request{
		op:     "listing_count",
		method: http.MethodGet,
		path:   c.namespacesPath(creds.AccountID, url.PathEscape(namespaceID), "keys"),
		query:  url.Values{"limit": {"1"}},
	})
	if err != nil {
		return 0, err
	}
	if info := env.ResultInfo; info != nil {
		if info.TotalCount != nil {
			return *info.TotalCount, nil
		}
		return info.Count, nil
	}
	return len(env.Result), nil
}

// ForgetCounts drops the cached count of one namespace after a write changes it.
func (c *Client) ForgetCounts(accountID, namespaceID string) {
	c.counts.Remove(countKey(accountID, namespaceID))
}
