// Package cache provides an optional Redis-backed cache for fetched pages.
//
// When a job configures a Redis address, every successful GET page is stored
// under a key derived from the request URL and query string, with a fixed TTL.
// Re-running the same job within the TTL replays pages from Redis instead of
// calling the API again. Non-GET requests and non-2xx responses are never
// cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	key := cache.CacheKey{
//		Method: "GET",
//		URL:    "https://api.example.com/v1/items",
//		Query:  url.Values{"page": []string{"2"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(200, resp.Header, body, manager.TTL()))
//	}
//
// # Metrics
//
//   - ingest_cache_hits_total - pages served from Redis
//   - ingest_cache_misses_total - lookups that fell through to the API
//   - ingest_cache_errors_total{operation} - Redis failures (get, set, delete)
package cache
