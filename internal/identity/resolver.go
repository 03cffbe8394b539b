package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Profile is the display identity resolved for a participant. The hub treats
// both fields as opaque strings; they are resolved here, before events carry
// them, never inside the broadcast path.
type Profile struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// Resolver looks profiles up from the external identity service with an
// ephemeral redis cache in front. Cache loss is harmless; the next lookup
// refills it.
type Resolver struct {
	baseURL string
	httpc   *http.Client
	rdb     *redis.Client
	ttl     time.Duration
	log     *zap.Logger
}

func NewResolver(baseURL, redisAddr string, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 5 * time.Second},
		rdb:     redis.NewClient(&redis.Options{Addr: redisAddr}),
		ttl:     ttl,
		log:     log,
	}
}

func cacheKey(userID string) string { return "profile:" + userID }

// Resolve returns the profile for a participant id, consulting the cache
// first and falling back to the identity service.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, fmt.Errorf("empty user id")
	}

	if cached, err := r.rdb.Get(ctx, cacheKey(userID)).Result(); err == nil {
		var p Profile
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return p, nil
		}
	}

	p, err := r.fetch(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := r.rdb.Set(ctx, cacheKey(userID), data, r.ttl).Err(); err != nil {
			r.log.Warn("profile cache write failed",
				zap.String("user", userID), zap.Error(err))
		}
	}
	return p, nil
}

func (r *Resolver) fetch(ctx context.Context, userID string) (Profile, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s", r.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("identity service: status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("identity service: decode: %w", err)
	}
	return p, nil
}

// Close releases the cache connection.
func (r *Resolver) Close() error { return r.rdb.Close() }
