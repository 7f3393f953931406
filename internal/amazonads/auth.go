package amazonads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var ErrMissingCredentials = errors.New("amazon ads api credentials are not configured")

// DefaultTokenTTL keeps tokens five minutes short of LWA's one hour lifetime.
const DefaultTokenTTL = 55 * time.Minute

type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenCache is an optional second-level store so several processes can share one
// access token.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// BearerAuthorizer sets the bearer token and client id headers.
type BearerAuthorizer struct {
	ClientID string
	Tokens   TokenProvider
}

func (a BearerAuthorizer) Authorize(ctx context.Context, req *http.Request) error {
	token, err := a.Tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Amazon-Advertising-API-ClientId", a.ClientID)
	return nil
}

type LWAConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// LWATokenProvider exchanges the long-lived refresh token for access tokens and
// caches them in memory (and in Cache when set).
type LWATokenProvider struct {
	oauth        *oauth2.Config
	refreshToken string
	httpClient   *http.Client
	Cache        TokenCache
	TTL          time.Duration
	now          func() time.Time

	mu          sync.Mutex
	token       string
	cachedUntil time.Time
}

func NewLWATokenProvider(cfg LWAConfig, httpClient *http.Client) *LWATokenProvider {
	return &LWATokenProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: cfg.RefreshToken,
		httpClient:   httpClient,
		TTL:          DefaultTokenTTL,
		now:          time.Now,
	}
}

func (p *LWATokenProvider) cacheKey() string {
	return "automation:lwa_token:" + p.oauth.ClientID
}

func (p *LWATokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Before(p.cachedUntil) {
		return p.token, nil
	}

	if p.oauth.ClientID == "" || p.oauth.ClientSecret == "" || p.refreshToken == "" {
		return "", ErrMissingCredentials
	}

	if p.Cache != nil {
		token, ok, err := p.Cache.Get(ctx, p.cacheKey())
		if err != nil {
			slog.Warn("token cache read failed, refreshing from LWA", "error", err)
		} else if ok {
			p.token = token
			// the shared copy may be older than ours would be, re-check it soon
			p.cachedUntil = now.Add(time.Minute)
			return token, nil
		}
	}

	return p.refresh(ctx, now)
}

// Refresh drops the cached token and fetches a new one.
func (p *LWATokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	return p.refresh(ctx, p.now())
}

func (p *LWATokenProvider) refresh(ctx context.Context, now time.Time) (string, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &APIError{
				Status:  retrieveErr.Response.StatusCode,
				Method:  http.MethodPost,
				Path:    p.oauth.Endpoint.TokenURL,
				Details: retrieveErr.Body,
			}
		}
		return "", fmt.Errorf("failed to refresh LWA access token: %w", err)
	}

	ttl := p.TTL
	if !tok.Expiry.IsZero() {
		if untilExpiry := tok.Expiry.Sub(now) - time.Minute; untilExpiry > 0 && untilExpiry < ttl {
			ttl = untilExpiry
		}
	}

	p.token = tok.AccessToken
	p.cachedUntil = now.Add(ttl)

	if p.Cache != nil {
		if err := p.Cache.Set(ctx, p.cacheKey(), tok.AccessToken, ttl); err != nil {
			slog.Warn("token cache write failed", "error", err)
		}
	}

	slog.Info("Refreshed LWA access token", "valid_for", ttl.String())
	return p.token, nil
}

// RedisTokenCache shares access tokens across service instances.
type RedisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache creates a token cache shared by every replica
func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token from redis: %w", err)
	}
	return val, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token to redis: %w", err)
	}
	return nil
}
