// Package oauth acquires and caches OAuth2 client-credentials tokens
// for relay rules. Tokens are cached for a fixed safety window; the
// issuer's expires_in is deliberately ignored so cache behaviour stays
// predictable.
package oauth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mocktide/mocktide/internal/core"
)

const (
	// tokenTTL is the fixed cache window from fetch time.
	tokenTTL = 3300 * time.Second
	// fetchTimeout bounds one token endpoint round trip.
	fetchTimeout = 30 * time.Second
)

type entry struct {
	token  string
	expiry time.Time
}

// Cache is a concurrent token cache keyed by tokenUrl + ":" +
// clientId. Concurrent fetches for the same key may race; the last
// write wins, which is acceptable because fresh tokens are
// interchangeable. It implements core.TokenSource.
type Cache struct {
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache() *Cache {
	return &Cache{
		client:  &http.Client{Timeout: fetchTimeout},
		now:     time.Now,
		entries: map[string]entry{},
	}
}

// AccessToken returns a cached token when fresh, otherwise performs a
// client-credentials exchange and caches the result.
func (c *Cache) AccessToken(ctx context.Context, auth core.RelayAuth) (string, error) {
	key := auth.TokenURL + ":" + auth.ClientID

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(cached.expiry) {
		return cached.token, nil
	}

	token, err := c.fetch(ctx, auth)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = entry{token: token, expiry: c.now().Add(tokenTTL)}
	c.mu.Unlock()

	return token, nil
}

func (c *Cache) fetch(ctx context.Context, auth core.RelayAuth) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		TokenURL:     auth.TokenURL,
		// Credentials go in the form body, not a Basic header; some
		// issuers reject header-style client authentication.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if auth.Scope != "" {
		cfg.Scopes = []string{auth.Scope}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	token, err := cfg.Token(ctx)
	if err != nil {
		return "", &core.ErrTokenAcquisition{TokenURL: auth.TokenURL, Err: err}
	}
	if token.AccessToken == "" {
		return "", &core.ErrTokenAcquisition{TokenURL: auth.TokenURL, Err: errors.New("response carries no access_token")}
	}
	return token.AccessToken, nil
}
