package credentials

import (
	"context"
	"errors"
	"time"
)

// ProviderFortnox is the provider key of the Fortnox credential record
const ProviderFortnox = "fortnox"

// ErrNotFound is returned when no record exists for a provider
var ErrNotFound = errors.New("credentials not found")

// Credentials is the durable OAuth state for one provider
type Credentials struct {
	Provider       string    `json:"provider" bson:"provider"`
	AccessToken    string    `json:"accessToken" bson:"accessToken"`
	RefreshToken   string    `json:"refreshToken" bson:"refreshToken"`
	ClientIdentity string    `json:"clientIdentity" bson:"clientIdentity"`
	ClientSecret   string    `json:"clientSecret" bson:"clientSecret"`
	ExpiresAt      time.Time `json:"expiresAt" bson:"expiresAt"`
}

// HasAccessToken reports whether an access token is stored
func (c *Credentials) HasAccessToken() bool {
	return c.AccessToken != ""
}

// Expired reports whether the access token is past its expiry at now
func (c *Credentials) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// TokenUpdate carries the fields written back after a successful refresh
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// apply copies the update onto c
func (u TokenUpdate) apply(c *Credentials) {
	c.AccessToken = u.AccessToken
	c.RefreshToken = u.RefreshToken
	c.ExpiresAt = u.ExpiresAt
}

// Store reads and updates credential records by provider
type Store interface {
	// Get returns the record for provider, or ErrNotFound
	Get(ctx context.Context, provider string) (*Credentials, error)

	// UpdateTokens writes the OAuth fields of the record for provider
	UpdateTokens(ctx context.Context, provider string, update TokenUpdate) error
}

// Locker is implemented by stores that can hold an exclusive lock on a
// provider record across processes. Callers release the lock with the returned
// function.
type Locker interface {
	Lock(ctx context.Context, provider string) (unlock func() error, err error)
}

// Closer is implemented by stores holding connections
type Closer interface {
	Close(ctx context.Context) error
}
