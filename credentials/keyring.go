package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keychain service name records are stored under
const DefaultKeyringService = "fortnox-client"

// KeyringStore keeps each provider record as a JSON secret in the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed store
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) key(provider string) string {
	return fmt.Sprintf("%s::credentials", provider)
}

// Get returns the record for provider
func (s *KeyringStore) Get(_ context.Context, provider string) (*Credentials, error) {
	data, err := keyring.Get(s.service, s.key(provider))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: provider %q in keyring", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("invalid credentials in keyring: %w", err)
	}
	return &c, nil
}

// UpdateTokens rewrites the OAuth fields for provider
func (s *KeyringStore) UpdateTokens(ctx context.Context, provider string, update TokenUpdate) error {
	c, err := s.Get(ctx, provider)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		c = &Credentials{Provider: provider}
	}
	update.apply(c)

	return s.Put(c)
}

// Put stores a full record, used to seed the keychain
func (s *KeyringStore) Put(c *Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := keyring.Set(s.service, s.key(c.Provider), string(data)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}
