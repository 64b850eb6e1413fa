package sync

import (
	"context"

	"github.com/rescuemate/alertsync/internal/store"
	"github.com/rescuemate/alertsync/pkg/client"
)

// TokenKey is the configuration collection key holding the bearer token.
const TokenKey = "token"

// StoreTokenSource reads the bearer token from the configuration collection
// so it survives reloads and daemon restarts. An unset token yields "".
func StoreTokenSource(s *store.Store) client.TokenSource {
	return func(ctx context.Context) (string, error) {
		token, ok, err := s.GetConfig(ctx, TokenKey)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return token, nil
	}
}

// SetToken stores the bearer token in the configuration collection.
func SetToken(ctx context.Context, s *store.Store, token string) error {
	return s.SetConfig(ctx, TokenKey, token)
}

// RemoveToken deletes the stored bearer token.
func RemoveToken(ctx context.Context, s *store.Store) error {
	return s.DeleteConfig(ctx, TokenKey)
}
