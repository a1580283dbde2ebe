package cognito

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwk"

	"github.com/globoclima/backend/internal/common/utils"
)

// KeySetFetcher loads the user pool's signing keys
type KeySetFetcher func(ctx context.Context, jwksURL string) (jwk.Set, error)

// FetchKeySet downloads a JWKS document
func FetchKeySet(ctx context.Context, jwksURL string) (jwk.Set, error) {
	return jwk.Fetch(ctx, jwksURL)
}

var errUnknownKey = errors.New("signing key not found")

// TokenVerifier validates user pool access and id tokens against the pool's JWKS
type TokenVerifier struct {
	jwksURL  string
	issuer   string
	clientID string
	fetch    KeySetFetcher
	logger   *slog.Logger

	mu   sync.RWMutex
	keys jwk.Set
}

// NewTokenVerifier creates a verifier for the user pool. Keys are fetched
// lazily and refreshed once when a token names an unknown key id.
func NewTokenVerifier(userPoolID, clientID, region string, fetch KeySetFetcher, logger *slog.Logger) *TokenVerifier {
	if fetch == nil {
		fetch = FetchKeySet
	}
	return &TokenVerifier{
		jwksURL:  utils.BuildJWKSURL(userPoolID, region),
		issuer:   utils.GetTokenIssuer(userPoolID, region),
		clientID: clientID,
		fetch:    fetch,
		logger:   logger,
	}
}

// Verify checks the token's signature, expiry, issuer and audience
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*utils.CognitoClaims, error) {
	claims, err := utils.ParseJWT(token, v.keyFunc(ctx, false))
	if errors.Is(err, errUnknownKey) {
		v.logger.Info("refreshing signing keys", "jwksUrl", v.jwksURL)
		claims, err = utils.ParseJWT(token, v.keyFunc(ctx, true))
	}
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateCognitoClaims(claims, v.issuer, v.clientID); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *TokenVerifier) keyFunc(ctx context.Context, refresh bool) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no key id")
		}

		keys, err := v.keySet(ctx, refresh)
		if err != nil {
			return nil, err
		}

		key, ok := keys.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownKey, kid)
		}

		var raw interface{}
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		return raw, nil
	}
}

func (v *TokenVerifier) keySet(ctx context.Context, refresh bool) (jwk.Set, error) {
	if !refresh {
		v.mu.RLock()
		keys := v.keys
		v.mu.RUnlock()
		if keys != nil {
			return keys, nil
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	keys, err := v.fetch(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	v.keys = keys
	return keys, nil
}
