package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CognitoClaims represents the claims in a Cognito JWT token
type CognitoClaims struct {
	jwt.RegisteredClaims
	Username      string `json:"username"`
	CognitoUser   string `json:"cognito:username"`
	Email         string `json:"email"`
	TokenUse      string `json:"token_use"`
	ClientID      string `json:"client_id"`
	Scope         string `json:"scope"`
	EmailVerified bool   `json:"email_verified"`
}

// DisplayName returns the best human-readable name carried by the token
func (c *CognitoClaims) DisplayName() string {
	if c.Username != "" {
		return c.Username
	}
	return c.CognitoUser
}

// ParseJWT parses a JWT token and validates it
func ParseJWT(tokenString string, keyFunc jwt.Keyfunc) (*CognitoClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CognitoClaims{}, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*CognitoClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now().UTC()) {
		return nil, errors.New("token has expired")
	}

	return claims, nil
}

// ValidateCognitoClaims checks issuer and token use. Access tokens carry the app
// client in client_id, id tokens in aud.
func ValidateCognitoClaims(claims *CognitoClaims, issuer, clientID string) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected token issuer %q", claims.Issuer)
	}

	switch claims.TokenUse {
	case "access":
		if clientID != "" && claims.ClientID != clientID {
			return errors.New("token was not issued for this client")
		}
	case "id":
		if clientID != "" {
			audience, _ := claims.GetAudience()
			found := false
			for _, aud := range audience {
				if aud == clientID {
					found = true
					break
				}
			}
			if !found {
				return errors.New("token was not issued for this client")
			}
		}
	default:
		return fmt.Errorf("unsupported token_use %q", claims.TokenUse)
	}

	return nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be: Bearer {token}")
	}

	return parts[1], nil
}

// GetTokenIssuer constructs the token issuer URL from the Cognito user pool ID
func GetTokenIssuer(userPoolID string, region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// BuildJWKSURL constructs the JWKS URL from the Cognito user pool ID
func BuildJWKSURL(userPoolID string, region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID)
}
