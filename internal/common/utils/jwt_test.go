package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signTestToken(t *testing.T, claims *CognitoClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func testKeyFunc(token *jwt.Token) (interface{}, error) {
	return testSecret, nil
}

func TestParseJWT(t *testing.T) {
	issuer := GetTokenIssuer("us-west-2_abc", "us-west-2")

	t.Run("valid access token", func(t *testing.T) {
		tokenString := signTestToken(t, &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Username: "alice",
			Email:    "alice@example.com",
			TokenUse: "access",
			ClientID: "client-1",
		})

		claims, err := ParseJWT(tokenString, testKeyFunc)

		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject)
		assert.Equal(t, "alice", claims.DisplayName())
		assert.NoError(t, ValidateCognitoClaims(claims, issuer, "client-1"))
	})

	t.Run("expired token", func(t *testing.T) {
		tokenString := signTestToken(t, &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})

		_, err := ParseJWT(tokenString, testKeyFunc)

		assert.Error(t, err)
	})

	t.Run("wrong signature", func(t *testing.T) {
		tokenString := signTestToken(t, &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		_, err := ParseJWT(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte("other-secret"), nil
		})

		assert.Error(t, err)
	})
}

func TestValidateCognitoClaims(t *testing.T) {
	issuer := GetTokenIssuer("us-west-2_abc", "us-west-2")

	t.Run("id token audience must match the client", func(t *testing.T) {
		claims := &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Audience: jwt.ClaimStrings{"client-1"}},
			TokenUse:         "id",
		}

		assert.NoError(t, ValidateCognitoClaims(claims, issuer, "client-1"))
		assert.Error(t, ValidateCognitoClaims(claims, issuer, "client-2"))
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "https://example.com"},
			TokenUse:         "access",
		}

		assert.Error(t, ValidateCognitoClaims(claims, issuer, ""))
	})

	t.Run("unknown token use", func(t *testing.T) {
		claims := &CognitoClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
			TokenUse:         "refresh",
		}

		assert.Error(t, ValidateCognitoClaims(claims, issuer, ""))
	})
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = ExtractBearerToken("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, err := ExtractBearerToken(header)
		assert.Error(t, err, header)
	}
}

func TestCognitoURLs(t *testing.T) {
	assert.Equal(t, "https://cognito-idp.sa-east-1.amazonaws.com/sa-east-1_pool", GetTokenIssuer("sa-east-1_pool", "sa-east-1"))
	assert.Equal(t, "https://cognito-idp.sa-east-1.amazonaws.com/sa-east-1_pool/.well-known/jwks.json", BuildJWKSURL("sa-east-1_pool", "sa-east-1"))
}
