package cognito

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	commonErrors "github.com/globoclima/backend/internal/domain/errors"
)

// Identity is the caller as known to the user pool
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// IdentityResolver resolves access tokens to user pool identities
type IdentityResolver struct {
	client UserAPI
	logger *slog.Logger
}

// NewIdentityResolver creates a new IdentityResolver
func NewIdentityResolver(client UserAPI, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{client: client, logger: logger}
}

// Resolve asks the user pool who owns the access token. The user id is the
// "sub" attribute, falling back to the email and then the username.
func (r *IdentityResolver) Resolve(ctx context.Context, accessToken string) (Identity, error) {
	result, err := r.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		if errors.As(err, &notAuthorized) {
			return Identity{}, commonErrors.NewAuthenticationError("invalid or expired token")
		}
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return Identity{}, commonErrors.NewAuthenticationError("user not found")
		}
		r.logger.Error("failed to get user details", "error", err)
		return Identity{}, commonErrors.NewInternalError("failed to resolve identity", err)
	}

	identity := Identity{Username: aws.ToString(result.Username)}
	for _, attr := range result.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			identity.UserID = aws.ToString(attr.Value)
		case "email":
			identity.Email = aws.ToString(attr.Value)
		}
	}

	if identity.UserID == "" {
		identity.UserID = identity.Email
	}
	if identity.UserID == "" {
		identity.UserID = identity.Username
	}
	if identity.UserID == "" {
		return Identity{}, commonErrors.NewAuthenticationError("token carries no user identity")
	}

	return identity, nil
}
