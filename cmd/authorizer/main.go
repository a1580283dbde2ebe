package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/globoclima/backend/internal/common/config"
	"github.com/globoclima/backend/internal/common/utils"
	"github.com/globoclima/backend/internal/platform/cognito"
)

type tokenVerifier interface {
	Verify(ctx context.Context, token string) (*utils.CognitoClaims, error)
}

var (
	verifier  tokenVerifier
	appConfig *config.Config
	logger    *slog.Logger
)

// setup runs on cold start
func setup() {
	var err error
	appConfig, err = config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load Env config: %v", err)
	}

	logger = appConfig.NewLogger()
	slog.SetDefault(logger)

	if appConfig.UserPoolID == "" {
		log.Fatalf("USER_POOL_ID not set")
	}

	verifier = cognito.NewTokenVerifier(appConfig.UserPoolID, appConfig.UserPoolClientID, appConfig.AWSRegion, nil, logger)
}

// handler is the Lambda function handler for API Gateway REST API Request Authorizer
func handler(ctx context.Context, request events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	authHeader := request.Headers["Authorization"]
	if authHeader == "" {
		authHeader = request.Headers["authorization"]
	}

	token, err := utils.ExtractBearerToken(authHeader)
	if err != nil {
		logger.Info("Missing or invalid Authorization header", "requestId", request.RequestContext.RequestID)
		return generatePolicy("user", "Deny", request.MethodArn, nil), nil
	}

	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		logger.Info("Token validation failed", "error", err, "requestId", request.RequestContext.RequestID)
		return generatePolicy("user", "Deny", request.MethodArn, nil), nil
	}

	// Context values must be strings, numbers or booleans
	authContext := map[string]interface{}{
		"sub":      claims.Subject,
		"email":    claims.Email,
		"username": claims.DisplayName(),
		"tokenUse": claims.TokenUse,
	}

	// arn:aws:execute-api:{regionId}:{accountId}:{apiId}/{stage}/{httpVerb}/[{resource}/[{child-resources}]]
	arn := fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/%s",
		"*",
		request.RequestContext.AccountID,
		request.RequestContext.APIID,
		request.RequestContext.Stage,
		"*",
	)

	return generatePolicy(claims.Subject, "Allow", arn, authContext), nil
}

// generatePolicy generates an IAM policy for the authorizer response
func generatePolicy(principalID, effect, resource string, context map[string]interface{}) events.APIGatewayCustomAuthorizerResponse {
	authResponse := events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principalID,
	}

	if effect != "" && resource != "" {
		authResponse.PolicyDocument = events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{"execute-api:Invoke"},
					Effect:   effect,
					Resource: []string{resource},
				},
			},
		}
	}

	if context != nil {
		authResponse.Context = context
	}

	return authResponse
}

func main() {
	setup()
	lambda.Start(handler)
}
