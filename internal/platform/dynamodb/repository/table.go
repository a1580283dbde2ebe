package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/globoclima/backend/internal/platform/dynamodb/client"
)

// FavoritesTableDefinition describes the favorites table: UserId/LocationId as
// primary key and, when indexName is set, a country index sorted by CreatedAt.
func FavoritesTableDefinition(tableName, indexName string) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrUserID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrLocationID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrUserID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrLocationID), KeyType: types.KeyTypeRange},
		},
	}

	if indexName != "" {
		input.AttributeDefinitions = append(input.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(AttrCountryCode), AttributeType: types.ScalarAttributeTypeS},
			types.AttributeDefinition{AttributeName: aws.String(AttrCreatedAt), AttributeType: types.ScalarAttributeTypeS},
		)
		input.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(indexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(AttrCountryCode), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(AttrCreatedAt), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		}
	}

	return input
}

// CreateFavoritesTable creates the favorites table and waits until it is
// active. It returns created=false when the table already exists.
func CreateFavoritesTable(ctx context.Context, c client.Client, tableName, indexName string, maxWait time.Duration) (bool, error) {
	_, err := c.CreateTable(ctx, FavoritesTableDefinition(tableName, indexName))
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, maxWait); err != nil {
		return true, fmt.Errorf("table %s did not become active: %w", tableName, err)
	}

	return true, nil
}
