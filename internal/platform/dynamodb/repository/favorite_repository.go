package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	commonErrors "github.com/globoclima/backend/internal/domain/errors"
	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/dynamodb/client"
	"github.com/globoclima/backend/internal/platform/metrics"
)

// Attribute names of the favorites table
const (
	AttrUserID      = "UserId"
	AttrLocationID  = "LocationId"
	AttrCountryCode = "CountryCode"
	AttrCityName    = "CityName"
	AttrCreatedAt   = "CreatedAt"
)

const storeName = "dynamodb"

// DynamoDBFavoriteRepository implements the favorite.Repository interface
type DynamoDBFavoriteRepository struct {
	client     client.Client
	table      string
	countryIdx string
	logger     *slog.Logger
}

// NewDynamoDBFavoriteRepository creates a new DynamoDBFavoriteRepository. An
// empty countryIndex leaves ListByCountry permanently unavailable.
func NewDynamoDBFavoriteRepository(client client.Client, table, countryIndex string, logger *slog.Logger) *DynamoDBFavoriteRepository {
	return &DynamoDBFavoriteRepository{
		client:     client,
		table:      table,
		countryIdx: countryIndex,
		logger:     logger,
	}
}

// favoriteRecord is the stored shape of a favorite city
type favoriteRecord struct {
	UserID      string       `dynamodbav:"UserId"`
	LocationID  string       `dynamodbav:"LocationId"`
	CountryCode string       `dynamodbav:"CountryCode"`
	CityName    string       `dynamodbav:"CityName"`
	CreatedAt   sortableTime `dynamodbav:"CreatedAt"`
}

// createdAtLayout is fixed width UTC with nanoseconds, so the string range key
// of the country index sorts in time order
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// sortableTime stores a time as a createdAtLayout string
type sortableTime time.Time

func (t sortableTime) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: time.Time(t).UTC().Format(createdAtLayout)}, nil
}

// UnmarshalDynamoDBAttributeValue also reads RFC 3339 values with trimmed
// fractional seconds
func (t *sortableTime) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return errors.New("CreatedAt is not a string attribute")
	}
	parsed, err := time.Parse(time.RFC3339Nano, s.Value)
	if err != nil {
		return err
	}
	*t = sortableTime(parsed.UTC())
	return nil
}

func toRecord(fav *favorite.FavoriteCity) favoriteRecord {
	return favoriteRecord{
		UserID:      fav.UserID(),
		LocationID:  fav.LocationID(),
		CountryCode: fav.CountryCode(),
		CityName:    fav.CityName(),
		CreatedAt:   sortableTime(fav.CreatedAt().UTC()),
	}
}

func (r favoriteRecord) toFavorite() *favorite.FavoriteCity {
	return favorite.RehydrateFavoriteCity(r.UserID, r.LocationID, r.CountryCode, r.CityName, time.Time(r.CreatedAt))
}

func itemKey(userID, locationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrUserID:     &types.AttributeValueMemberS{Value: userID},
		AttrLocationID: &types.AttributeValueMemberS{Value: locationID},
	}
}

// Get retrieves a favorite by its key
func (r *DynamoDBFavoriteRepository) Get(ctx context.Context, userID, locationID string) (*favorite.FavoriteCity, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            itemKey(userID, locationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to get favorite", err)
	}

	if len(result.Item) == 0 {
		return nil, nil
	}

	var record favoriteRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to unmarshal favorite", err)
	}

	return record.toFavorite(), nil
}

// Exists reads only the key attributes of the favorite
func (r *DynamoDBFavoriteRepository) Exists(ctx context.Context, userID, locationID string) (bool, error) {
	projection := expression.NamesList(expression.Name(AttrUserID))
	expr, err := expression.NewBuilder().WithProjection(projection).Build()
	if err != nil {
		return false, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(r.table),
		Key:                      itemKey(userID, locationID),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return false, commonErrors.NewStorageUnavailableError("failed to check favorite", err)
	}

	return len(result.Item) > 0, nil
}

// ListByUser returns every favorite of the user, following all result pages
func (r *DynamoDBFavoriteRepository) ListByUser(ctx context.Context, userID string) ([]*favorite.FavoriteCity, error) {
	keyCondition := expression.Key(AttrUserID).Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	favorites, err := r.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to list favorites", err)
	}

	return favorites, nil
}

// ListByCountry queries the country index. Any failure reading the index is
// reported as an unavailable listing.
func (r *DynamoDBFavoriteRepository) ListByCountry(ctx context.Context, countryCode string) (favorite.CountryListing, error) {
	if r.countryIdx == "" {
		return r.degraded(countryCode, favorite.ReasonIndexNotConfigured, nil), nil
	}

	normalized := strings.ToUpper(strings.TrimSpace(countryCode))
	keyCondition := expression.Key(AttrCountryCode).Equal(expression.Value(normalized))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return favorite.CountryListing{}, commonErrors.NewInternalError("failed to build expression", err)
	}

	favorites, err := r.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(r.countryIdx),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return r.degraded(normalized, classifyIndexError(err), err), nil
	}

	return favorite.CountryListing{Available: true, Favorites: favorites}, nil
}

func (r *DynamoDBFavoriteRepository) degraded(countryCode, reason string, err error) favorite.CountryListing {
	attrs := []any{
		"event", "degraded_read",
		"store", storeName,
		"index", r.countryIdx,
		"countryCode", countryCode,
		"reason", reason,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	r.logger.Warn("country index unavailable", attrs...)
	metrics.RecordDegradedRead(storeName, reason)
	return favorite.UnavailableListing(reason)
}

// classifyIndexError tells a missing index or table apart from other failures
func classifyIndexError(err error) string {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return favorite.ReasonIndexMissing
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
		return favorite.ReasonIndexMissing
	}
	return favorite.ReasonBackendError
}

func (r *DynamoDBFavoriteRepository) query(ctx context.Context, input *dynamodb.QueryInput) ([]*favorite.FavoriteCity, error) {
	favorites := make([]*favorite.FavoriteCity, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		var records []favoriteRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, err
		}
		for _, record := range records {
			favorites = append(favorites, record.toFavorite())
		}
	}
	return favorites, nil
}

// Add writes the favorite, replacing any existing record with the same key
func (r *DynamoDBFavoriteRepository) Add(ctx context.Context, fav *favorite.FavoriteCity) error {
	item, err := attributevalue.MarshalMap(toRecord(fav))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal favorite", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return commonErrors.NewStorageUnavailableError("failed to save favorite", err)
	}

	return nil
}

// Insert writes the favorite only if no record with the same key exists
func (r *DynamoDBFavoriteRepository) Insert(ctx context.Context, fav *favorite.FavoriteCity) error {
	item, err := attributevalue.MarshalMap(toRecord(fav))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal favorite", err)
	}

	condition := expression.AttributeNotExists(expression.Name(AttrUserID))
	expr, err := expression.NewBuilder().WithCondition(condition).Build()
	if err != nil {
		return commonErrors.NewInternalError("failed to build expression", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return favorite.AlreadyExistsError(fav.LocationID())
		}
		return commonErrors.NewStorageUnavailableError("failed to save favorite", err)
	}

	return nil
}

// Remove deletes the favorite. Deleting a missing key succeeds.
func (r *DynamoDBFavoriteRepository) Remove(ctx context.Context, userID, locationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       itemKey(userID, locationID),
	})
	if err != nil {
		return commonErrors.NewStorageUnavailableError("failed to remove favorite", err)
	}
	return nil
}
