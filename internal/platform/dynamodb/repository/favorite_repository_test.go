package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/dynamodb/client"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

// TestClient is an in-memory implementation of the DynamoDB client interface for testing.
// Queries match the single key condition value against UserId, or against
// CountryCode when an index is named.
type TestClient struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	order    []string
	indexes  map[string]bool
	pageSize int

	queryPages int
}

// NewTestClient creates a new test client with an empty items map
func NewTestClient(indexes ...string) *TestClient {
	c := &TestClient{
		items:   make(map[string]map[string]types.AttributeValue),
		indexes: make(map[string]bool),
	}
	for _, index := range indexes {
		c.indexes[index] = true
	}
	return c
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func testItemKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, AttrUserID) + "#" + stringAttr(item, AttrLocationID)
}

// GetItem retrieves an item from the in-memory store
func (c *TestClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[testItemKey(params.Key)]; exists {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}, nil
}

// PutItem adds or updates an item in the in-memory store
func (c *TestClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := testItemKey(params.Item)
	_, exists := c.items[key]

	// The only condition the repository writes is attribute_not_exists on the key
	if params.ConditionExpression != nil && exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	if !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (c *TestClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := testItemKey(params.Key)
	if _, exists := c.items[key]; !exists {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (c *TestClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryPages++

	attr := AttrUserID
	if params.IndexName != nil {
		if !c.indexes[*params.IndexName] {
			return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "The table does not have the specified index"}
		}
		attr = AttrCountryCode
	}

	var want string
	for _, v := range params.ExpressionAttributeValues {
		want = v.(*types.AttributeValueMemberS).Value
	}

	started := params.ExclusiveStartKey == nil
	startKey := ""
	if !started {
		startKey = testItemKey(params.ExclusiveStartKey)
	}

	items := []map[string]types.AttributeValue{}
	var lastKey map[string]types.AttributeValue
	for i, key := range c.order {
		if !started {
			started = key == startKey
			continue
		}
		item := c.items[key]
		if stringAttr(item, attr) != want {
			continue
		}
		items = append(items, item)
		if c.pageSize > 0 && len(items) == c.pageSize && i < len(c.order)-1 {
			lastKey = map[string]types.AttributeValue{
				AttrUserID:     item[AttrUserID],
				AttrLocationID: item[AttrLocationID],
			}
			break
		}
	}

	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: lastKey}, nil
}

func (c *TestClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func (c *TestClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil
}

func newFavorite(t *testing.T, userID, countryCode, cityName string) *favorite.FavoriteCity {
	t.Helper()
	fav, err := favorite.NewFavoriteCity(userID, countryCode, cityName)
	require.NoError(t, err)
	return fav
}

func TestDynamoDBFavoriteRepository_InsertAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips every field", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
		fav := newFavorite(t, "u1", "br", "São Paulo")

		require.NoError(t, repo.Insert(ctx, fav))
		got, err := repo.Get(ctx, "u1", "BR-SãoPaulo")

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID())
		assert.Equal(t, "BR-SãoPaulo", got.LocationID())
		assert.Equal(t, "BR", got.CountryCode())
		assert.Equal(t, "São Paulo", got.CityName())
		assert.True(t, fav.CreatedAt().Equal(got.CreatedAt()))
	})

	t.Run("missing favorite is nil without error", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)

		got, err := repo.Get(ctx, "u1", "US-NewYork")

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate insert is rejected", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "US", "New York")))

		err := repo.Insert(ctx, newFavorite(t, "u1", "us", "New-York"))

		assert.True(t, errors.Is(err, favorite.ErrAlreadyExists))
	})

	t.Run("insert is conditional on the key", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		var captured *dynamodb.PutItemInput
		mock.PutItemFn = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "US", "New York")))

		require.NotNil(t, captured)
		assert.Equal(t, "favorites", aws.ToString(captured.TableName))
		assert.Contains(t, aws.ToString(captured.ConditionExpression), "attribute_not_exists")
		assert.Contains(t, captured.ExpressionAttributeNames, "#0")
		assert.Equal(t, AttrUserID, captured.ExpressionAttributeNames["#0"])
		assert.Equal(t, "US-NewYork", stringAttr(captured.Item, AttrLocationID))
		assert.Equal(t, "US", stringAttr(captured.Item, AttrCountryCode))
		assert.NotEmpty(t, stringAttr(captured.Item, AttrCreatedAt))
	})

	t.Run("backend failure is storage unavailable", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.PutItemFn = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("connection reset")
		}
		mock.GetItemFn = func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return nil, errors.New("connection reset")
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		err := repo.Insert(ctx, newFavorite(t, "u1", "US", "New York"))
		assert.True(t, errors.Is(err, favorite.ErrStorageUnavailable))

		_, err = repo.Get(ctx, "u1", "US-NewYork")
		assert.True(t, errors.Is(err, favorite.ErrStorageUnavailable))

		_, err = repo.Exists(ctx, "u1", "US-NewYork")
		assert.True(t, errors.Is(err, favorite.ErrStorageUnavailable))
	})
}

func TestDynamoDBFavoriteRepository_Add(t *testing.T) {
	ctx := context.Background()
	repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Add(ctx, favorite.RehydrateFavoriteCity("u1", "US-NewYork", "US", "New York", createdAt)))
	require.NoError(t, repo.Add(ctx, favorite.RehydrateFavoriteCity("u1", "US-NewYork", "US", "NEW YORK", createdAt.Add(time.Hour))))

	got, err := repo.Get(ctx, "u1", "US-NewYork")
	require.NoError(t, err)
	assert.Equal(t, "NEW YORK", got.CityName())
	assert.True(t, createdAt.Add(time.Hour).Equal(got.CreatedAt()))

	favorites, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, favorites, 1)
}

func TestDynamoDBFavoriteRepository_Exists(t *testing.T) {
	ctx := context.Background()

	t.Run("reports presence", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "JP", "Tokyo")))

		exists, err := repo.Exists(ctx, "u1", "JP-Tokyo")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.Exists(ctx, "u2", "JP-Tokyo")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("reads consistently with a key projection", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		var captured *dynamodb.GetItemInput
		mock.GetItemFn = func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			captured = params
			return &dynamodb.GetItemOutput{}, nil
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		exists, err := repo.Exists(ctx, "u1", "JP-Tokyo")

		require.NoError(t, err)
		assert.False(t, exists)
		require.NotNil(t, captured)
		assert.True(t, aws.ToBool(captured.ConsistentRead))
		assert.NotNil(t, captured.ProjectionExpression)
		assert.Equal(t, "u1", stringAttr(captured.Key, AttrUserID))
		assert.Equal(t, "JP-Tokyo", stringAttr(captured.Key, AttrLocationID))
	})
}

func TestDynamoDBFavoriteRepository_ListByUser(t *testing.T) {
	ctx := context.Background()

	t.Run("follows every page", func(t *testing.T) {
		testClient := NewTestClient()
		testClient.pageSize = 2
		repo := NewDynamoDBFavoriteRepository(testClient, "favorites", "CountryCodeIndex", testLogger)

		for _, city := range []string{"Recife", "Natal", "Salvador", "Manaus", "Belém"} {
			require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "BR", city)))
		}
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u2", "BR", "Recife")))

		favorites, err := repo.ListByUser(ctx, "u1")

		require.NoError(t, err)
		assert.Len(t, favorites, 5)
		assert.GreaterOrEqual(t, testClient.queryPages, 3)
		for _, fav := range favorites {
			assert.Equal(t, "u1", fav.UserID())
		}
	})

	t.Run("no favorites is an empty list", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)

		favorites, err := repo.ListByUser(ctx, "nobody")

		require.NoError(t, err)
		assert.NotNil(t, favorites)
		assert.Empty(t, favorites)
	})

	t.Run("query failure is storage unavailable", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.QueryFn = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, errors.New("throttled")
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		_, err := repo.ListByUser(ctx, "u1")

		assert.True(t, errors.Is(err, favorite.ErrStorageUnavailable))
	})
}

func TestDynamoDBFavoriteRepository_ListByCountry(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the index across users", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient("CountryCodeIndex"), "favorites", "CountryCodeIndex", testLogger)
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "BR", "Recife")))
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u2", "br", "Natal")))
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u2", "US", "Boston")))

		listing, err := repo.ListByCountry(ctx, " br ")

		require.NoError(t, err)
		assert.True(t, listing.Available)
		assert.Len(t, listing.Favorites, 2)
	})

	t.Run("missing index degrades", func(t *testing.T) {
		repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
		require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "BR", "Recife")))

		listing, err := repo.ListByCountry(ctx, "BR")

		require.NoError(t, err)
		assert.False(t, listing.Available)
		assert.Equal(t, favorite.ReasonIndexMissing, listing.Reason)
		assert.Empty(t, listing.Favorites)
	})

	t.Run("unconfigured index never queries", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.QueryFn = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			t.Fatal("query should not be called")
			return nil, nil
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "", testLogger)

		listing, err := repo.ListByCountry(ctx, "BR")

		require.NoError(t, err)
		assert.False(t, listing.Available)
		assert.Equal(t, favorite.ReasonIndexNotConfigured, listing.Reason)
	})

	t.Run("other failures degrade as backend errors", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.QueryFn = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, errors.New("throttled")
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		listing, err := repo.ListByCountry(ctx, "BR")

		require.NoError(t, err)
		assert.False(t, listing.Available)
		assert.Equal(t, favorite.ReasonBackendError, listing.Reason)
	})

	t.Run("missing table degrades as missing index", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.QueryFn = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		listing, err := repo.ListByCountry(ctx, "BR")

		require.NoError(t, err)
		assert.Equal(t, favorite.ReasonIndexMissing, listing.Reason)
	})

	t.Run("queries the configured index newest first", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		var captured *dynamodb.QueryInput
		mock.QueryFn = func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			captured = params
			return &dynamodb.QueryOutput{}, nil
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "ByCountry", testLogger)

		listing, err := repo.ListByCountry(ctx, "jp")

		require.NoError(t, err)
		assert.True(t, listing.Available)
		require.NotNil(t, captured)
		assert.Equal(t, "ByCountry", aws.ToString(captured.IndexName))
		assert.False(t, aws.ToBool(captured.ScanIndexForward))
		assert.Equal(t, "JP", stringAttr(captured.ExpressionAttributeValues, ":0"))
	})
}

func TestCreatedAtSortKey(t *testing.T) {
	ctx := context.Background()
	whole := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	fractional := whole.Add(500 * time.Millisecond)

	t.Run("stored values sort in time order", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		var stored []string
		mock.PutItemFn = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			stored = append(stored, stringAttr(params.Item, AttrCreatedAt))
			return &dynamodb.PutItemOutput{}, nil
		}
		repo := NewDynamoDBFavoriteRepository(mock, "favorites", "CountryCodeIndex", testLogger)

		require.NoError(t, repo.Add(ctx, favorite.RehydrateFavoriteCity("u1", "BR-Recife", "BR", "Recife", whole)))
		require.NoError(t, repo.Add(ctx, favorite.RehydrateFavoriteCity("u2", "BR-Natal", "BR", "Natal", fractional.In(time.FixedZone("BRT", -3*3600)))))

		require.Len(t, stored, 2)
		assert.Equal(t, "2024-01-01T10:00:00.000000000Z", stored[0])
		assert.Equal(t, "2024-01-01T10:00:00.500000000Z", stored[1])
		assert.Less(t, stored[0], stored[1])
	})

	t.Run("reads values written as RFC 3339", func(t *testing.T) {
		var got sortableTime
		err := got.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberS{Value: fractional.Format(time.RFC3339Nano)})

		require.NoError(t, err)
		assert.True(t, fractional.Equal(time.Time(got)))
	})

	t.Run("rejects non string values", func(t *testing.T) {
		var got sortableTime
		err := got.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberN{Value: "1"})

		assert.Error(t, err)
	})
}

func TestDynamoDBFavoriteRepository_Remove(t *testing.T) {
	ctx := context.Background()
	repo := NewDynamoDBFavoriteRepository(NewTestClient(), "favorites", "CountryCodeIndex", testLogger)
	require.NoError(t, repo.Insert(ctx, newFavorite(t, "u1", "US", "New York")))

	require.NoError(t, repo.Remove(ctx, "u1", "US-NewYork"))
	exists, err := repo.Exists(ctx, "u1", "US-NewYork")
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing an absent key succeeds
	require.NoError(t, repo.Remove(ctx, "u1", "US-NewYork"))
}

func TestFavoritesTableDefinition(t *testing.T) {
	t.Run("with country index", func(t *testing.T) {
		input := FavoritesTableDefinition("favorites", "CountryCodeIndex")

		assert.Equal(t, types.BillingModePayPerRequest, input.BillingMode)
		require.Len(t, input.KeySchema, 2)
		assert.Equal(t, AttrUserID, aws.ToString(input.KeySchema[0].AttributeName))
		assert.Equal(t, types.KeyTypeHash, input.KeySchema[0].KeyType)
		assert.Equal(t, AttrLocationID, aws.ToString(input.KeySchema[1].AttributeName))
		require.Len(t, input.GlobalSecondaryIndexes, 1)
		gsi := input.GlobalSecondaryIndexes[0]
		assert.Equal(t, "CountryCodeIndex", aws.ToString(gsi.IndexName))
		assert.Equal(t, AttrCountryCode, aws.ToString(gsi.KeySchema[0].AttributeName))
		assert.Equal(t, AttrCreatedAt, aws.ToString(gsi.KeySchema[1].AttributeName))
		assert.Len(t, input.AttributeDefinitions, 4)
	})

	t.Run("without country index", func(t *testing.T) {
		input := FavoritesTableDefinition("favorites", "")

		assert.Empty(t, input.GlobalSecondaryIndexes)
		assert.Len(t, input.AttributeDefinitions, 2)
	})
}

func TestCreateFavoritesTable(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and waits for the table", func(t *testing.T) {
		created, err := CreateFavoritesTable(ctx, NewTestClient(), "favorites", "CountryCodeIndex", time.Minute)

		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("existing table is not an error", func(t *testing.T) {
		mock := client.NewMockDynamoDBClient()
		mock.CreateTableFn = func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			return nil, &types.ResourceInUseException{Message: aws.String("Table already exists")}
		}

		created, err := CreateFavoritesTable(ctx, mock, "favorites", "CountryCodeIndex", time.Minute)

		require.NoError(t, err)
		assert.False(t, created)
	})
}
