package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/shopverse/category_service/logger"
	"github.com/shopverse/category_service/models"
)

const (
	// DefaultDynamoTable is used when no table name is configured
	DefaultDynamoTable = "CategoryTreeCache"
	dynamoTreeKey      = "admin-tree"
)

// DynamoDBAPI defines the DynamoDB operations the cache needs
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// treeItem is the stored cache row. TTL is a unix timestamp so the table's
// native TTL can expire it too.
type treeItem struct {
	Key       string                 `dynamodbav:"key"`
	Data      []*models.CategoryNode `dynamodbav:"data"`
	Timestamp int64                  `dynamodbav:"timestamp"`
	TTL       int64                  `dynamodbav:"ttl"`
}

// DynamoDBCache implements CacheProvider using DynamoDB
type DynamoDBCache struct {
	client DynamoDBAPI
	table  string
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
}

// NewDynamoDBCache creates a DynamoDB cache provider from the default AWS config
func NewDynamoDBCache(ctx context.Context, table string) (*DynamoDBCache, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewDynamoDBCacheWithClient creates a DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI, table string) *DynamoDBCache {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoDBCache{
		client: client,
		table:  table,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// Initialize creates the cache table if it doesn't exist
func (c *DynamoDBCache) Initialize(ctx context.Context) error {
	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.table),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

// GetTree retrieves the tree from DynamoDB if present and not expired
func (c *DynamoDBCache) GetTree(ctx context.Context) ([]*models.CategoryNode, bool) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key:       c.key(),
	})
	if err != nil {
		logger.Get().Warnw("dynamodb cache read failed", "table", c.table, "error", err)
		return nil, false
	}
	if result.Item == nil {
		return nil, false
	}

	var item treeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		logger.Get().Warnw("discarding undecodable cached tree", "table", c.table, "error", err)
		return nil, false
	}

	// native TTL deletion lags, so expiry is checked on read as well
	if c.now().Unix() > item.TTL {
		c.InvalidateCache(ctx)
		return nil, false
	}
	return snapshot(item.Data), true
}

// SetTree stores the tree in DynamoDB. A failed write drops the old entry so
// a stale tree is never served.
func (c *DynamoDBCache) SetTree(ctx context.Context, nodes []*models.CategoryNode) {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	now := c.now()
	av, err := attributevalue.MarshalMap(treeItem{
		Key:       dynamoTreeKey,
		Data:      snapshot(nodes),
		Timestamp: now.Unix(),
		TTL:       now.Add(ttl).Unix(),
	})
	if err != nil {
		logger.Get().Warnw("failed to encode category tree for cache", "error", err)
		c.InvalidateCache(ctx)
		return
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	})
	if err != nil {
		logger.Get().Warnw("dynamodb cache write failed", "table", c.table, "error", err)
		c.InvalidateCache(ctx)
	}
}

// InvalidateCache removes the tree from DynamoDB
func (c *DynamoDBCache) InvalidateCache(ctx context.Context) {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key:       c.key(),
	})
	if err != nil {
		logger.Get().Warnw("dynamodb cache invalidation failed", "table", c.table, "error", err)
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

func (c *DynamoDBCache) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: dynamoTreeKey},
	}
}
