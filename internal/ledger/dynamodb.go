package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultDynamoTable is the table holding one item per day keyed by "date".
const DefaultDynamoTable = "DailySpend"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore keeps totals in DynamoDB using the ADD update action, which
// increments server-side.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore loads the default AWS configuration and creates a store.
func NewDynamoStore(ctx context.Context, region, table string) (*DynamoStore, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewDynamoStoreWithClient creates a store over an existing client.
func NewDynamoStoreWithClient(client DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(day string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"date": &types.AttributeValueMemberS{Value: day}}
}

// Add increments the total for day.
func (s *DynamoStore) Add(ctx context.Context, day string, amount float64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(day),
		UpdateExpression:         aws.String("ADD #total :cost"),
		ExpressionAttributeNames: map[string]string{"#total": "total"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cost": &types.AttributeValueMemberN{Value: strconv.FormatFloat(amount, 'f', -1, 64)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb update table=%s day=%s: %w", s.table, day, err)
	}
	return nil
}

// Total returns the total for day.
func (s *DynamoStore) Total(ctx context.Context, day string) (float64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(day),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb get table=%s day=%s: %w", s.table, day, err)
	}
	if out.Item == nil {
		return 0, nil
	}
	attr, ok := out.Item["total"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	total, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamodb total for %s is not numeric: %w", day, err)
	}
	return total, nil
}

var _ Store = (*DynamoStore)(nil)
