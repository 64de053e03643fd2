package conversation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultDynamoTable holds one item per conversation keyed by
// "conversation_id", with the turns in a "messages" list.
const DefaultDynamoTable = "ConversationHistory"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore appends turns with list_append so concurrent appends to the same
// conversation do not overwrite each other.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
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
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"conversation_id": &types.AttributeValueMemberS{Value: id}}
}

func (s *DynamoStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if id == "" {
		return ErrInvalidID
	}
	if len(turns) == 0 {
		return nil
	}
	now := s.now().UTC()

	msgs := make([]types.AttributeValue, 0, len(turns))
	for _, t := range turns {
		created := t.CreatedAt
		if created.IsZero() {
			created = now
		}
		msgs = append(msgs, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":       &types.AttributeValueMemberS{Value: t.Role},
			"content":    &types.AttributeValueMemberS{Value: t.Content},
			"created_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(created.Unix(), 10)},
		}})
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.key(id),
		UpdateExpression: aws.String("SET messages = list_append(if_not_exists(messages, :empty), :msgs), updated_at = :ts"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":msgs":  &types.AttributeValueMemberL{Value: msgs},
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":ts":    &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb update table=%s conversation=%s: %w", s.table, id, err)
	}
	return nil
}

func (s *DynamoStore) List(ctx context.Context, id string) ([]Turn, error) {
	if id == "" {
		return []Turn{}, nil
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get table=%s conversation=%s: %w", s.table, id, err)
	}

	turns := []Turn{}
	list, ok := out.Item["messages"].(*types.AttributeValueMemberL)
	if !ok {
		return turns, nil
	}
	for _, v := range list.Value {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			continue
		}
		var t Turn
		if role, ok := m.Value["role"].(*types.AttributeValueMemberS); ok {
			t.Role = role.Value
		}
		if content, ok := m.Value["content"].(*types.AttributeValueMemberS); ok {
			t.Content = content.Value
		}
		if n, ok := m.Value["created_at"].(*types.AttributeValueMemberN); ok {
			if secs, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
				t.CreatedAt = time.Unix(secs, 0).UTC()
			}
		}
		turns = append(turns, t)
	}
	return turns, nil
}

var _ Store = (*DynamoStore)(nil)
