package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo evaluates only the list_append expression DynamoStore issues.
type fakeDynamo struct {
	items   map[string][]types.AttributeValue
	updates []*dynamodb.UpdateItemInput
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	id := in.Key["conversation_id"].(*types.AttributeValueMemberS).Value
	msgs := in.ExpressionAttributeValues[":msgs"].(*types.AttributeValueMemberL).Value
	f.items[id] = append(f.items[id], msgs...)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["conversation_id"].(*types.AttributeValueMemberS).Value
	msgs, ok := f.items[id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"conversation_id": &types.AttributeValueMemberS{Value: id},
		"messages":        &types.AttributeValueMemberL{Value: msgs},
	}}, nil
}

func TestDynamoStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{items: map[string][]types.AttributeValue{}}
	s := NewDynamoStoreWithClient(fake, "")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, s.Append(ctx, "conv-1",
		Turn{Role: RoleUser, Content: "Make it shorter"},
		Turn{Role: RoleAssistant, Content: `[{"search":"a","replace":"b"}]`},
	))

	require.Len(t, fake.updates, 1)
	assert.Equal(t, DefaultDynamoTable, aws.ToString(fake.updates[0].TableName))
	assert.Contains(t, aws.ToString(fake.updates[0].UpdateExpression), "list_append(if_not_exists(messages, :empty), :msgs)")

	got, err := s.List(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.Equal(t, "Make it shorter", got[0].Content)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got[0].CreatedAt)
}

func TestDynamoStore_UnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{items: map[string][]types.AttributeValue{}}
	s := NewDynamoStoreWithClient(fake, "History")

	got, err := s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Append(ctx, "conv-1"))
	assert.Empty(t, fake.updates)
	assert.ErrorIs(t, s.Append(ctx, "", Turn{}), ErrInvalidID)
}
