package ledger

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo applies ADD expressions to an in-memory table.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]float64
	updates []*dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]float64)}
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)

	day := in.Key["date"].(*types.AttributeValueMemberS).Value
	cost, err := strconv.ParseFloat(in.ExpressionAttributeValues[":cost"].(*types.AttributeValueMemberN).Value, 64)
	if err != nil {
		return nil, err
	}
	f.items[day] += cost
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	day := in.Key["date"].(*types.AttributeValueMemberS).Value
	total, ok := f.items[day]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"date":  &types.AttributeValueMemberS{Value: day},
		"total": &types.AttributeValueMemberN{Value: strconv.FormatFloat(total, 'f', -1, 64)},
	}}, nil
}

func TestDynamoStore_AddSendsAddExpression(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStoreWithClient(fake, "")

	require.NoError(t, s.Add(context.Background(), "2026-06-01", 0.00005))

	require.Len(t, fake.updates, 1)
	in := fake.updates[0]
	assert.Equal(t, DefaultDynamoTable, aws.ToString(in.TableName))
	assert.Equal(t, "ADD #total :cost", aws.ToString(in.UpdateExpression))
	assert.Equal(t, "total", in.ExpressionAttributeNames["#total"])
	assert.Equal(t, "0.00005", in.ExpressionAttributeValues[":cost"].(*types.AttributeValueMemberN).Value)
}

func TestDynamoStore_Total(t *testing.T) {
	ctx := context.Background()
	s := NewDynamoStoreWithClient(newFakeDynamo(), "Spend")

	total, err := s.Total(ctx, "2026-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	require.NoError(t, s.Add(ctx, "2026-06-01", 0.2))
	require.NoError(t, s.Add(ctx, "2026-06-01", 0.3))

	total, err = s.Total(ctx, "2026-06-01")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, total, 1e-12)
}

func TestDynamoStore_BacksLedger(t *testing.T) {
	ctx := context.Background()
	l := New(NewDynamoStoreWithClient(newFakeDynamo(), ""), Config{Limit: 0.5}, discard)

	assert.True(t, l.CheckBudget(ctx))
	l.AddCost(ctx, 0.5)
	assert.False(t, l.CheckBudget(ctx))
}
