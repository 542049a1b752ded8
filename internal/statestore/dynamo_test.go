package statestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
)

// fakeDynamo implements the conditional-write contract in memory.
type fakeDynamo struct {
	items   map[string]map[string]types.AttributeValue
	getErr  error
	putErr  error
	puts    int
	lastPut *dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := in.Key["sessionId"].(*types.AttributeValueMemberS).Value
	item, ok := f.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts++
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := in.Item["sessionId"].(*types.AttributeValueMemberS).Value
	if existing, ok := f.items[key]; ok {
		prev := in.ExpressionAttributeValues[":prev"].(*types.AttributeValueMemberN).Value
		current := existing["version"].(*types.AttributeValueMemberN).Value
		if prev != current {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoSaveAndLoadRoundTrip(t *testing.T) {
	api := newFakeDynamo()
	store := NewDynamoStore(api, "conversation-states", time.Hour, nil)
	ctx := context.Background()

	state := conversation.NewState("s1", "webhook")
	state.Slots.Need = "family"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if state.Version != 1 {
		t.Errorf("expected version 1, got %d", state.Version)
	}

	loaded, err := store.Load(ctx, "s1", "webhook")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Slots.Need != "family" || loaded.Version != 1 {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

func TestDynamoSaveVersionConflict(t *testing.T) {
	api := newFakeDynamo()
	store := NewDynamoStore(api, "conversation-states", time.Hour, nil)
	ctx := context.Background()

	first := conversation.NewState("s1", "api")
	second := first.Clone()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestDynamoLoadAbsent(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "conversation-states", time.Hour, nil)

	state, err := store.Load(context.Background(), "missing", "api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Stage != conversation.StageNeed || state.Version != 0 {
		t.Errorf("expected fresh state, got %+v", state)
	}
}

func TestDynamoLoadStorageError(t *testing.T) {
	api := newFakeDynamo()
	api.getErr = errors.New("throttled")
	store := NewDynamoStore(api, "conversation-states", time.Hour, nil)

	if _, err := store.Load(context.Background(), "s1", "api"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestDynamoSaveSetsTTLAttribute(t *testing.T) {
	api := newFakeDynamo()
	store := NewDynamoStore(api, "conversation-states", 24*time.Hour, nil)

	if err := store.Save(context.Background(), conversation.NewState("s1", "api")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(api.lastPut.Item, &item); err != nil {
		t.Fatalf("unmarshal put item: %v", err)
	}
	if item.ExpiresAt == 0 {
		t.Error("expected expiresAt TTL attribute on the stored item")
	}
}
