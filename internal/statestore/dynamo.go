package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// stateItem is the DynamoDB row shape. The snapshot travels as JSON so the
// table schema stays stable while the state struct evolves.
type stateItem struct {
	SessionID string `dynamodbav:"sessionId"`
	Payload   string `dynamodbav:"payload"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore persists states to a DynamoDB table with a conditional write
// for the optimistic version check. The table's TTL attribute handles expiry
// server-side; Load re-checks it for clock skew.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("statestore: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("statestore: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, logger: logger, now: time.Now}
}

func (s *DynamoStore) Load(ctx context.Context, sessionID, channel string) (*conversation.State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            stateKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrStorageUnavailable, sessionID, err)
	}
	if out.Item == nil {
		return conversation.NewState(sessionID, channel), nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal item for %s: %w", sessionID, err)
	}

	var state conversation.State
	if err := json.Unmarshal([]byte(item.Payload), &state); err != nil {
		s.logger.Error("discarding unreadable state payload", "session_id", sessionID, "error", err)
		fresh := conversation.NewState(sessionID, channel)
		fresh.Version = item.Version
		return fresh, nil
	}
	state.Version = item.Version

	if state.Expired(s.ttl, s.now()) {
		fresh := conversation.NewState(sessionID, channel)
		fresh.Version = item.Version
		return fresh, nil
	}
	return &state, nil
}

func (s *DynamoStore) Save(ctx context.Context, state *conversation.State) error {
	now := s.now().UTC()
	next := state.Clone()
	next.Version = state.Version + 1
	next.LastUpdatedAt = now

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("statestore: marshal state: %w", err)
	}

	item, err := attributevalue.MarshalMap(stateItem{
		SessionID: state.SessionID,
		Payload:   string(payload),
		Version:   next.Version,
		UpdatedAt: now.Format(time.RFC3339Nano),
		ExpiresAt: expiresAt(now, s.ttl),
	})
	if err != nil {
		return fmt.Errorf("statestore: marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sessionId) OR version = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(state.Version, 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrVersionConflict
		}
		return fmt.Errorf("%w: save %s: %v", ErrStorageUnavailable, state.SessionID, err)
	}

	state.Version = next.Version
	state.LastUpdatedAt = now
	return nil
}

func stateKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
}

func expiresAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).Unix()
}
