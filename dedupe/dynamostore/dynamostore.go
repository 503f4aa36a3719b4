package dynamostore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sunder-dev/rundedupe/dedupe"
)

// client is the subset of *dynamodb.Client this package depends on, so
// tests can substitute a fake without a live AWS connection.
type client interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store is a DynamoDB-backed dedupe.Persistence. Instances must be
// initialized using the NewStore factory.
type Store[Id comparable, ProcessorId comparable, A any] struct {
	client    client
	tableName string
}

// NewStore constructs a Store against the given table, using the given
// *dynamodb.Client. Panics if client is nil, or tableName is empty.
//
// The table is expected to have a partition key "id" and sort key
// "processorId", both strings, and should typically have DynamoDB's native
// TTL feature enabled on the "expiresOn" attribute.
func NewStore[Id comparable, ProcessorId comparable, A any](c *dynamodb.Client, tableName string) *Store[Id, ProcessorId, A] {
	if c == nil {
		panic("dynamostore: nil client")
	}
	if tableName == "" {
		panic("dynamostore: empty tableName")
	}
	return &Store[Id, ProcessorId, A]{client: c, tableName: tableName}
}

// Claim implements dedupe.Persistence, via a conditional UpdateItem using
// if_not_exists and ReturnValues=ALL_OLD, matching the original
// single-round-trip claim-or-observe semantics.
func (s *Store[Id, ProcessorId, A]) Claim(ctx context.Context, id Id, processorID ProcessorId, now time.Time) (*dedupe.Record[Id, ProcessorId, A], error) {
	idStr, processorIDStr, err := encodeKey(id, processorID)
	if err != nil {
		return nil, dedupe.NewError(dedupe.ErrEncodingFailure, "claim", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id":          &types.AttributeValueMemberS{Value: idStr},
			"processorId": &types.AttributeValueMemberS{Value: processorIDStr},
		},
		UpdateExpression: strPtr("SET startedAt = if_not_exists(startedAt, :value)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, dedupe.NewError(dedupe.ErrBackendFailure, "claim", err)
	}

	if len(out.Attributes) == 0 {
		return nil, nil
	}
	rec, err := decodeRecord[Id, ProcessorId, A](out.Attributes)
	if err != nil {
		return nil, dedupe.NewError(dedupe.ErrDecodingFailure, "claim", err)
	}
	return rec, nil
}

// Complete implements dedupe.Persistence, via an unconditional UpdateItem.
func (s *Store[Id, ProcessorId, A]) Complete(ctx context.Context, id Id, processorID ProcessorId, now time.Time, ttl *time.Duration, value A) error {
	idStr, processorIDStr, err := encodeKey(id, processorID)
	if err != nil {
		return dedupe.NewError(dedupe.ErrEncodingFailure, "complete", err)
	}

	memoizedBytes, err := json.Marshal(value)
	if err != nil {
		return dedupe.NewError(dedupe.ErrEncodingFailure, "complete", fmt.Errorf("encode memoized value: %w", err))
	}

	values := map[string]types.AttributeValue{
		":completedAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		":memoized":    &types.AttributeValueMemberS{Value: string(memoizedBytes)},
	}
	updateExpr := "SET completedAt = :completedAt, memoized = :memoized"
	if ttl != nil {
		expiresOn := now.Add(*ttl).Unix()
		values[":expiresOn"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresOn, 10)}
		updateExpr = "SET completedAt = :completedAt, memoized = :memoized, expiresOn = :expiresOn"
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id":          &types.AttributeValueMemberS{Value: idStr},
			"processorId": &types.AttributeValueMemberS{Value: processorIDStr},
		},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return dedupe.NewError(dedupe.ErrBackendFailure, "complete", err)
	}
	return nil
}

// Invalidate implements dedupe.Persistence, via DeleteItem.
func (s *Store[Id, ProcessorId, A]) Invalidate(ctx context.Context, id Id, processorID ProcessorId) error {
	idStr, processorIDStr, err := encodeKey(id, processorID)
	if err != nil {
		return dedupe.NewError(dedupe.ErrEncodingFailure, "invalidate", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id":          &types.AttributeValueMemberS{Value: idStr},
			"processorId": &types.AttributeValueMemberS{Value: processorIDStr},
		},
	})
	if err != nil {
		return dedupe.NewError(dedupe.ErrBackendFailure, "invalidate", err)
	}
	return nil
}

func encodeKey[Id comparable, ProcessorId comparable](id Id, processorID ProcessorId) (idStr, processorIDStr string, err error) {
	idBytes, err := json.Marshal(id)
	if err != nil {
		return "", "", fmt.Errorf("encode id: %w", err)
	}
	processorIDBytes, err := json.Marshal(processorID)
	if err != nil {
		return "", "", fmt.Errorf("encode processorId: %w", err)
	}
	return string(idBytes), string(processorIDBytes), nil
}

func decodeRecord[Id comparable, ProcessorId comparable, A any](attrs map[string]types.AttributeValue) (*dedupe.Record[Id, ProcessorId, A], error) {
	idStr, ok := attrs["id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'id' attribute")
	}
	var id Id
	if err := json.Unmarshal([]byte(idStr.Value), &id); err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}

	processorIDStr, ok := attrs["processorId"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'processorId' attribute")
	}
	var processorID ProcessorId
	if err := json.Unmarshal([]byte(processorIDStr.Value), &processorID); err != nil {
		return nil, fmt.Errorf("decode processorId: %w", err)
	}

	startedAtN, ok := attrs["startedAt"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'startedAt' attribute")
	}
	startedAtMillis, err := strconv.ParseInt(startedAtN.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse startedAt: %w", err)
	}

	rec := &dedupe.Record[Id, ProcessorId, A]{
		ID:          id,
		ProcessorID: processorID,
		StartedAt:   time.UnixMilli(startedAtMillis),
	}

	if completedAtN, ok := attrs["completedAt"].(*types.AttributeValueMemberN); ok {
		completedAtMillis, err := strconv.ParseInt(completedAtN.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse completedAt: %w", err)
		}
		completedAt := time.UnixMilli(completedAtMillis)
		rec.CompletedAt = &completedAt
	}

	if expiresOnN, ok := attrs["expiresOn"].(*types.AttributeValueMemberN); ok {
		expiresOnSecs, err := strconv.ParseInt(expiresOnN.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse expiresOn: %w", err)
		}
		expiresOn := time.Unix(expiresOnSecs, 0)
		rec.ExpiresOn = &expiresOn
	}

	if memoizedS, ok := attrs["memoized"].(*types.AttributeValueMemberS); ok {
		var memoized A
		if err := json.Unmarshal([]byte(memoizedS.Value), &memoized); err != nil {
			return nil, fmt.Errorf("decode memoized: %w", err)
		}
		rec.Memoized = &memoized
	}

	return rec, nil
}

func strPtr(s string) *string { return &s }
