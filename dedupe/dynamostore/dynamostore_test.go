package dynamostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient implements the client interface against an in-memory table,
// mimicking just enough of DynamoDB's UpdateItem/DeleteItem semantics to
// exercise Store without a live connection: if_not_exists, ReturnValues,
// and unconditional SET/DELETE.
type fakeClient struct {
	items map[string]map[string]types.AttributeValue
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(key map[string]types.AttributeValue) string {
	id := key["id"].(*types.AttributeValueMemberS).Value
	processorID := key["processorId"].(*types.AttributeValueMemberS).Value
	return id + "\x00" + processorID
}

func (f *fakeClient) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	k := itemKey(params.Key)
	item, ok := f.items[k]
	var old map[string]types.AttributeValue
	if ok {
		old = map[string]types.AttributeValue{}
		for attr, v := range item {
			old[attr] = v
		}
	} else {
		item = map[string]types.AttributeValue{
			"id":          params.Key["id"],
			"processorId": params.Key["processorId"],
		}
		f.items[k] = item
	}

	switch *params.UpdateExpression {
	case "SET startedAt = if_not_exists(startedAt, :value)":
		if _, exists := item["startedAt"]; !exists {
			item["startedAt"] = params.ExpressionAttributeValues[":value"]
		}
	case "SET completedAt = :completedAt, memoized = :memoized":
		item["completedAt"] = params.ExpressionAttributeValues[":completedAt"]
		item["memoized"] = params.ExpressionAttributeValues[":memoized"]
	case "SET completedAt = :completedAt, memoized = :memoized, expiresOn = :expiresOn":
		item["completedAt"] = params.ExpressionAttributeValues[":completedAt"]
		item["memoized"] = params.ExpressionAttributeValues[":memoized"]
		item["expiresOn"] = params.ExpressionAttributeValues[":expiresOn"]
	default:
		return nil, errors.New("fakeClient: unrecognized update expression: " + *params.UpdateExpression)
	}

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.items, itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func newTestStore() (*Store[string, string, string], *fakeClient) {
	fc := newFakeClient()
	return &Store[string, string, string]{client: fc, tableName: "dedupe-test"}, fc
}

func TestStore_Claim_FirstReturnsNil(t *testing.T) {
	s, _ := newTestStore()
	rec, err := s.Claim(context.Background(), "sig", "proc", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestStore_Claim_SecondReturnsPriorState(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	if _, err := s.Claim(ctx, "sig", "proc", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.Claim(ctx, "sig", "proc", now.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected non-nil record")
	}
	if !rec.StartedAt.Equal(now) {
		t.Fatalf("StartedAt = %v, want %v", rec.StartedAt, now)
	}
	if rec.ID != "sig" || rec.ProcessorID != "proc" {
		t.Fatalf("unexpected identity: %+v", rec)
	}
}

func TestStore_Complete_WithoutTTL(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	if _, err := s.Claim(ctx, "sig", "proc", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Complete(ctx, "sig", "proc", now, nil, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rec, err := s.Claim(ctx, "sig", "proc", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v", rec.CompletedAt, now)
	}
	if rec.Memoized == nil || *rec.Memoized != "done" {
		t.Fatalf("Memoized = %v, want 'done'", rec.Memoized)
	}
	if rec.ExpiresOn != nil {
		t.Fatalf("expected nil ExpiresOn, got %v", rec.ExpiresOn)
	}
}

func TestStore_Complete_WithTTL_UsesSecondsUnit(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	ttl := 10 * time.Second

	if _, err := s.Claim(ctx, "sig", "proc", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Complete(ctx, "sig", "proc", now, &ttl, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rec, err := s.Claim(ctx, "sig", "proc", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	want := now.Add(ttl)
	if rec.ExpiresOn == nil || !rec.ExpiresOn.Equal(want) {
		t.Fatalf("ExpiresOn = %v, want %v", rec.ExpiresOn, want)
	}
}

func TestStore_Invalidate(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	now := time.Now()

	if _, err := s.Claim(ctx, "sig", "proc", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Invalidate(ctx, "sig", "proc"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	rec, err := s.Claim(ctx, "sig", "proc", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record after invalidate, got %+v", rec)
	}
}

func TestNewStore_PanicsOnNilClient(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewStore[string, string, string](nil, "table")
}

func TestNewStore_PanicsOnEmptyTableName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewStore[string, string, string](&dynamodb.Client{}, "")
}

func TestEncodeKey_JSONEncodesComponents(t *testing.T) {
	idStr, processorIDStr, err := encodeKey("sig-1", "svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idStr != `"sig-1"` || processorIDStr != `"svc"` {
		t.Fatalf("got (%q, %q)", idStr, processorIDStr)
	}
}
