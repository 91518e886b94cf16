package dynamodb

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient keeps items keyed by the string value of keyAttr.
type fakeClient struct {
	mu        sync.Mutex
	keyAttr   string
	items     map[string]map[string]types.AttributeValue
	updates   []*dynamodb.UpdateItemInput
	scans     []*dynamodb.ScanInput
	scanPages []*dynamodb.ScanOutput
	err       error
}

func newFakeClient(keyAttr string) *fakeClient {
	return &fakeClient{keyAttr: keyAttr, items: map[string]map[string]types.AttributeValue{}}
}

func (c *fakeClient) key(item map[string]types.AttributeValue) string {
	if s, ok := item[c.keyAttr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func condition(expr *string) string {
	if expr == nil {
		return ""
	}
	return *expr
}

func (c *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	k := c.key(params.Item)
	if _, exists := c.items[k]; exists && strings.Contains(condition(params.ConditionExpression), "attribute_not_exists") {
		return nil, &types.ConditionalCheckFailedException{}
	}
	c.items[k] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (c *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &dynamodb.GetItemOutput{Item: c.items[c.key(params.Key)]}, nil
}

// UpdateItem enforces attribute_exists and, for next_run_at conditions, the
// expected value. Updated attributes are not applied.
func (c *fakeClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, params)
	if c.err != nil {
		return nil, c.err
	}
	item, exists := c.items[c.key(params.Key)]
	cond := condition(params.ConditionExpression)
	if strings.Contains(cond, "attribute_exists") && !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if strings.Contains(cond, "next_run_at = :expected") {
		want := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
		got, _ := item["next_run_at"].(*types.AttributeValueMemberN)
		if got == nil || got.Value != want {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (c *fakeClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	delete(c.items, c.key(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (c *fakeClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *params
	c.scans = append(c.scans, &copied)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.scanPages) == 0 {
		return &dynamodb.ScanOutput{}, nil
	}
	page := c.scanPages[0]
	c.scanPages = c.scanPages[1:]
	return page, nil
}
