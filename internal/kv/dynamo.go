package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore maps the contract onto a single DynamoDB table with PK/SK
// string keys. Conditional semantics come straight from DynamoDB condition
// expressions; condition failures are outcomes, not errors.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoStore(client *dynamodb.Client, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Get(ctx context.Context, pk, sk string) (Attrs, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return fromDynamoItem(out.Item)
}

func (s *DynamoStore) Put(ctx context.Context, pk, sk string, attrs Attrs, requireAbsent bool) (PutResult, error) {
	item, err := toDynamoItem(pk, sk, attrs)
	if err != nil {
		return Created, err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}
	if requireAbsent {
		input.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return AlreadyExists, nil
		}
		return Created, fmt.Errorf("put item: %w", err)
	}
	return Created, nil
}

func (s *DynamoStore) ConditionalUpdate(ctx context.Context, pk, sk string, set Attrs, remove []string, cond *Condition) (bool, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	var setParts []string
	i := 0
	for k, v := range set {
		nameRef := fmt.Sprintf("#s%d", i)
		valueRef := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return false, fmt.Errorf("marshal attr %s: %w", k, err)
		}
		names[nameRef] = k
		values[valueRef] = av
		setParts = append(setParts, nameRef+" = "+valueRef)
		i++
	}

	var removeParts []string
	for j, k := range remove {
		nameRef := fmt.Sprintf("#r%d", j)
		names[nameRef] = k
		removeParts = append(removeParts, nameRef)
	}

	expr := "SET " + strings.Join(setParts, ", ")
	if len(removeParts) > 0 {
		expr += " REMOVE " + strings.Join(removeParts, ", ")
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       itemKey(pk, sk),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}

	if cond != nil {
		names["#c"] = cond.Attr
		values[":c"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cond.LessThan)}
		if cond.OrAbsent {
			input.ConditionExpression = aws.String("attribute_not_exists(#c) OR #c < :c")
		} else {
			input.ConditionExpression = aws.String("#c < :c")
		}
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("update item: %w", err)
	}
	return true, nil
}

func (s *DynamoStore) QueryByPrefix(ctx context.Context, pk, skPrefix string) ([]Item, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query prefix: %w", err)
	}
	return fromDynamoItems(out.Items)
}

func (s *DynamoStore) ScanWithFilter(ctx context.Context, attr string, equals any, limit int) ([]Item, error) {
	av, err := attributevalue.Marshal(equals)
	if err != nil {
		return nil, fmt.Errorf("marshal filter value: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": av},
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return fromDynamoItems(out.Items)
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func toDynamoItem(pk, sk string, attrs Attrs) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(attrs))
	if err != nil {
		return nil, fmt.Errorf("marshal attrs: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	return item, nil
}

func fromDynamoItem(item map[string]types.AttributeValue) (Attrs, error) {
	var attrs map[string]any
	if err := attributevalue.UnmarshalMap(item, &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attrs: %w", err)
	}
	delete(attrs, "PK")
	delete(attrs, "SK")
	return attrs, nil
}

func fromDynamoItems(raw []map[string]types.AttributeValue) ([]Item, error) {
	var items []Item
	for _, r := range raw {
		attrs, err := fromDynamoItem(r)
		if err != nil {
			return nil, err
		}
		var pk, sk string
		if v, ok := r["PK"].(*types.AttributeValueMemberS); ok {
			pk = v.Value
		}
		if v, ok := r["SK"].(*types.AttributeValueMemberS); ok {
			sk = v.Value
		}
		items = append(items, Item{PK: pk, SK: sk, Attrs: attrs})
	}
	return items, nil
}

func isConditionFailed(err error) bool {
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}
