// Package dynamostore implements store.Table on Amazon DynamoDB. Each table
// has a string hash key "pk", a string range key "sk" and one global
// secondary index per declared index, keyed by the indexed attribute.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

// API is the subset of the DynamoDB client the table uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Table struct {
	api       API
	tableName string
	schema    store.Schema
}

var _ store.Table = (*Table)(nil)

// New binds schema to the DynamoDB table named tablePrefix + schema.Name.
func New(api API, tablePrefix string, schema store.Schema) *Table {
	return &Table{api: api, tableName: tablePrefix + schema.Name, schema: schema}
}

func (t *Table) Schema() store.Schema { return t.schema }

func (t *Table) TableName() string { return t.tableName }

func keyAttrs(k store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		store.AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func decode(av map[string]types.AttributeValue) (store.Item, error) {
	item := store.Item{}
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("dynamostore: decode item: %w", err)
	}
	return item, nil
}

func decodeAll(avs []map[string]types.AttributeValue) ([]store.Item, error) {
	items := make([]store.Item, 0, len(avs))
	for _, av := range avs {
		item, err := decode(av)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// encode drops empty index attributes, which DynamoDB refuses as GSI keys.
func (t *Table) encode(item store.Item) (map[string]types.AttributeValue, error) {
	clean := make(map[string]any, len(item))
	for k, v := range item {
		clean[k] = v
	}
	for _, attr := range t.schema.Indexes {
		if s, ok := clean[attr].(string); ok && s == "" {
			delete(clean, attr)
		}
	}
	av, err := attributevalue.MarshalMap(clean)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: encode item: %w", err)
	}
	return av, nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.tableName),
		Key:            keyAttrs(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamostore: get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}
	return decode(out.Item)
}

func (t *Table) put(ctx context.Context, key store.Key, item store.Item, cond *expression.ConditionBuilder) error {
	av, err := t.encode(store.PrepareItem(key, item))
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{TableName: aws.String(t.tableName), Item: av}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("dynamostore: build condition: %w", err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if _, err := t.api.PutItem(ctx, in); err != nil {
		if isConditionFailure(err) {
			return store.ErrConditionFailed
		}
		return fmt.Errorf("dynamostore: put %s: %w", key, err)
	}
	return nil
}

func (t *Table) Put(ctx context.Context, key store.Key, item store.Item) error {
	return t.put(ctx, key, item, nil)
}

func (t *Table) Create(ctx context.Context, key store.Key, item store.Item) error {
	cond := expression.AttributeNotExists(expression.Name(store.AttrPK))
	return t.put(ctx, key, item, &cond)
}

func (t *Table) Update(ctx context.Context, key store.Key, patch store.Item) (store.Item, error) {
	attrs := make([]string, 0, len(patch))
	for k := range patch {
		if k != store.AttrPK && k != store.AttrSK {
			attrs = append(attrs, k)
		}
	}
	if len(attrs) == 0 {
		return t.Get(ctx, key)
	}
	sort.Strings(attrs)

	var upd expression.UpdateBuilder
	for _, k := range attrs {
		upd = upd.Set(expression.Name(k), expression.Value(patch[k]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.Name(store.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("dynamostore: build update: %w", err)
	}

	out, err := t.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.tableName),
		Key:                       keyAttrs(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("dynamostore: update %s: %w", key, err)
	}
	return decode(out.Attributes)
}

func (t *Table) Delete(ctx context.Context, key store.Key) error {
	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.tableName),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return fmt.Errorf("dynamostore: delete %s: %w", key, err)
	}
	return nil
}

func (t *Table) query(ctx context.Context, in *dynamodb.QueryInput) ([]store.Item, error) {
	var items []store.Item
	p := dynamodb.NewQueryPaginator(t.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: query %s: %w", t.tableName, err)
		}
		decoded, err := decodeAll(page.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)
	}
	return items, nil
}

func (t *Table) Query(ctx context.Context, pk, skPrefix string) ([]store.Item, error) {
	keyCond := expression.Key(store.AttrPK).Equal(expression.Value(pk))
	if skPrefix != "" {
		keyCond = keyCond.And(expression.Key(store.AttrSK).BeginsWith(skPrefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("dynamostore: build key condition: %w", err)
	}
	return t.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(t.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
}

func (t *Table) QueryIndex(ctx context.Context, index, value string) ([]store.Item, error) {
	attr, err := t.schema.IndexAttr(index)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attr).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("dynamostore: build key condition: %w", err)
	}
	return t.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(t.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

func (t *Table) Scan(ctx context.Context, cond store.Condition) ([]store.Item, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(t.tableName), ConsistentRead: aws.Bool(true)}

	pushed := false
	if cond != nil {
		if filter, ok := translate(cond); ok {
			expr, err := expression.NewBuilder().WithFilter(filter).Build()
			if err != nil {
				return nil, fmt.Errorf("dynamostore: build filter: %w", err)
			}
			in.FilterExpression = expr.Filter()
			in.ExpressionAttributeNames = expr.Names()
			in.ExpressionAttributeValues = expr.Values()
			pushed = true
		}
	}

	var items []store.Item
	p := dynamodb.NewScanPaginator(t.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamostore: scan %s: %w", t.tableName, err)
		}
		decoded, err := decodeAll(page.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)
	}
	if !pushed {
		items = store.Filter(items, cond)
	}
	return items, nil
}

// translate turns a store.Condition into a server side filter. It reports
// false for conditions it does not know, which are then applied client side.
func translate(cond store.Condition) (expression.ConditionBuilder, bool) {
	switch c := cond.(type) {
	case store.Eq:
		return expression.Name(c.Attr).Equal(expression.Value(c.Value)), true
	case store.BeginsWith:
		return expression.Name(c.Attr).BeginsWith(c.Prefix), true
	case store.Contains:
		return expression.Name(c.Attr).Contains(c.Value), true
	case store.And:
		return combine([]store.Condition(c), expression.And)
	case store.Or:
		return combine([]store.Condition(c), expression.Or)
	}
	return expression.ConditionBuilder{}, false
}

func combine(conds []store.Condition, join func(l, r expression.ConditionBuilder, rest ...expression.ConditionBuilder) expression.ConditionBuilder) (expression.ConditionBuilder, bool) {
	built := make([]expression.ConditionBuilder, 0, len(conds))
	for _, c := range conds {
		b, ok := translate(c)
		if !ok {
			return expression.ConditionBuilder{}, false
		}
		built = append(built, b)
	}
	switch len(built) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return built[0], true
	default:
		return join(built[0], built[1], built[2:]...), true
	}
}

// EnsureTable creates the table and its indexes with on-demand billing if it
// does not exist yet.
func (t *Table) EnsureTable(ctx context.Context) error {
	defs := []types.AttributeDefinition{
		{AttributeName: aws.String(store.AttrPK), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String(store.AttrSK), AttributeType: types.ScalarAttributeTypeS},
	}
	names := make([]string, 0, len(t.schema.Indexes))
	for index := range t.schema.Indexes {
		names = append(names, index)
	}
	sort.Strings(names)

	var gsis []types.GlobalSecondaryIndex
	seen := map[string]bool{}
	for _, index := range names {
		attr := t.schema.Indexes[index]
		if !seen[attr] {
			defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(attr), AttributeType: types.ScalarAttributeTypeS})
			seen[attr] = true
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(index),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	_, err := t.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(t.tableName),
		AttributeDefinitions: defs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(store.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(store.AttrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("dynamostore: create table %s: %w", t.tableName, err)
	}
	return nil
}
