// Package awstest provides in-memory fakes of the AWS client interfaces for tests.
package awstest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Dynamo is an in-memory DynamoDB covering the expressions the stores use:
// SET assignments (placeholders and if_not_exists(a, :z) + :inc),
// attribute_exists / attribute_not_exists and equality conditions joined by AND.
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string // table -> partition key attribute
	tables map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error
	// TransactCalls counts TransactWriteItems calls.
	TransactCalls int
}

// NewDynamo returns a fake with the given tables, mapped table name -> partition key.
func NewDynamo(tables map[string]string) *Dynamo {
	d := &Dynamo{
		keys:   map[string]string{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
	for name, pk := range tables {
		d.keys[name] = pk
		d.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return d
}

// Item returns the stored item, or nil.
func (d *Dynamo) Item(table, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tables[table][key]
}

// Len returns the number of items in table.
func (d *Dynamo) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	table, k, err := d.locate(*in.TableName, in.Item)
	if err != nil {
		return nil, err
	}
	if !d.check(table[k], in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	table[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	table, k, err := d.locate(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	table, k, err := d.locate(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	current := table[k]
	if !d.check(current, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}

	item := copyItem(current)
	if item == nil {
		item = copyItem(in.Key)
	}
	updated := map[string]types.AttributeValue{}
	expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(*in.UpdateExpression), "SET"))
	for _, assign := range splitTopLevel(expr) {
		lhs, rhs, ok := strings.Cut(assign, "=")
		if !ok {
			return nil, fmt.Errorf("awstest: unsupported assignment %q", assign)
		}
		name := resolveName(strings.TrimSpace(lhs), in.ExpressionAttributeNames)
		v, err := evalValue(strings.TrimSpace(rhs), item, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		item[name] = v
		updated[name] = v
	}
	table[k] = item

	out := &dyn.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueUpdatedNew:
		out.Attributes = updated
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.TransactCalls++
	if d.Err != nil {
		return nil, d.Err
	}
	for _, it := range in.TransactItems {
		p := it.Put
		if p == nil {
			return nil, fmt.Errorf("awstest: only Put is supported in transactions")
		}
		table, k, err := d.locate(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		if !d.check(table[k], p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues) {
			return nil, &types.TransactionCanceledException{Message: strPtr("ConditionalCheckFailed")}
		}
	}
	for _, it := range in.TransactItems {
		table, k, _ := d.locate(*it.Put.TableName, it.Put.Item)
		table[k] = copyItem(it.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) locate(tableName string, item map[string]types.AttributeValue) (map[string]map[string]types.AttributeValue, string, error) {
	pk, ok := d.keys[tableName]
	if !ok {
		return nil, "", &types.ResourceNotFoundException{Message: strPtr("table " + tableName)}
	}
	av, ok := item[pk].(*types.AttributeValueMemberS)
	if !ok {
		return nil, "", fmt.Errorf("awstest: %s: missing string key %s", tableName, pk)
	}
	return d.tables[tableName], av.Value, nil
}

func (d *Dynamo) check(item map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if cond == nil || *cond == "" {
		return true
	}
	for _, clause := range strings.Split(*cond, " AND ") {
		if !d.checkClause(item, strings.TrimSpace(clause), names, values) {
			return false
		}
	}
	return true
}

func (d *Dynamo) checkClause(item map[string]types.AttributeValue, c string, names map[string]string, values map[string]types.AttributeValue) bool {
	switch {
	case strings.HasPrefix(c, "attribute_not_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(c, "attribute_not_exists("), ")"), names)
		_, ok := item[attr]
		return !ok
	case strings.HasPrefix(c, "attribute_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(c, "attribute_exists("), ")"), names)
		_, ok := item[attr]
		return ok
	}
	lhs, rhs, ok := strings.Cut(c, "=")
	if !ok || item == nil {
		return false
	}
	got, ok := item[resolveName(strings.TrimSpace(lhs), names)].(*types.AttributeValueMemberS)
	want, ok2 := values[strings.TrimSpace(rhs)].(*types.AttributeValueMemberS)
	return ok && ok2 && got.Value == want.Value
}

func evalValue(rhs string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	if !strings.HasPrefix(rhs, "if_not_exists(") {
		v, ok := values[rhs]
		if !ok {
			return nil, fmt.Errorf("awstest: missing value %s", rhs)
		}
		return v, nil
	}
	// if_not_exists(attr, :zero) + :inc
	inner, rest, _ := strings.Cut(strings.TrimPrefix(rhs, "if_not_exists("), ")")
	attr, zero, _ := strings.Cut(inner, ",")
	base := values[strings.TrimSpace(zero)]
	if cur, ok := item[resolveName(strings.TrimSpace(attr), names)]; ok {
		base = cur
	}
	n, err := number(base)
	if err != nil {
		return nil, err
	}
	if _, inc, ok := strings.Cut(rest, "+"); ok {
		m, err := number(values[strings.TrimSpace(inc)])
		if err != nil {
			return nil, err
		}
		n += m
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}, nil
}

func number(v types.AttributeValue) (int64, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("awstest: not a number: %T", v)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	if in == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
