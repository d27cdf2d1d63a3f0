package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/barbershop-booking/internal/domain"
)

// CatalogRepo stores services and products in one table keyed by item id and
// indexed by kind then name.
type CatalogRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCatalogRepo(client *dynamodb.Client, tableName string) *CatalogRepo {
	return &CatalogRepo{client: client, tableName: tableName}
}

func (r *CatalogRepo) Put(ctx context.Context, item *domain.CatalogItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal catalog item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	return err
}

func (r *CatalogRepo) Get(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("item_id", itemID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("catalog item not found: %w", domain.ErrNotFound)
	}
	var item domain.CatalogItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByKind returns one page of items of a kind in name order. Disabled
// items are only included when includeDisabled is set.
func (r *CatalogRepo) ListByKind(ctx context.Context, kind domain.CatalogKind, includeDisabled bool, limit int32, cursor string) ([]domain.CatalogItem, string, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexKindName),
		KeyConditionExpression: aws.String("#k = :k"),
		ExpressionAttributeNames: map[string]string{
			"#k": "kind",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: string(kind)},
		},
		ExclusiveStartKey: start,
		Limit:             aws.Int32(limit),
	}
	if !includeDisabled {
		input.FilterExpression = aws.String("#en = :t")
		input.ExpressionAttributeNames["#en"] = fieldEnable
		input.ExpressionAttributeValues[":t"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var items []domain.CatalogItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, "", err
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return items, next, nil
}

func (r *CatalogRepo) Update(ctx context.Context, itemID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(stamp(updates))
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("item_id", itemID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *CatalogRepo) SoftDelete(ctx context.Context, itemID string) error {
	return r.Update(ctx, itemID, map[string]interface{}{fieldEnable: false})
}

func (r *CatalogRepo) SetImage(ctx context.Context, itemID, key string) error {
	return r.Update(ctx, itemID, map[string]interface{}{fieldImageKey: key})
}
