package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/barbershop-booking/internal/domain"
)

// AppointmentRepo provides typed DynamoDB operations for the appointments
// table. The date index (date, scheduled_at) serves both the admin day view
// and the queue.
type AppointmentRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAppointmentRepo(client *dynamodb.Client, tableName string) *AppointmentRepo {
	return &AppointmentRepo{client: client, tableName: tableName}
}

func (r *AppointmentRepo) Put(ctx context.Context, a *domain.Appointment) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal appointment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("appointment_id", appointmentID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("appointment not found: %w", domain.ErrNotFound)
	}
	var a domain.Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByCustomer returns the customer's appointments, newest booking first.
func (r *AppointmentRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Appointment, error) {
	return queryAll[domain.Appointment](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexCustomerCreated),
		KeyConditionExpression: aws.String("customer_id = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: customerID},
		},
		ScanIndexForward: aws.Bool(false),
	})
}

// ListByDate returns one page of a day's appointments ordered by time.
// cursor is the opaque value returned by the previous page; the returned
// cursor is empty on the last page.
func (r *AppointmentRepo) ListByDate(ctx context.Context, date string, limit int32, cursor string) ([]domain.Appointment, string, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexDateScheduled),
		KeyConditionExpression: aws.String("#d = :d"),
		ExpressionAttributeNames: map[string]string{
			"#d": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: date},
		},
		ExclusiveStartKey: start,
		Limit:             aws.Int32(limit),
	})
	if err != nil {
		return nil, "", err
	}
	var appts []domain.Appointment
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &appts); err != nil {
		return nil, "", err
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return appts, next, nil
}

// ListActiveByDate returns every pending or confirmed appointment of the day.
func (r *AppointmentRepo) ListActiveByDate(ctx context.Context, date string) ([]domain.Appointment, error) {
	return queryAll[domain.Appointment](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexDateScheduled),
		KeyConditionExpression: aws.String("#d = :d"),
		FilterExpression:       aws.String("#s IN (:p, :c)"),
		ExpressionAttributeNames: map[string]string{
			"#d": "date",
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: date},
			":p": &types.AttributeValueMemberS{Value: string(domain.StatusPending)},
			":c": &types.AttributeValueMemberS{Value: string(domain.StatusConfirmed)},
		},
	})
}

// UpdateStatus moves an appointment from one status to the next. It fails
// with ErrConflict when the stored status is no longer from.
func (r *AppointmentRepo) UpdateStatus(ctx context.Context, appointmentID string, from, to domain.AppointmentStatus) error {
	ue, err := buildUpdateExpr(stamp(map[string]interface{}{fieldStatus: string(to)}))
	if err != nil {
		return err
	}
	ue.Names["#cur"] = fieldStatus
	ue.Values[":from"] = &types.AttributeValueMemberS{Value: string(from)}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("appointment_id", appointmentID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cur = :from"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("appointment %s is no longer %s: %w", appointmentID, from, domain.ErrConflict)
	}
	return err
}
