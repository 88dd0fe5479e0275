package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// DynamoDBAPI is the subset of *dynamodb.Client used by the ledger.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type dynamoLedger struct {
	client      DynamoDBAPI
	table       string
	retryFailed bool
	clock       clock.Clock
}

// NewDynamoDBLedger stores entries in a table keyed by the string attribute incident_id.
func NewDynamoDBLedger(client DynamoDBAPI, table string, clk clock.Clock, retryFailed bool) LedgerRepository {
	return &dynamoLedger{client: client, table: table, retryFailed: retryFailed, clock: clk}
}

func (r *dynamoLedger) TryInsert(ctx context.Context, incidentID string, info map[string]any) (bool, error) {
	infoAttr, err := attributevalue.MarshalMap(SanitizeMap(info))
	if err != nil {
		return false, fmt.Errorf("encode incident info: %w", err)
	}
	now := r.now()

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item: map[string]types.AttributeValue{
			"incident_id":   &types.AttributeValueMemberS{Value: incidentID},
			"incident_info": &types.AttributeValueMemberM{Value: infoAttr},
			"status":        &types.AttributeValueMemberS{Value: string(domain.LedgerStatusPending)},
			"attempts":      &types.AttributeValueMemberN{Value: "1"},
			"retryable":     &types.AttributeValueMemberBOOL{Value: false},
			"created_at":    &types.AttributeValueMemberS{Value: now},
			"updated_at":    &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_not_exists(incident_id)"),
	})
	if err == nil {
		return false, nil
	}
	if !isConditionFailed(err) {
		return false, apperrors.NewStorageUnavailable("insert", err)
	}
	if !r.retryFailed {
		return true, nil
	}
	return r.reclaim(ctx, incidentID, infoAttr, now)
}

// reclaim moves a retryable FAILED entry back to PENDING. Two concurrent
// callers cannot both succeed because the condition no longer holds after
// the first update.
func (r *dynamoLedger) reclaim(ctx context.Context, incidentID string, infoAttr map[string]types.AttributeValue, now string) (bool, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key:       r.keyOf(incidentID),
		UpdateExpression: aws.String(
			"SET #s = :pending, incident_info = :info, retryable = :false, updated_at = :now " +
				"ADD attempts :one REMOVE failed_stage, last_error"),
		ConditionExpression:      aws.String("#s = :failed AND retryable = :true"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(domain.LedgerStatusPending)},
			":failed":  &types.AttributeValueMemberS{Value: string(domain.LedgerStatusFailed)},
			":info":    &types.AttributeValueMemberM{Value: infoAttr},
			":true":    &types.AttributeValueMemberBOOL{Value: true},
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":now":     &types.AttributeValueMemberS{Value: now},
			":one":     &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err == nil {
		return false, nil
	}
	if isConditionFailed(err) {
		return true, nil
	}
	return false, apperrors.NewStorageUnavailable("reclaim", err)
}

func (r *dynamoLedger) MarkCompleted(ctx context.Context, incidentID string) error {
	return r.update(ctx, "mark completed", incidentID, "SET #s = :status, updated_at = :now",
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(domain.LedgerStatusCompleted)},
			":now":    &types.AttributeValueMemberS{Value: r.now()},
		})
}

func (r *dynamoLedger) MarkFailed(ctx context.Context, incidentID string, stage domain.Stage, cause error) error {
	return r.update(ctx, "mark failed", incidentID,
		"SET #s = :status, failed_stage = :stage, retryable = :retryable, last_error = :error, updated_at = :now",
		map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(domain.LedgerStatusFailed)},
			":stage":     &types.AttributeValueMemberS{Value: string(stage)},
			":retryable": &types.AttributeValueMemberBOOL{Value: stage.Retryable()},
			":error":     &types.AttributeValueMemberS{Value: nonEmpty(errorText(cause))},
			":now":       &types.AttributeValueMemberS{Value: r.now()},
		})
}

func (r *dynamoLedger) update(ctx context.Context, op, incidentID, expr string, values map[string]types.AttributeValue) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       r.keyOf(incidentID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(incident_id)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return ErrEntryNotFound
	}
	if err != nil {
		return apperrors.NewStorageUnavailable(op, err)
	}
	return nil
}

type dynamoRecord struct {
	IncidentID  string         `dynamodbav:"incident_id"`
	Info        map[string]any `dynamodbav:"incident_info"`
	Status      string         `dynamodbav:"status"`
	FailedStage string         `dynamodbav:"failed_stage"`
	Retryable   bool           `dynamodbav:"retryable"`
	Attempts    int            `dynamodbav:"attempts"`
	LastError   string         `dynamodbav:"last_error"`
	CreatedAt   string         `dynamodbav:"created_at"`
	UpdatedAt   string         `dynamodbav:"updated_at"`
}

func (r *dynamoLedger) Get(ctx context.Context, incidentID string) (*domain.LedgerEntry, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.keyOf(incidentID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apperrors.NewStorageUnavailable("get", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrEntryNotFound
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode ledger entry: %w", err)
	}
	entry := &domain.LedgerEntry{
		IncidentID:  rec.IncidentID,
		Info:        rec.Info,
		Status:      domain.LedgerStatus(rec.Status),
		FailedStage: domain.Stage(rec.FailedStage),
		Retryable:   rec.Retryable,
		Attempts:    rec.Attempts,
		LastError:   rec.LastError,
	}
	if err := parseTimestamps(entry, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *dynamoLedger) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	return err
}

func (r *dynamoLedger) keyOf(incidentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"incident_id": &types.AttributeValueMemberS{Value: incidentID},
	}
}

func (r *dynamoLedger) now() string {
	return r.clock.Now().UTC().Format(time.RFC3339Nano)
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// nonEmpty avoids writing empty string attributes.
func nonEmpty(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
