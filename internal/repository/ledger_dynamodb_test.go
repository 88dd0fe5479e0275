package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// fakeDynamo keeps items in memory and evaluates the handful of condition
// expressions the ledger issues.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	putErr  error
	updates []*dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyString(key map[string]types.AttributeValue) string {
	return key["incident_id"].(*types.AttributeValueMemberS).Value
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	id := keyString(in.Item)
	if _, ok := f.items[id]; ok && aws.ToString(in.ConditionExpression) == "attribute_not_exists(incident_id)" {
		return nil, conditionFailed()
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	item, ok := f.items[keyString(in.Key)]
	if !ok {
		return nil, conditionFailed()
	}
	values := in.ExpressionAttributeValues
	switch aws.ToString(in.ConditionExpression) {
	case "#s = :failed AND retryable = :true":
		status := item["status"].(*types.AttributeValueMemberS).Value
		retryable := item["retryable"].(*types.AttributeValueMemberBOOL).Value
		if status != "FAILED" || !retryable {
			return nil, conditionFailed()
		}
		item["status"] = values[":pending"]
		item["retryable"] = values[":false"]
	default:
		item["status"] = values[":status"]
		if v, ok := values[":retryable"]; ok {
			item["retryable"] = v
			item["failed_stage"] = values[":stage"]
			item["last_error"] = values[":error"]
		}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyString(in.Key)]}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func newDynamoLedger(retry bool) (LedgerRepository, *fakeDynamo) {
	fake := newFakeDynamo()
	clk := fakeclock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewDynamoDBLedger(fake, "OnBoarding_Incidents", clk, retry), fake
}

func TestDynamoDBLedgerConditionalPut(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	ledger, fake := newDynamoLedger(false)

	duplicate, err := ledger.TryInsert(ctx, "42", map[string]any{"id": float64(42), "notes": ""})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeFalse())

	info := fake.items["42"]["incident_info"].(*types.AttributeValueMemberM).Value
	g.Expect(info).To(HaveKey("id"))
	g.Expect(info).NotTo(HaveKey("notes"))

	duplicate, err = ledger.TryInsert(ctx, "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeTrue())
	g.Expect(fake.updates).To(BeEmpty())
}

func TestDynamoDBLedgerConcurrentInsert(t *testing.T) {
	g := NewWithT(t)
	ledger, _ := newDynamoLedger(true)

	g.Expect(concurrentInserts(t, ledger, "11", 8)).To(Equal(1))
}

func TestDynamoDBLedgerReclaimsRetryableFailure(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	ledger, _ := newDynamoLedger(true)

	_, err := ledger.TryInsert(ctx, "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ledger.MarkFailed(ctx, "42", domain.StageProfile, errors.New("no group"))).To(Succeed())

	entry, err := ledger.Get(ctx, "42")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entry.Status).To(Equal(domain.LedgerStatusFailed))
	g.Expect(entry.Retryable).To(BeTrue())
	g.Expect(entry.LastError).To(Equal("no group"))

	duplicate, err := ledger.TryInsert(ctx, "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeFalse())

	duplicate, err = ledger.TryInsert(ctx, "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeTrue())
}

func TestDynamoDBLedgerStorageError(t *testing.T) {
	g := NewWithT(t)
	ledger, fake := newDynamoLedger(false)
	fake.putErr = errors.New("throttled")

	_, err := ledger.TryInsert(context.Background(), "42", nil)
	g.Expect(apperrors.HasCode(err, apperrors.CodeStorageUnavailable)).To(BeTrue())

	g.Expect(ledger.MarkCompleted(context.Background(), "missing")).To(MatchError(ErrEntryNotFound))
}

func TestDynamoDBLedgerGetRejectsCorruptTimestamp(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	ledger, fake := newDynamoLedger(false)

	_, err := ledger.TryInsert(ctx, "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	fake.items["42"]["created_at"] = &types.AttributeValueMemberS{Value: "not a time"}

	_, err = ledger.Get(ctx, "42")
	g.Expect(err).To(MatchError(ContainSubstring("decode created_at")))
}
