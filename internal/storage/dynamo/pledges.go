package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

type pledgeItem struct {
	ID                    string   `dynamodbav:"id"`
	SubmitterID           string   `dynamodbav:"submitterId,omitempty"`
	DisplayName           string   `dynamodbav:"displayName"`
	Email                 string   `dynamodbav:"email"`
	Commitments           []string `dynamodbav:"commitments"`
	DailyWaterSavedLiters int      `dynamodbav:"dailyWaterSavedLiters"`
	IsAnonymous           bool     `dynamodbav:"isAnonymous"`
	CreatedAt             int64    `dynamodbav:"createdAt"`
	UpdatedAt             int64    `dynamodbav:"updatedAt"`
}

func toPledgeItem(p *models.Pledge) pledgeItem {
	commitments := make([]string, len(p.Commitments))
	for i, c := range p.Commitments {
		commitments[i] = string(c)
	}
	return pledgeItem{
		ID:                    p.ID,
		SubmitterID:           p.SubmitterID,
		DisplayName:           p.DisplayName,
		Email:                 p.Email,
		Commitments:           commitments,
		DailyWaterSavedLiters: p.DailyWaterSavedLiters,
		IsAnonymous:           p.IsAnonymous,
		CreatedAt:             toMillis(p.CreatedAt),
		UpdatedAt:             toMillis(p.UpdatedAt),
	}
}

func (i pledgeItem) model() *models.Pledge {
	commitments := make([]models.Commitment, len(i.Commitments))
	for n, c := range i.Commitments {
		commitments[n] = models.Commitment(c)
	}
	return &models.Pledge{
		ID:                    i.ID,
		SubmitterID:           i.SubmitterID,
		DisplayName:           i.DisplayName,
		Email:                 i.Email,
		Commitments:           commitments,
		DailyWaterSavedLiters: i.DailyWaterSavedLiters,
		IsAnonymous:           i.IsAnonymous,
		CreatedAt:             fromMillis(i.CreatedAt),
		UpdatedAt:             fromMillis(i.UpdatedAt),
	}
}

func (s *DynamoStore) putPledge(ctx context.Context, op string, pledge *models.Pledge, condition string) error {
	item, err := attributevalue.MarshalMap(toPledgeItem(pledge))
	if err != nil {
		return fmt.Errorf("failed to marshal pledge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.pledges),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if isConditionFailed(err) && condition == "attribute_exists(id)" {
		return fmt.Errorf("pledge %s: %w", pledge.ID, storage.ErrNotFound)
	}
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// CreatePledge stores a new pledge item.
func (s *DynamoStore) CreatePledge(ctx context.Context, pledge *models.Pledge) error {
	if pledge.ID == "" {
		pledge.ID = uuid.New().String()
	}
	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = time.Now().UTC()
	}
	if pledge.UpdatedAt.IsZero() {
		pledge.UpdatedAt = pledge.CreatedAt
	}
	return s.putPledge(ctx, "insert pledge", pledge, "attribute_not_exists(id)")
}

// GetPledge retrieves a pledge by ID.
func (s *DynamoStore) GetPledge(ctx context.Context, id string) (*models.Pledge, error) {
	var item pledgeItem
	found, err := s.getItem(ctx, s.pledges, id, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pledge %s: %w", id, storage.ErrNotFound)
	}
	return item.model(), nil
}

// UpdatePledge overwrites an existing pledge item.
func (s *DynamoStore) UpdatePledge(ctx context.Context, pledge *models.Pledge) error {
	return s.putPledge(ctx, "update pledge", pledge, "attribute_exists(id)")
}

// DeletePledge removes a pledge item.
func (s *DynamoStore) DeletePledge(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.pledges),
		Key:                 key(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("pledge %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return classify("delete pledge", err)
	}
	return nil
}

func (s *DynamoStore) scanPledges(ctx context.Context, input *dynamodb.ScanInput) ([]*models.Pledge, error) {
	input.TableName = aws.String(s.pledges)
	var items []pledgeItem
	if err := s.scanAll(ctx, input, &items); err != nil {
		return nil, err
	}

	pledges := make([]*models.Pledge, len(items))
	for i, item := range items {
		pledges[i] = item.model()
	}
	return pledges, nil
}

// ListPledges scans every pledge and returns one page, newest first.
func (s *DynamoStore) ListPledges(ctx context.Context, limit, offset int) ([]*models.Pledge, error) {
	pledges, err := s.scanPledges(ctx, &dynamodb.ScanInput{})
	if err != nil {
		return nil, err
	}
	storage.SortNewestFirst(pledges)

	if offset >= len(pledges) {
		return []*models.Pledge{}, nil
	}
	end := offset + limit
	if end > len(pledges) {
		end = len(pledges)
	}
	return pledges[offset:end], nil
}

// ListPledgesBySubmitter scans with a submitter filter, newest first.
func (s *DynamoStore) ListPledgesBySubmitter(ctx context.Context, submitterID string) ([]*models.Pledge, error) {
	pledges, err := s.scanPledges(ctx, &dynamodb.ScanInput{
		FilterExpression: aws.String("submitterId = :s"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":s": &dynamodbtypes.AttributeValueMemberS{Value: submitterID},
		},
	})
	if err != nil {
		return nil, err
	}
	storage.SortNewestFirst(pledges)
	return pledges, nil
}

// CountPledges sums the per-page counts of a COUNT scan.
func (s *DynamoStore) CountPledges(ctx context.Context) (int64, error) {
	var total int64
	var lastEvaluatedKey map[string]dynamodbtypes.AttributeValue

	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.pledges),
			Select:            dynamodbtypes.SelectCount,
			ExclusiveStartKey: lastEvaluatedKey,
			ConsistentRead:    aws.Bool(true),
		})
		if err != nil {
			return 0, storage.Unavailable("count pledges", err)
		}
		total += int64(result.Count)

		lastEvaluatedKey = result.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			break
		}
	}
	return total, nil
}

// SumWaterSaved projects only the savings attribute and adds it up.
func (s *DynamoStore) SumWaterSaved(ctx context.Context) (int64, error) {
	pledges, err := s.scanPledges(ctx, &dynamodb.ScanInput{
		ProjectionExpression: aws.String("id, dailyWaterSavedLiters"),
	})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range pledges {
		total += int64(p.DailyWaterSavedLiters)
	}
	return total, nil
}

// MonthlyBreakdown folds a projected scan by creation month.
func (s *DynamoStore) MonthlyBreakdown(ctx context.Context) ([]models.MonthlyPledges, error) {
	pledges, err := s.scanPledges(ctx, &dynamodb.ScanInput{
		ProjectionExpression: aws.String("id, dailyWaterSavedLiters, createdAt"),
	})
	if err != nil {
		return nil, err
	}
	return storage.FoldMonthly(pledges), nil
}

// CommitmentPopularity folds a projected scan of commitments.
func (s *DynamoStore) CommitmentPopularity(ctx context.Context) ([]models.CommitmentCount, error) {
	pledges, err := s.scanPledges(ctx, &dynamodb.ScanInput{
		ProjectionExpression: aws.String("id, commitments"),
	})
	if err != nil {
		return nil, err
	}
	return storage.FoldPopularity(pledges), nil
}
