package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

type statisticItem struct {
	ID              string  `dynamodbav:"id"`
	Kind            string  `dynamodbav:"kind"`
	Value           float64 `dynamodbav:"value"`
	Unit            string  `dynamodbav:"unit"`
	Description     string  `dynamodbav:"description"`
	Source          string  `dynamodbav:"source"`
	IsActive        bool    `dynamodbav:"isActive"`
	UpdateFrequency string  `dynamodbav:"updateFrequency"`
	CreatedAt       int64   `dynamodbav:"createdAt"`
	LastUpdated     int64   `dynamodbav:"lastUpdated"`
}

func toStatisticItem(s *models.ReferenceStatistic) statisticItem {
	return statisticItem{
		ID:              s.ID,
		Kind:            string(s.Kind),
		Value:           s.Value,
		Unit:            string(s.Unit),
		Description:     s.Description,
		Source:          s.Source,
		IsActive:        s.IsActive,
		UpdateFrequency: string(s.UpdateFrequency),
		CreatedAt:       toMillis(s.CreatedAt),
		LastUpdated:     toMillis(s.LastUpdated),
	}
}

func (i statisticItem) model() *models.ReferenceStatistic {
	return &models.ReferenceStatistic{
		ID:              i.ID,
		Kind:            models.StatisticKind(i.Kind),
		Value:           i.Value,
		Unit:            models.StatisticUnit(i.Unit),
		Description:     i.Description,
		Source:          i.Source,
		IsActive:        i.IsActive,
		UpdateFrequency: models.UpdateFrequency(i.UpdateFrequency),
		CreatedAt:       fromMillis(i.CreatedAt),
		LastUpdated:     fromMillis(i.LastUpdated),
	}
}

func prepareStatistic(stat *models.ReferenceStatistic) {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = time.Now().UTC()
	}
	if stat.LastUpdated.IsZero() {
		stat.LastUpdated = stat.CreatedAt
	}
}

// CreateStatistic writes the statistic and its kind marker in one transaction.
func (s *DynamoStore) CreateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	prepareStatistic(stat)

	marker, err := s.putUnique(kindMarker(string(stat.Kind)), stat.ID)
	if err != nil {
		return err
	}
	record, err := putRecord(s.statistics, toStatisticItem(stat), false)
	if err != nil {
		return err
	}
	return s.transact(ctx, "insert statistic", marker, record)
}

// GetStatistic retrieves a statistic by ID.
func (s *DynamoStore) GetStatistic(ctx context.Context, id string) (*models.ReferenceStatistic, error) {
	var item statisticItem
	found, err := s.getItem(ctx, s.statistics, id, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("statistic %s: %w", id, storage.ErrNotFound)
	}
	return item.model(), nil
}

// UpdateStatistic overwrites a statistic, moving its kind marker when the
// kind changes.
func (s *DynamoStore) UpdateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	current, err := s.GetStatistic(ctx, stat.ID)
	if err != nil {
		return err
	}

	record, err := putRecord(s.statistics, toStatisticItem(stat), true)
	if err != nil {
		return err
	}
	items := []dynamodbtypes.TransactWriteItem{record}
	if current.Kind != stat.Kind {
		marker, err := s.putUnique(kindMarker(string(stat.Kind)), stat.ID)
		if err != nil {
			return err
		}
		items = append(items, marker, s.deleteUnique(kindMarker(string(current.Kind))))
	}
	return s.transact(ctx, "update statistic", items...)
}

// DeleteStatistic removes a statistic and releases its kind.
func (s *DynamoStore) DeleteStatistic(ctx context.Context, id string) error {
	current, err := s.GetStatistic(ctx, id)
	if err != nil {
		return err
	}

	err = s.transact(ctx, "delete statistic",
		dynamodbtypes.TransactWriteItem{Delete: &dynamodbtypes.Delete{
			TableName:           aws.String(s.statistics),
			Key:                 key(id),
			ConditionExpression: aws.String("attribute_exists(id)"),
		}},
		s.deleteUnique(kindMarker(string(current.Kind))),
	)
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("statistic %s: %w", id, storage.ErrNotFound)
	}
	return err
}

// ListStatistics scans the catalog and sorts it by kind.
func (s *DynamoStore) ListStatistics(ctx context.Context, activeOnly bool) ([]*models.ReferenceStatistic, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.statistics)}
	if activeOnly {
		input.FilterExpression = aws.String("isActive = :active")
		input.ExpressionAttributeValues = map[string]dynamodbtypes.AttributeValue{
			":active": &dynamodbtypes.AttributeValueMemberBOOL{Value: true},
		}
	}

	var items []statisticItem
	if err := s.scanAll(ctx, input, &items); err != nil {
		return nil, err
	}

	stats := make([]*models.ReferenceStatistic, len(items))
	for i, item := range items {
		stats[i] = item.model()
	}
	storage.SortByKind(stats)
	return stats, nil
}

// SetStatisticValue updates the value of an existing kind or creates it.
// A create that loses a race to another writer falls back to the update.
func (s *DynamoStore) SetStatisticValue(ctx context.Context, stat *models.ReferenceStatistic) (*models.ReferenceStatistic, error) {
	prepareStatistic(stat)

	for attempt := 0; attempt < 2; attempt++ {
		id, err := s.lookupUnique(ctx, kindMarker(string(stat.Kind)))
		if err != nil {
			return nil, err
		}
		if id != "" {
			return s.updateValue(ctx, id, "SET #v = :v, lastUpdated = :now", "attribute_exists(id)",
				map[string]dynamodbtypes.AttributeValue{
					":v":   numberValue(stat.Value),
					":now": numberValue(float64(toMillis(stat.LastUpdated))),
				})
		}

		err = s.CreateStatistic(ctx, stat)
		if err == nil {
			return stat, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to upsert statistic %s: %w", stat.Kind, storage.ErrConflict)
}

// IncrementStatistic adds delta with an update expression whose condition
// keeps the result non-negative.
func (s *DynamoStore) IncrementStatistic(ctx context.Context, kind models.StatisticKind, delta float64) (*models.ReferenceStatistic, error) {
	id, err := s.lookupUnique(ctx, kindMarker(string(kind)))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("statistic %s: %w", kind, storage.ErrNotFound)
	}

	stat, err := s.updateValue(ctx, id, "SET #v = #v + :d, lastUpdated = :now", "attribute_exists(id) AND #v >= :min",
		map[string]dynamodbtypes.AttributeValue{
			":d":   numberValue(delta),
			":min": numberValue(-delta),
			":now": numberValue(float64(toMillis(time.Now()))),
		})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("statistic %s would become negative: %w", kind, storage.ErrConflict)
		}
		return nil, err
	}
	return stat, nil
}

func (s *DynamoStore) updateValue(ctx context.Context, id, expr, cond string, values map[string]dynamodbtypes.AttributeValue) (*models.ReferenceStatistic, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.statistics),
		Key:                       key(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  map[string]string{"#v": "value"},
		ExpressionAttributeValues: values,
		ReturnValues:              dynamodbtypes.ReturnValueAllNew,
	})
	if err != nil {
		return nil, classify("update statistic value", err)
	}

	var item statisticItem
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statistic: %w", err)
	}
	return item.model(), nil
}

func numberValue(v float64) dynamodbtypes.AttributeValue {
	return &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}
