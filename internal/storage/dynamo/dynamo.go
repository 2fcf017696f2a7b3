// Package dynamo provides a DynamoDB-backed implementation of the
// storage.Store interface.
//
// DynamoDB has no server-side grouping, so aggregates fold in memory over a
// paginated scan. Uniqueness of statistic kinds and user emails is enforced
// with marker items written in the same transaction as the record.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aquaguard/aquaguard/internal/storage"
)

// Ensure DynamoStore implements storage.Store
var _ storage.Store = (*DynamoStore)(nil)

// Config selects the region, endpoint and table names.
type Config struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	// DynamoDB Local accepts any credentials, so static ones are used.
	Endpoint    string
	TablePrefix string
	// CreateTables creates missing tables on start-up.
	CreateTables bool
}

// DynamoStore implements storage.Store using DynamoDB.
type DynamoStore struct {
	client     *dynamodb.Client
	pledges    string
	statistics string
	users      string
	unique     string
}

// New builds a client from the default AWS configuration chain.
func New(ctx context.Context, cfg Config) (*DynamoStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := NewWithClient(client, cfg.TablePrefix)
	if cfg.CreateTables {
		if err := s.EnsureTables(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithClient wraps an existing client. Table names are prefix plus
// pledges, statistics, users and unique.
func NewWithClient(client *dynamodb.Client, prefix string) *DynamoStore {
	return &DynamoStore{
		client:     client,
		pledges:    prefix + "pledges",
		statistics: prefix + "statistics",
		users:      prefix + "users",
		unique:     prefix + "unique",
	}
}

func (s *DynamoStore) tables() []string {
	return []string{s.pledges, s.statistics, s.users, s.unique}
}

// EnsureTables creates every missing table with an "id" hash key and
// on-demand billing, then waits until they are active.
func (s *DynamoStore) EnsureTables(ctx context.Context) error {
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	for _, table := range s.tables() {
		_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err == nil {
			continue
		}
		var notFound *dynamodbtypes.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return storage.Unavailable("describe table "+table, err)
		}

		_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(table),
			AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
			},
			KeySchema: []dynamodbtypes.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: dynamodbtypes.KeyTypeHash},
			},
			BillingMode: dynamodbtypes.BillingModePayPerRequest,
		})
		if err != nil {
			return storage.Unavailable("create table "+table, err)
		}
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute); err != nil {
			return storage.Unavailable("wait for table "+table, err)
		}
	}
	return nil
}

// Ping describes the pledges table.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.pledges)})
	if err != nil {
		return storage.Unavailable("describe table "+s.pledges, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error {
	return nil
}

// classify maps an SDK error to the storage error taxonomy. Failed
// conditions and cancelled transactions mean a uniqueness or existence
// check did not hold; callers translate them further when they know which.
func classify(op string, err error) error {
	var ccf *dynamodbtypes.ConditionalCheckFailedException
	var tce *dynamodbtypes.TransactionCanceledException
	switch {
	case errors.As(err, &ccf), errors.As(err, &tce):
		return fmt.Errorf("failed to %s: %w", op, storage.ErrConflict)
	}
	return storage.Unavailable(op, err)
}

func isConditionFailed(err error) bool {
	var ccf *dynamodbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func key(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}

// getItem loads the item with id into out and reports whether it exists.
func (s *DynamoStore) getItem(ctx context.Context, table, id string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, storage.Unavailable("get item from "+table, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item from %s: %w", table, err)
	}
	return true, nil
}

// scanAll reads every page of a scan into out, which must point to a slice.
func (s *DynamoStore) scanAll(ctx context.Context, input *dynamodb.ScanInput, out interface{}) error {
	var items []map[string]dynamodbtypes.AttributeValue
	var lastEvaluatedKey map[string]dynamodbtypes.AttributeValue

	for {
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}
		input.ConsistentRead = aws.Bool(true)

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return storage.Unavailable("scan "+aws.ToString(input.TableName), err)
		}
		items = append(items, result.Items...)

		lastEvaluatedKey = result.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			break
		}
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", aws.ToString(input.TableName), err)
	}
	return nil
}

// uniqueItem reserves a value, such as a statistic kind, for one record.
type uniqueItem struct {
	ID  string `dynamodbav:"id"`
	Ref string `dynamodbav:"ref"`
}

func kindMarker(kind string) string   { return "statistic_kind#" + kind }
func emailMarker(email string) string { return "user_email#" + email }

// lookupUnique returns the record ID reserved under marker, or "".
func (s *DynamoStore) lookupUnique(ctx context.Context, marker string) (string, error) {
	var item uniqueItem
	found, err := s.getItem(ctx, s.unique, marker, &item)
	if err != nil || !found {
		return "", err
	}
	return item.Ref, nil
}

func (s *DynamoStore) putUnique(marker, ref string) (dynamodbtypes.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(uniqueItem{ID: marker, Ref: ref})
	if err != nil {
		return dynamodbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal marker: %w", err)
	}
	return dynamodbtypes.TransactWriteItem{Put: &dynamodbtypes.Put{
		TableName:           aws.String(s.unique),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	}}, nil
}

func (s *DynamoStore) deleteUnique(marker string) dynamodbtypes.TransactWriteItem {
	return dynamodbtypes.TransactWriteItem{Delete: &dynamodbtypes.Delete{
		TableName: aws.String(s.unique),
		Key:       key(marker),
	}}
}

// putRecord builds a transactional put of item into table. When mustExist
// is set the record has to be present already, otherwise it must be new.
func putRecord(table string, item interface{}, mustExist bool) (dynamodbtypes.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return dynamodbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal record: %w", err)
	}
	cond := "attribute_not_exists(id)"
	if mustExist {
		cond = "attribute_exists(id)"
	}
	return dynamodbtypes.TransactWriteItem{Put: &dynamodbtypes.Put{
		TableName:           aws.String(table),
		Item:                av,
		ConditionExpression: aws.String(cond),
	}}, nil
}

func (s *DynamoStore) transact(ctx context.Context, op string, items ...dynamodbtypes.TransactWriteItem) error {
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return classify(op, err)
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
