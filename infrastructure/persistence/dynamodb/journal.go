// Package dynamodb keeps a durable journal of graph events in a DynamoDB table.
//
// Table layout:
//
//	PK = EVENTS#<aggregate_id>    SK = EVENT#<timestamp>#<event_id>
//	StatusIndex: PublishStatus / SK
package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neorest/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DynamoDB accepts at most 25 items per BatchWriteItem call
const maxBatchWrite = 25

// StatusIndex is the GSI used to find unpublished records
const StatusIndex = "StatusIndex"

// PublishStatus represents the publishing status of a journaled event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusFailed    PublishStatus = "failed"
)

// API is the subset of the DynamoDB client the journal needs
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Record is how an event is stored
type Record struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EventID       string `dynamodbav:"EventID"`
	EventType     string `dynamodbav:"EventType"`
	AggregateID   string `dynamodbav:"AggregateID"`
	TransactionID string `dynamodbav:"TransactionID,omitempty"`
	Detail        string `dynamodbav:"Detail"`
	Timestamp     string `dynamodbav:"Timestamp"`
	Version       int    `dynamodbav:"Version"`

	PublishStatus   string `dynamodbav:"PublishStatus"`
	PublishAttempts int    `dynamodbav:"PublishAttempts"`
	PublishedAt     string `dynamodbav:"PublishedAt,omitempty"`
	ErrorMessage    string `dynamodbav:"ErrorMessage,omitempty"`

	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// Journal implements ports.EventPublisher by appending events to a DynamoDB table
type Journal struct {
	client    API
	tableName string
	retention time.Duration
	logger    *zap.Logger
}

// NewJournal creates a journal. A zero retention stores records without a TTL.
func NewJournal(client API, tableName string, retention time.Duration, logger *zap.Logger) *Journal {
	return &Journal{
		client:    client,
		tableName: tableName,
		retention: retention,
		logger:    logger,
	}
}

func (j *Journal) Publish(ctx context.Context, event events.DomainEvent) error {
	return j.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch stores the events as pending records
func (j *Journal) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	writeRequests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		record, err := j.toRecord(event)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for i := 0; i < len(writeRequests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		result, err := j.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				j.tableName: writeRequests[i:end],
			},
		})
		if err != nil {
			return fmt.Errorf("failed to write events batch: %w", err)
		}
		if unprocessed := len(result.UnprocessedItems[j.tableName]); unprocessed > 0 {
			return fmt.Errorf("failed to write %d events", unprocessed)
		}
	}

	j.logger.Debug("Journaled events", zap.Int("count", len(domainEvents)), zap.String("table", j.tableName))
	return nil
}

// History returns the most recent records for an aggregate, newest first.
// A limit of zero returns every record.
func (j *Journal) History(ctx context.Context, aggregateID string, limit int) ([]Record, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(aggregateKey(aggregateID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(j.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}
	return j.query(ctx, input, limit)
}

// Pending returns up to limit records that have not been published yet
func (j *Journal) Pending(ctx context.Context, limit int) ([]Record, error) {
	keyCond := expression.Key("PublishStatus").Equal(expression.Value(string(PublishStatusPending)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pending query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(j.tableName),
		IndexName:                 aws.String(StatusIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}
	return j.query(ctx, input, limit)
}

func (j *Journal) query(ctx context.Context, input *dynamodb.QueryInput, limit int) ([]Record, error) {
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var records []Record
	for {
		result, err := j.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}

		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event records: %w", err)
		}
		records = append(records, page...)

		if result.LastEvaluatedKey == nil || (limit > 0 && len(records) >= limit) {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// MarkPublished flags a record as delivered
func (j *Journal) MarkPublished(ctx context.Context, record Record) error {
	update := expression.
		Set(expression.Name("PublishStatus"), expression.Value(string(PublishStatusPublished))).
		Set(expression.Name("PublishedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339))).
		Remove(expression.Name("ErrorMessage"))
	return j.update(ctx, record, update)
}

// MarkFailed records a failed delivery. The record stays pending until
// attempts reaches maxAttempts.
func (j *Journal) MarkFailed(ctx context.Context, record Record, cause error, maxAttempts int) error {
	attempts := record.PublishAttempts + 1
	status := PublishStatusPending
	if attempts >= maxAttempts {
		status = PublishStatusFailed
	}
	update := expression.
		Set(expression.Name("PublishStatus"), expression.Value(string(status))).
		Set(expression.Name("PublishAttempts"), expression.Value(attempts)).
		Set(expression.Name("ErrorMessage"), expression.Value(cause.Error()))
	return j.update(ctx, record, update)
}

func (j *Journal) update(ctx context.Context, record Record, update expression.UpdateBuilder) error {
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	_, err = j.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(j.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: record.PK},
			"SK": &types.AttributeValueMemberS{Value: record.SK},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", record.EventID, err)
	}
	return nil
}

func (j *Journal) toRecord(event events.DomainEvent) (Record, error) {
	detail, err := json.Marshal(event)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	timestamp := event.GetTimestamp().UTC()
	eventID := uuid.New().String()
	record := Record{
		PK:            aggregateKey(event.GetAggregateID()),
		SK:            fmt.Sprintf("EVENT#%s#%s", timestamp.Format(time.RFC3339Nano), eventID),
		EventID:       eventID,
		EventType:     event.GetEventType(),
		AggregateID:   event.GetAggregateID(),
		TransactionID: event.GetTransactionID(),
		Detail:        string(detail),
		Timestamp:     timestamp.Format(time.RFC3339Nano),
		Version:       event.GetVersion(),
		PublishStatus: string(PublishStatusPending),
	}
	if j.retention > 0 {
		record.TTL = timestamp.Add(j.retention).Unix()
	}
	return record, nil
}

func aggregateKey(aggregateID string) string {
	return "EVENTS#" + aggregateID
}

// Event exposes a stored record as a domain event whose JSON form is the stored detail
type Event struct {
	record    Record
	timestamp time.Time
}

// AsEvent wraps a record for republishing
func (r Record) AsEvent() *Event {
	ts, _ := time.Parse(time.RFC3339Nano, r.Timestamp)
	return &Event{record: r, timestamp: ts}
}

func (e *Event) GetAggregateID() string     { return e.record.AggregateID }
func (e *Event) GetEventType() string       { return e.record.EventType }
func (e *Event) GetTimestamp() time.Time    { return e.timestamp }
func (e *Event) GetVersion() int            { return e.record.Version }
func (e *Event) GetTransactionID() string   { return e.record.TransactionID }
func (e *Event) SetTransactionID(id string) { e.record.TransactionID = id }

func (e *Event) MarshalJSON() ([]byte, error) {
	return []byte(e.record.Detail), nil
}
