package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	appErrors "concept-tree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// documentItem is the DynamoDB representation of a graph document.
// The document is kept as an encoded JSON string so its shape matches the wire format.
type documentItem struct {
	PK        string `dynamodbav:"PK"`
	Payload   string `dynamodbav:"Payload"`
	Version   int64  `dynamodbav:"Version"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// DocumentStore stores one graph document per item and feeds subscribers by polling
type DocumentStore struct {
	client    Client
	tableName string
	interval  func() time.Duration
	logger    *zap.Logger
}

// NewDocumentStore creates a store over the given table.
// interval is consulted before every poll so it can change at runtime.
func NewDocumentStore(client Client, tableName string, interval func() time.Duration, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval == nil {
		interval = func() time.Duration { return 2 * time.Second }
	}
	return &DocumentStore{
		client:    client,
		tableName: tableName,
		interval:  interval,
		logger:    logger,
	}
}

func documentKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key},
	}
}

// Get reads the document with a consistent read
func (s *DocumentStore) Get(ctx context.Context, key string) (*ports.VersionedDocument, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            documentKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError("get graph document", key, err)
	}
	if result.Item == nil {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("graph document '%s'", key))
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph document item: %w", err)
	}

	var doc entities.GraphDocument
	if err := json.Unmarshal([]byte(item.Payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode graph document: %w", err)
	}
	return &ports.VersionedDocument{Document: doc, Version: item.Version}, nil
}

// Put overwrites the payload and bumps the version counter in a single update
func (s *DocumentStore) Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode graph document: %w", err)
	}

	update := expression.
		Set(expression.Name("Payload"), expression.Value(string(payload))).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339Nano))).
		Add(expression.Name("Version"), expression.Value(1))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       documentKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, mapError("put graph document", key, err)
	}

	var updated struct {
		Version int64 `dynamodbav:"Version"`
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("failed to read new version: %w", err)
	}

	s.logger.Debug("Graph document stored",
		zap.String("graphKey", key),
		zap.Int64("version", updated.Version),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("edges", len(doc.Edges)),
	)
	return updated.Version, nil
}

// Subscribe polls the item and emits a snapshot whenever its version changes.
// The first poll happens immediately. A failed read is reported once per failure
// streak and the read that ends the streak is emitted even if the version is unchanged.
func (s *DocumentStore) Subscribe(ctx context.Context, key string) (<-chan ports.DocumentSnapshot, error) {
	out := make(chan ports.DocumentSnapshot)

	go func() {
		defer close(out)

		lastVersion := int64(-1)
		failing := false
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			snap := s.poll(ctx, key)
			emit := false
			switch {
			case snap.Err != nil:
				if ctx.Err() != nil {
					return
				}
				emit = !failing
				failing = true
				// the first healthy read after a failure is always emitted
				lastVersion = -1
			case snap.Version != lastVersion:
				emit = true
				failing = false
				lastVersion = snap.Version
			default:
				failing = false
			}

			if emit {
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
			timer.Reset(s.interval())
		}
	}()

	s.logger.Debug("Polling graph document", zap.String("graphKey", key))
	return out, nil
}

func (s *DocumentStore) poll(ctx context.Context, key string) ports.DocumentSnapshot {
	snap := ports.DocumentSnapshot{Key: key}
	doc, err := s.Get(ctx, key)
	switch {
	case appErrors.IsNotFound(err):
		return snap
	case err != nil:
		snap.Err = err
		return snap
	}
	snap.Exists = true
	snap.Document = doc.Document
	snap.Version = doc.Version
	return snap
}
