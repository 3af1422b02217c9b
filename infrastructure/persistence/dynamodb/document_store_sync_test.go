package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"concept-tree/application/services"
	appsync "concept-tree/application/sync"
	"concept-tree/domain/config"
	"concept-tree/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTable keeps one graph item and can fail a number of reads or writes
type fakeTable struct {
	mu          gosync.Mutex
	payload     string
	version     int64
	failGets    int
	failUpdates int
	gets        int
	updates     int
}

func (f *fakeTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGets > 0 {
		f.failGets--
		return nil, errors.New("connection reset")
	}
	if f.version == 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: testKey},
		"Payload": &types.AttributeValueMemberS{Value: f.payload},
		"Version": &types.AttributeValueMemberN{Value: strconv.FormatInt(f.version, 10)},
	}}, nil
}

func (f *fakeTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("not used")
}

func (f *fakeTable) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failUpdates > 0 {
		f.failUpdates--
		return nil, errors.New("connection reset")
	}
	for _, v := range params.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && strings.HasPrefix(s.Value, "{") {
			f.payload = s.Value
		}
	}
	f.version++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"Version": &types.AttributeValueMemberN{Value: strconv.FormatInt(f.version, 10)},
	}}, nil
}

func (f *fakeTable) failNextGets(n int) {
	f.mu.Lock()
	f.failGets = n
	f.mu.Unlock()
}

func (f *fakeTable) counts() (gets, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.updates
}

func newSyncedEngine(t *testing.T, table *fakeTable, cfg *config.DomainConfig) (*appsync.Engine, *services.Workspace) {
	t.Helper()
	store := NewDocumentStore(table, "graphs", func() time.Duration { return 5 * time.Millisecond }, zap.NewNop())
	ws := services.NewWorkspace(valueobjects.NewClockIDGenerator(), cfg, zap.NewNop())
	engine := appsync.NewEngine(testKey, store, nil, ws, cfg, zap.NewNop())
	t.Cleanup(engine.Stop)

	require.NoError(t, engine.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, engine.WaitForState(ctx, appsync.StateSynced))
	return engine, ws
}

func TestDocumentStore_SubscribeEmitsFirstReadAfterFailure(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(documentOutput(t, seed(), 1), nil).Once()
	client.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable")).Once()
	client.On("GetItem", mock.Anything, mock.Anything).Return(documentOutput(t, seed(), 1), nil)
	store := NewDocumentStore(client, "graphs", func() time.Duration { return 5 * time.Millisecond }, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := store.Subscribe(ctx, testKey)
	require.NoError(t, err)

	first := <-feed
	assert.Equal(t, int64(1), first.Version)

	failed := <-feed
	assert.Error(t, failed.Err)

	recovered := <-feed
	require.NoError(t, recovered.Err)
	assert.True(t, recovered.Exists)
	assert.Equal(t, int64(1), recovered.Version)

	select {
	case snap := <-feed:
		t.Fatalf("unexpected snapshot for unchanged version: %+v", snap)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEngine_RecoversFromTransientReadFailure(t *testing.T) {
	table := &fakeTable{}
	engine, ws := newSyncedEngine(t, table, config.DefaultDomainConfig())

	table.failNextGets(1)

	assert.Eventually(t, func() bool { return engine.LastError() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, engine.Ready, 2*time.Second, 5*time.Millisecond)

	ws.AddNode("after recovery")
	require.NoError(t, engine.Save(context.Background()))
}

func TestEngine_RetriesFailedSeedWrite(t *testing.T) {
	table := &fakeTable{failUpdates: 1}
	cfg := config.DefaultDomainConfig()
	cfg.SeedRetryDelay = 20 * time.Millisecond

	engine, ws := newSyncedEngine(t, table, cfg)

	_, updates := table.counts()
	assert.Equal(t, 2, updates)
	assert.Equal(t, int64(1), engine.Version())
	_, ok := ws.Node(valueobjects.NodeID(cfg.SeedNodeID))
	assert.True(t, ok)
}
