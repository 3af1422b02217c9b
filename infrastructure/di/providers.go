package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"concept-tree/application/ports"
	"concept-tree/application/services"
	"concept-tree/application/session"
	appsync "concept-tree/application/sync"
	domainconfig "concept-tree/domain/config"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/infrastructure/config"
	"concept-tree/infrastructure/messaging"
	"concept-tree/infrastructure/messaging/eventbridge"
	"concept-tree/infrastructure/persistence/decorators"
	"concept-tree/infrastructure/persistence/dynamodb"
	"concept-tree/infrastructure/persistence/memory"
	"concept-tree/infrastructure/remote"
	"concept-tree/interfaces/http/rest"
	"concept-tree/interfaces/websocket"
	"concept-tree/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

const serviceName = "concept-tree"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// ProvideConfigWatcher loads the dynamic configuration file when one is configured
func ProvideConfigWatcher(cfg *config.Config, logger *zap.Logger) (*config.ConfigWatcher, error) {
	if cfg.DynamicConfigPath == "" {
		return nil, nil
	}
	return config.NewConfigWatcher(cfg.DynamicConfigPath, logger)
}

// ProvideDomainConfig selects the environment's domain rules and applies the dynamic article defaults
func ProvideDomainConfig(cfg *config.Config, watcher *config.ConfigWatcher) *domainconfig.DomainConfig {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	dc.SnapshotPollInterval = cfg.PollInterval
	if watcher != nil {
		dyn := watcher.Current()
		dc.SnapshotPollInterval = dyn.Sync.PollInterval
		dc.DefaultArticleTitle = dyn.Articles.DefaultTitle
		dc.UseDescriptionTitle = dyn.Articles.UseDescriptionTitle
	}
	return dc
}

// ProvidePollInterval creates the live poll interval and keeps it in step with the watcher
func ProvidePollInterval(dc *domainconfig.DomainConfig, watcher *config.ConfigWatcher) *PollInterval {
	interval := NewPollInterval(dc.SnapshotPollInterval)
	if watcher != nil {
		watcher.OnChange(func(dyn *config.DynamicConfig) {
			interval.Set(dyn.Sync.PollInterval)
		})
	}
	return interval
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("concept_tree")
}

// ProvideTracing starts the OTLP exporter when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	return tp, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// Stores is the pair of stores of the selected backend
type Stores struct {
	Documents ports.GraphDocumentStore
	Articles  ports.ArticleStore
}

// ProvideStores builds the configured backend. Remote backends are wrapped in
// circuit breakers; every backend is instrumented.
func ProvideStores(
	cfg *config.Config,
	client *awsdynamodb.Client,
	interval *PollInterval,
	metrics *observability.Collector,
	logger *zap.Logger,
) (Stores, error) {
	var documents ports.GraphDocumentStore
	var articles ports.ArticleStore

	switch cfg.StorageBackend {
	case config.StorageMemory:
		documents = memory.NewDocumentStore(logger)
		articles = memory.NewArticleStore()

	case config.StorageDynamoDB:
		documents = dynamodb.NewDocumentStore(client, cfg.DynamoDBTable, interval.Get, logger)
		articles = dynamodb.NewArticleStore(client, cfg.ArticlesTable, logger)

	case config.StorageRemote:
		rc, err := remote.NewClient(cfg.RemoteBaseURL, &http.Client{Timeout: 30 * time.Second}, logger)
		if err != nil {
			return Stores{}, err
		}
		documents = remote.NewDocumentStore(rc)
		articles = remote.NewArticleStore(rc)

	default:
		return Stores{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if cfg.StorageBackend != config.StorageMemory {
		documents = decorators.NewBreakerDocumentStore(documents, breakerConfig(cfg, "graph_documents", metrics), logger)
		articles = decorators.NewBreakerArticleStore(articles, breakerConfig(cfg, "articles", metrics), logger)
	}

	logger.Info("Storage backend configured", zap.String("backend", cfg.StorageBackend))
	return Stores{
		Documents: decorators.NewInstrumentedDocumentStore(documents, metrics, logger),
		Articles:  decorators.NewInstrumentedArticleStore(articles, metrics, logger),
	}, nil
}

func breakerConfig(cfg *config.Config, name string, metrics *observability.Collector) decorators.BreakerConfig {
	bc := decorators.DefaultBreakerConfig(name)
	bc.Timeout = cfg.BreakerTimeout
	bc.FailureRatio = cfg.BreakerFailureRatio
	bc.MinRequests = cfg.BreakerMinRequests
	bc.OnStateChange = metrics.SetBreakerState
	return bc
}

// ProvideDocumentStore exposes the selected graph document store
func ProvideDocumentStore(stores Stores) ports.GraphDocumentStore {
	return stores.Documents
}

// ProvideArticleStore exposes the selected article store
func ProvideArticleStore(stores Stores) ports.ArticleStore {
	return stores.Articles
}

// ProvideDispatcher routes committed events to local handlers and, on AWS, to EventBridge
func ProvideDispatcher(
	cfg *config.Config,
	client *awseventbridge.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) *messaging.Dispatcher {
	var dispatcher *messaging.Dispatcher
	if cfg.StorageBackend == config.StorageDynamoDB && cfg.EventBusName != "" {
		dispatcher = messaging.NewDispatcher(eventbridge.NewPublisher(client, cfg.EventBusName, metrics, logger), logger)
	} else {
		dispatcher = messaging.NewDispatcher(nil, logger)
	}
	dispatcher.Subscribe(messaging.AllEvents, messaging.LogHandler(logger))
	return dispatcher
}

// ProvideEventPublisher exposes the dispatcher as the event publisher
func ProvideEventPublisher(dispatcher *messaging.Dispatcher) ports.EventPublisher {
	return dispatcher
}

// ProvideIDGenerator creates the clock-based id generator
func ProvideIDGenerator() valueobjects.IDGenerator {
	return valueobjects.NewClockIDGenerator()
}

// ProvideWorkspace creates the graph workspace
func ProvideWorkspace(ids valueobjects.IDGenerator, dc *domainconfig.DomainConfig, logger *zap.Logger) *services.Workspace {
	return services.NewWorkspace(ids, dc, logger)
}

// ProvideEngine creates the sync engine for the configured document
func ProvideEngine(
	cfg *config.Config,
	documents ports.GraphDocumentStore,
	publisher ports.EventPublisher,
	workspace *services.Workspace,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *appsync.Engine {
	return appsync.NewEngine(cfg.GraphDocumentKey, documents, publisher, workspace, dc, logger)
}

// ProvideArticleService creates the article service gated on the engine's readiness
func ProvideArticleService(
	articles ports.ArticleStore,
	publisher ports.EventPublisher,
	engine *appsync.Engine,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.ArticleService {
	return services.NewArticleService(articles, publisher, engine, dc, logger)
}

// ProvideFlashcard creates the edit session controller
func ProvideFlashcard(
	workspace *services.Workspace,
	articles *services.ArticleService,
	engine *appsync.Engine,
	ids valueobjects.IDGenerator,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *session.Flashcard {
	return session.NewFlashcard(workspace, articles, engine, ids, dc, logger)
}

// ProvideHub creates the websocket snapshot hub
func ProvideHub(documents ports.GraphDocumentStore, metrics *observability.Collector, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(documents, metrics, logger)
}

// ProvideRouter creates the REST router
func ProvideRouter(
	cfg *config.Config,
	documents ports.GraphDocumentStore,
	articles ports.ArticleStore,
	publisher ports.EventPublisher,
	hub *websocket.Hub,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	var provider rest.MetricsProvider
	if cfg.EnableMetrics {
		provider = metrics
	}
	return rest.NewRouter(
		documents,
		articles,
		publisher,
		websocket.NewServer(hub, websocket.DefaultServerConfig(), logger),
		provider,
		rest.StoreReadiness(documents, cfg.GraphDocumentKey),
		rest.RouterConfig{
			EnableCORS: cfg.EnableCORS,
			Debug:      cfg.IsDevelopment(),
		},
		logger,
	)
}
