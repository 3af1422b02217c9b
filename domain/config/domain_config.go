package config

import "time"

// DomainConfig holds all configurable business rules and defaults of the concept graph
type DomainConfig struct {
	// Node defaults
	DefaultNodeLabel string
	SeedNodeLabel    string
	SeedNodeID       string
	SeedNodeX        float64
	SeedNodeY        float64
	NodeType         string

	// Placement of new nodes
	ViewportWidth  float64
	ViewportHeight float64

	// Graph constraints
	MaxNodesPerGraph int

	// Edge presentation
	AnimatedEdges   bool
	EdgeStrokeColor string

	// Article defaults used when a description's reference is opened for the first time
	DefaultArticleTitle string
	DefaultArticleBody  string
	UseDescriptionTitle bool

	// Sync
	SnapshotPollInterval time.Duration
	SaveTimeout          time.Duration
	SeedRetryDelay       time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Node defaults
		DefaultNodeLabel: "گره جدید",
		SeedNodeLabel:    "گره اصلی",
		SeedNodeID:       "1",
		SeedNodeX:        250,
		SeedNodeY:        150,
		NodeType:         "custom",

		// Placement of new nodes
		ViewportWidth:  400,
		ViewportHeight: 300,

		// Graph constraints
		MaxNodesPerGraph: 10000,

		// Edge presentation
		AnimatedEdges:   true,
		EdgeStrokeColor: "#555",

		// Article defaults
		DefaultArticleTitle: "مقاله جدید",
		DefaultArticleBody:  "",
		UseDescriptionTitle: true,

		// Sync
		SnapshotPollInterval: 2 * time.Second,
		SaveTimeout:          10 * time.Second,
		SeedRetryDelay:       3 * time.Second,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Poll less aggressively against the shared table
	config.SnapshotPollInterval = 5 * time.Second
	config.MaxNodesPerGraph = 5000

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.SnapshotPollInterval = time.Second
	config.MaxNodesPerGraph = 100000

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
