package config

import (
	"fmt"
	"time"
)

// EngineConfig holds all configurable business rules and constraints for
// the graph engine
type EngineConfig struct {
	// Node constraints
	MaxTextLength       int
	EnrichmentThreshold int // text length at which async enrichment kicks in
	DefaultNodeWidth    float64
	DefaultNodeHeight   float64
	AttachmentNodeSize  float64 // attachment nodes are square

	// Edge constraints
	AllowedEdgeTypes []string
	DefaultEdgeType  string
	AllowSelfLoops   bool
	AllowDuplicates  bool

	// History constraints
	MaxHistory          int
	HistoryDebounce     time.Duration // coalescing window for continuous capture
	ImmediateSuppress   time.Duration // immediate capture suppresses debounced ones inside this window
	BatchSettleDelay    time.Duration // delay after EndBatch before the batch snapshot is taken
	PositionFlushWindow time.Duration // debounced position persistence window

	// Collision detection
	TouchThreshold  float64
	MergeThreshold  float64
	DetectorHz      float64 // throttle for collision evaluation
	SpiralStep      float64 // radial step for free-position search
	SpiralMaxRadius float64

	// Workspace constraints
	MaxNodesPerWorkspace int
	MaxEdgesPerWorkspace int
	DefaultWorkspaceName string
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxTextLength:       10000,
		EnrichmentThreshold: 280,
		DefaultNodeWidth:    200,
		DefaultNodeHeight:   100,
		AttachmentNodeSize:  200,

		AllowedEdgeTypes: []string{"relates-to", "supports", "contradicts", "example-of", "part-of"},
		DefaultEdgeType:  "relates-to",
		AllowSelfLoops:   false,
		AllowDuplicates:  false,

		MaxHistory:          10,
		HistoryDebounce:     150 * time.Millisecond,
		ImmediateSuppress:   200 * time.Millisecond,
		BatchSettleDelay:    50 * time.Millisecond,
		PositionFlushWindow: 300 * time.Millisecond,

		TouchThreshold:  0.1,
		MergeThreshold:  0.4,
		DetectorHz:      60,
		SpiralStep:      40,
		SpiralMaxRadius: 2000,

		MaxNodesPerWorkspace: 10000,
		MaxEdgesPerWorkspace: 50000,
		DefaultWorkspaceName: "Untitled Brain Dump",
	}
}

// ProductionEngineConfig returns production-specific configuration
func ProductionEngineConfig() *EngineConfig {
	cfg := DefaultEngineConfig()

	// More restrictive limits for production
	cfg.MaxTextLength = 5000
	cfg.MaxNodesPerWorkspace = 5000
	cfg.MaxEdgesPerWorkspace = 25000

	return cfg
}

// DevelopmentEngineConfig returns development-specific configuration
func DevelopmentEngineConfig() *EngineConfig {
	cfg := DefaultEngineConfig()

	// More permissive for development
	cfg.MaxNodesPerWorkspace = 100000
	cfg.MaxEdgesPerWorkspace = 500000

	return cfg
}

// LoadEngineConfig loads engine configuration based on environment
func LoadEngineConfig(environment string) *EngineConfig {
	switch environment {
	case "production":
		return ProductionEngineConfig()
	case "development":
		return DevelopmentEngineConfig()
	default:
		return DefaultEngineConfig()
	}
}

// IsAllowedEdgeType reports whether edgeType is in the allow-list
func (c *EngineConfig) IsAllowedEdgeType(edgeType string) bool {
	for _, t := range c.AllowedEdgeTypes {
		if t == edgeType {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid
func (c *EngineConfig) Validate() error {
	if c.MaxHistory < 1 {
		return fmt.Errorf("MaxHistory must be at least 1, got %d", c.MaxHistory)
	}
	if c.MaxTextLength < 1 {
		return fmt.Errorf("MaxTextLength must be positive, got %d", c.MaxTextLength)
	}
	if c.DefaultEdgeType == "" || !c.IsAllowedEdgeType(c.DefaultEdgeType) {
		return fmt.Errorf("DefaultEdgeType %q must be in AllowedEdgeTypes", c.DefaultEdgeType)
	}
	if c.TouchThreshold < 0 || c.TouchThreshold > 1 {
		return fmt.Errorf("TouchThreshold must be in [0,1], got %f", c.TouchThreshold)
	}
	if c.MergeThreshold < c.TouchThreshold || c.MergeThreshold > 1 {
		return fmt.Errorf("MergeThreshold must be in [TouchThreshold,1], got %f", c.MergeThreshold)
	}
	if c.HistoryDebounce <= 0 || c.PositionFlushWindow <= 0 {
		return fmt.Errorf("debounce windows must be positive")
	}
	return nil
}
