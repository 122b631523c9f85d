package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// File locations
	DataPath  string `json:"dataPath"`  // labeled training dataset (CSV)
	ModelPath string `json:"modelPath"` // fitted pipeline artifact

	// AlertThreshold is the decision threshold compared against the
	// predicted fraud probability. Higher means fewer, higher-confidence
	// alerts; lower means more alerts and more false positives.
	AlertThreshold float64 `json:"alertThreshold"`

	// Component configurations
	Training TrainingConfig  `json:"training"`
	History  HistoryConfig   `json:"history"`
	EventBus EventBusConfig  `json:"eventBus"`
	Logging  LoggingConfig   `json:"logging"`
}

// TrainingConfig holds training pipeline settings.
type TrainingConfig struct {
	// Seed drives the split, resampling, and forest randomness so runs
	// are reproducible.
	Seed int64 `json:"seed"`

	// TestFraction is the held-out share of the stratified split.
	TestFraction float64 `json:"testFraction"`

	// Forest settings
	Trees    int `json:"trees"`
	MaxDepth int `json:"maxDepth"`
	MinLeaf  int `json:"minLeaf"`

	// SMOTENeighbors is k for minority oversampling interpolation.
	SMOTENeighbors int `json:"smoteNeighbors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns the default configuration: in-memory history,
// channel bus, reproducible training.
func DefaultConfig() *Config {
	return &Config{
		DataPath:       "./data/transactions.csv",
		ModelPath:      "./models/pipeline.bin",
		AlertThreshold: 0.85,
		Training: TrainingConfig{
			Seed:           42,
			TestFraction:   0.30,
			Trees:          100,
			MaxDepth:       10,
			MinLeaf:        2,
			SMOTENeighbors: 5,
		},
		History: HistoryConfig{
			Backend: "memory",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DurableConfig returns a configuration backed by SQLite history and NATS
// alert delivery, for deployments where scoring outlives the process.
func DurableConfig() *Config {
	cfg := DefaultConfig()
	cfg.History = HistoryConfig{
		Backend:    "sqlite",
		SQLitePath: "./kestrel.db",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}
