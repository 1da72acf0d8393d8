package main

import (
	"errors"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `json:"http_addr" mapstructure:"http_addr"`
	LogLevel string `json:"log_level" mapstructure:"log_level"`

	AiTimeBudgetMs      int  `json:"ai_time_budget_ms" mapstructure:"ai_time_budget_ms"`
	AiMaxDepth          int  `json:"ai_max_depth" mapstructure:"ai_max_depth"`
	AiTimeoutCheckNodes int  `json:"ai_timeout_check_nodes" mapstructure:"ai_timeout_check_nodes"`
	AiLogSearchStats    bool `json:"ai_log_search_stats" mapstructure:"ai_log_search_stats"`

	AiTtSize        int  `json:"ai_tt_size" mapstructure:"ai_tt_size"`
	AiTtBuckets     int  `json:"ai_tt_buckets" mapstructure:"ai_tt_buckets"`
	AiTtUseSetAssoc bool `json:"ai_tt_use_set_assoc" mapstructure:"ai_tt_use_set_assoc"`

	AiQueueEnabled  bool `json:"ai_enable_queue" mapstructure:"ai_enable_queue"`
	AiQueueWorkers  int  `json:"ai_queue_workers" mapstructure:"ai_queue_workers"`
	AiQueueMaxDepth int  `json:"ai_queue_max_depth" mapstructure:"ai_queue_max_depth"`
	AiQueueLimit    int  `json:"ai_queue_limit" mapstructure:"ai_queue_limit"`

	AiAnalysisTopBoards int `json:"ai_analysis_top_boards" mapstructure:"ai_analysis_top_boards"`

	AiEnableTtPersistence bool   `json:"ai_enable_tt_persistence" mapstructure:"ai_enable_tt_persistence"`
	AiTtPersistencePath   string `json:"ai_tt_persistence_path" mapstructure:"ai_tt_persistence_path"`

	Heuristics HeuristicConfig `json:"heuristics" mapstructure:"heuristics"`
}

// HeuristicConfig weights the open alignment windows by how many own discs
// they already hold. Two and three discs are the only counts worth
// anything in a quiet position; a window with four is a win and never
// reaches the evaluator.
type HeuristicConfig struct {
	Two   int `json:"two" mapstructure:"two"`
	Three int `json:"three" mapstructure:"three"`
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",

		AiTimeBudgetMs:      500,
		AiMaxDepth:          0, // 0 = deepen to the number of empty cells
		AiTimeoutCheckNodes: defaultTimeoutCheckNodes,
		AiLogSearchStats:    false,

		// TT: bigger tables lift the hit rate under iterative deepening
		AiTtSize:        1 << 18,
		AiTtBuckets:     4,
		AiTtUseSetAssoc: true,

		AiQueueEnabled:  true,
		AiQueueWorkers:  1,
		AiQueueMaxDepth: 0, // 0 = solve to the end of the board
		AiQueueLimit:    1000,

		AiAnalysisTopBoards: 10,

		AiEnableTtPersistence: false,
		AiTtPersistencePath:   "tt_cache.gob",

		Heuristics: HeuristicConfig{
			Two:   1,
			Three: 4,
		},
	}
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) {
	c.mu.Lock()
	c.config = newConfig
	c.mu.Unlock()
}

// LoadConfig merges an optional YAML file and CONNECT4_* environment
// variables over the defaults, then installs the result in the store.
// path may be empty to look for connect4.yaml in the working directory.
func LoadConfig(path string) error {
	v := viper.New()
	v.SetEnvPrefix("connect4")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("http_addr", defaults.HTTPAddr)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("ai_time_budget_ms", defaults.AiTimeBudgetMs)
	v.SetDefault("ai_max_depth", defaults.AiMaxDepth)
	v.SetDefault("ai_timeout_check_nodes", defaults.AiTimeoutCheckNodes)
	v.SetDefault("ai_log_search_stats", defaults.AiLogSearchStats)
	v.SetDefault("ai_tt_size", defaults.AiTtSize)
	v.SetDefault("ai_tt_buckets", defaults.AiTtBuckets)
	v.SetDefault("ai_tt_use_set_assoc", defaults.AiTtUseSetAssoc)
	v.SetDefault("ai_enable_queue", defaults.AiQueueEnabled)
	v.SetDefault("ai_queue_workers", defaults.AiQueueWorkers)
	v.SetDefault("ai_queue_max_depth", defaults.AiQueueMaxDepth)
	v.SetDefault("ai_queue_limit", defaults.AiQueueLimit)
	v.SetDefault("ai_analysis_top_boards", defaults.AiAnalysisTopBoards)
	v.SetDefault("ai_enable_tt_persistence", defaults.AiEnableTtPersistence)
	v.SetDefault("ai_tt_persistence_path", defaults.AiTtPersistencePath)
	v.SetDefault("heuristics.two", defaults.Heuristics.Two)
	v.SetDefault("heuristics.three", defaults.Heuristics.Three)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("connect4")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return err
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	configStore.Update(cfg)
	return nil
}
