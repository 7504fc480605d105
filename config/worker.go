package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerConfig drives the asynq conversion worker.
type WorkerConfig struct {
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

// DefaultWorkerConfig mirrors the queue weights used by the server side when
// enqueueing by priority.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}
}

// LoadWorkerConfig reads the worker YAML config, falling back to defaults
// when the file does not exist.
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	cfg := DefaultWorkerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read worker config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse worker config: %w", err)
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultWorkerConfig().Concurrency
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = DefaultWorkerConfig().Queues
	}

	return cfg, nil
}
