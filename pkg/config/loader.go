package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// MaestroYAMLConfig represents the complete maestro.yaml file structure.
type MaestroYAMLConfig struct {
	Agents       map[string]AgentConfig        `yaml:"agents"`
	LLMProviders map[string]LLMProviderConfig  `yaml:"llm_providers"`
	Defaults     *Defaults                     `yaml:"defaults"`
	Bus          *BusConfig                    `yaml:"bus"`
	Database     *DatabaseConfig               `yaml:"database"`
	Artifacts    *ArtifactConfig               `yaml:"artifacts"`
	Swarm        *SwarmConfig                  `yaml:"swarm"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load maestro.yaml from configDir
//  2. Expand environment variables
//  3. Merge built-in + user-defined agents and LLM providers
//  4. Build in-memory registries
//  5. Apply default values
//  6. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"agents", stats.Agents,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadMaestroYAML()
	if err != nil {
		return nil, NewLoadError("maestro.yaml", err)
	}

	builtin := GetBuiltinConfig()

	agents := mergeAgents(builtin.Agents, yamlCfg.Agents)
	llmProviders := mergeLLMProviders(builtin.LLMProviders, yamlCfg.LLMProviders)

	agentRegistry := NewAgentRegistry(agents)
	llmProviderRegistry := NewLLMProviderRegistry(llmProviders)

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.LLMProvider == "" {
		defaults.LLMProvider = builtin.DefaultLLMProvider
	}
	if defaults.SwarmPolicy == nil {
		defaults.SwarmPolicy = DefaultSwarmPolicyDefaults()
	}

	busConfig := DefaultBusConfig()
	if yamlCfg.Bus != nil {
		if err := mergo.Merge(busConfig, yamlCfg.Bus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge bus config: %w", err)
		}
	}

	dbConfig := yamlCfg.Database
	if dbConfig == nil {
		dbConfig = &DatabaseConfig{Host: "localhost", Port: 5432, Database: "maestro", SSLMode: "disable", MaxConns: 10, MinConns: 1}
	}

	artifactsConfig := yamlCfg.Artifacts
	if artifactsConfig == nil {
		artifactsConfig = &ArtifactConfig{Dir: "artifacts"}
	}

	swarmConfig := DefaultSwarmConfig()
	if yamlCfg.Swarm != nil {
		if err := mergo.Merge(swarmConfig, yamlCfg.Swarm, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge swarm config: %w", err)
		}
	}

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Bus:                 busConfig,
		Database:            dbConfig,
		Artifacts:           artifactsConfig,
		Swarm:               swarmConfig,
		AgentRegistry:       agentRegistry,
		LLMProviderRegistry: llmProviderRegistry,
	}, nil
}

func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadMaestroYAML() (*MaestroYAMLConfig, error) {
	var cfg MaestroYAMLConfig
	cfg.Agents = make(map[string]AgentConfig)
	cfg.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("maestro.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
