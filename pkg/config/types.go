package config

// DatabaseConfig holds Postgres connection settings loaded from YAML/env.
// The service's pgxpool.Pool is built from database.Config, not from this
// struct.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns int `yaml:"max_conns,omitempty"`
	MinConns int `yaml:"min_conns,omitempty"`
}

// ArtifactConfig controls where the LLM Gateway persists generated content
// as audit artifacts.
type ArtifactConfig struct {
	Dir string `yaml:"dir"`
}
