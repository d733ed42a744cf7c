package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent substrate configuration stored as
// config.toml in the .substrate/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Vector    VectorConfig    `toml:"vector"`
	Graph     GraphConfig     `toml:"graph"`
	Crystal   CrystalConfig   `toml:"crystal"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig holds turn-store settings.
type StorageConfig struct {
	Driver string `toml:"driver,omitempty"` // "sqlite" or "postgres"
	DSN    string `toml:"dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LLMConfig holds the summarization/crystallization model settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
}

// EmbeddingConfig holds embedding provider settings for the anchor index.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// VectorConfig holds vector store settings for the anchor index.
type VectorConfig struct {
	Provider   string `toml:"provider,omitempty"` // "sqlite" or "qdrant"
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// GraphConfig holds knowledge-graph backend settings.
type GraphConfig struct {
	Target    string `toml:"target,omitempty"`
	Namespace string `toml:"namespace,omitempty"`
}

// CrystalConfig holds crystallization chain settings.
type CrystalConfig struct {
	Window int `toml:"window,omitempty"`
}

// EventsConfig holds event stream settings. Empty brokers disables
// publishing.
type EventsConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.dsn": {
		get: func(c *Config) string { return c.Storage.DSN },
		set: func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.base_url": {
		get: func(c *Config) string { return c.LLM.BaseURL },
		set: func(c *Config, v string) error { c.LLM.BaseURL = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"vector.provider": {
		get: func(c *Config) string { return c.Vector.Provider },
		set: func(c *Config, v string) error { c.Vector.Provider = v; return nil },
	},
	"vector.target": {
		get: func(c *Config) string { return c.Vector.Target },
		set: func(c *Config, v string) error { c.Vector.Target = v; return nil },
	},
	"vector.collection": {
		get: func(c *Config) string { return c.Vector.Collection },
		set: func(c *Config, v string) error { c.Vector.Collection = v; return nil },
	},
	"graph.target": {
		get: func(c *Config) string { return c.Graph.Target },
		set: func(c *Config, v string) error { c.Graph.Target = v; return nil },
	},
	"graph.namespace": {
		get: func(c *Config) string { return c.Graph.Namespace },
		set: func(c *Config, v string) error { c.Graph.Namespace = v; return nil },
	},
	"crystal.window": {
		get: func(c *Config) string {
			if c.Crystal.Window == 0 {
				return ""
			}
			return strconv.Itoa(c.Crystal.Window)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for crystal.window: %w", err)
			}
			c.Crystal.Window = n
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
