package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8090"

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"
	defaultLLMBase     = "http://localhost:11434"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultVectorProvider = "sqlite"
	defaultCollection     = "anchors"

	defaultGraphTarget    = "http://localhost:8000"
	defaultGraphNamespace = "presence"

	defaultEventTopic = "substrate-events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
			BaseURL:  defaultLLMBase,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Vector: VectorConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultCollection,
		},
		Graph: GraphConfig{
			Target:    defaultGraphTarget,
			Namespace: defaultGraphNamespace,
		},
		Crystal: CrystalConfig{
			Window: 4,
		},
		Events: EventsConfig{
			Topic: defaultEventTopic,
		},
	}
}
