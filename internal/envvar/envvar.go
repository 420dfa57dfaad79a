package envvar

const (
	// PolyglotEnv is the environment variable used to determine the environment
	PolyglotEnv = "POLYGLOT_ENV"

	// PolyglotServerHTTPPort is the environment variable used to determine the HTTP port
	PolyglotServerHTTPPort = "POLYGLOT_SERVER_HTTP_PORT"

	// PolyglotServerGRPCPort is the environment variable used to determine the gRPC port
	PolyglotServerGRPCPort = "POLYGLOT_SERVER_GRPC_PORT"

	// PolyglotModelsPath overrides the directory used for downloaded engine models
	PolyglotModelsPath = "POLYGLOT_MODELS_PATH"

	// PolyglotOllamaURL overrides the base URL of the Ollama server
	PolyglotOllamaURL = "POLYGLOT_OLLAMA_URL"

	// PolyglotOpenAIAPIKey is the API key used by OpenAI-compatible adapters without an explicit key
	PolyglotOpenAIAPIKey = "POLYGLOT_OPENAI_API_KEY"
)
