package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	GenerationProvider string
	GeminiAPIKey       string
	GeminiModel        string
	GroqAPIKey         string
	GroqBaseURL        string
	GroqModel          string

	SarvamAPIKey       string
	SarvamBaseURL      string
	TranslationTimeout time.Duration
	DetectLanguage     bool

	LLMTimeout       time.Duration
	RetrievalTimeout time.Duration

	ChromaURL        string
	ChromaCollection string
	OllamaURL        string
	EmbeddingModel   string

	DatabaseURL  string
	StoreTimeout time.Duration

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	TranslationCacheTTL time.Duration

	CorpusDir        string
	UnidocLicenseKey string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("generation_provider", "gemini")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq_model", "llama-3.3-70b-versatile")

	v.SetDefault("sarvam_base_url", "https://api.sarvam.ai")
	v.SetDefault("translation_timeout", "15s")
	v.SetDefault("detect_language", false)

	v.SetDefault("llm_timeout", "60s")
	v.SetDefault("retrieval_timeout", "10s")

	v.SetDefault("chroma_url", "http://localhost:8000")
	v.SetDefault("chroma_collection", "pregnancy_docs")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("embedding_model", "nomic-embed-text:v1.5")

	v.SetDefault("store_timeout", "5s")

	v.SetDefault("redis_db", 0)
	v.SetDefault("translation_cache_ttl", "24h")

	v.SetDefault("corpus_dir", "corpus")
}

// Load reads an optional .env file and then the process environment.
// Missing .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		GenerationProvider: strings.ToLower(v.GetString("generation_provider")),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		GeminiModel:        v.GetString("gemini_model"),
		GroqAPIKey:         v.GetString("groq_api_key"),
		GroqBaseURL:        v.GetString("groq_base_url"),
		GroqModel:          v.GetString("groq_model"),

		SarvamAPIKey:       v.GetString("sarvam_api_key"),
		SarvamBaseURL:      v.GetString("sarvam_base_url"),
		TranslationTimeout: v.GetDuration("translation_timeout"),
		DetectLanguage:     v.GetBool("detect_language"),

		LLMTimeout:       v.GetDuration("llm_timeout"),
		RetrievalTimeout: v.GetDuration("retrieval_timeout"),

		ChromaURL:        v.GetString("chroma_url"),
		ChromaCollection: v.GetString("chroma_collection"),
		OllamaURL:        v.GetString("ollama_url"),
		EmbeddingModel:   v.GetString("embedding_model"),

		DatabaseURL:  v.GetString("database_url"),
		StoreTimeout: v.GetDuration("store_timeout"),

		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		TranslationCacheTTL: v.GetDuration("translation_cache_ttl"),

		CorpusDir:        v.GetString("corpus_dir"),
		UnidocLicenseKey: v.GetString("unidoc_license_key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.GenerationProvider {
	case "gemini", "groq":
	default:
		return fmt.Errorf("unsupported GENERATION_PROVIDER %q (want gemini or groq)", c.GenerationProvider)
	}
	if c.TranslationTimeout <= 0 || c.LLMTimeout <= 0 || c.RetrievalTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
