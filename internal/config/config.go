package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Index     IndexConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	OCR       OCRConfig
	Ingest    IngestConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string // empty disables domain events
	BodyLimitMB        int
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	Jina         string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "gemini" or "jina"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	OllamaKeepAlive   string // keeps models warm between requests, e.g. "30m"
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
	LLMBaseURL        string // overrides the provider default
	Temperature       float64
	EmbedConcurrency  int
	EmbedTimeout      time.Duration
	LLMTimeout        time.Duration
}

type IndexConfig struct {
	Backend    string // "sqlite" or "pgvector"
	Directory  string
	Collection string
}

type ChunkingConfig struct {
	CorpusChunkSize int
	CorpusOverlap   int
	UploadChunkSize int
	UploadOverlap   int
}

type RetrievalConfig struct {
	TopK            int
	ExtractMaxChars int // 0 embeds the whole document in every extraction prompt
}

type SessionConfig struct {
	TTL             time.Duration // 0 keeps sessions until evicted by capacity
	CleanupInterval time.Duration
	MaxEntries      int // 0 means unbounded
}

type OCRConfig struct {
	Enabled       bool
	PdftoppmPath  string
	TesseractPath string
	Language      string
	DPI           int
	MaxConcurrent int
}

type IngestConfig struct {
	DataDir string
	Topic   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm_rag.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 50),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaKeepAlive:   getEnv("OLLAMA_KEEP_ALIVE", "30m"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			EmbedConcurrency:  getEnvAsInt("EMBED_CONCURRENCY", 4),
			EmbedTimeout:      getEnvAsDuration("EMBED_TIMEOUT", 60*time.Second),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 10*time.Minute),
		},
		Index: IndexConfig{
			Backend:    getEnv("INDEX_BACKEND", "sqlite"),
			Directory:  getEnv("INDEX_DIR", "index_db"),
			Collection: getEnv("INDEX_COLLECTION_NAME", "research_papers"),
		},
		Chunking: ChunkingConfig{
			CorpusChunkSize: getEnvAsInt("CORPUS_CHUNK_SIZE", 800),
			CorpusOverlap:   getEnvAsInt("CORPUS_CHUNK_OVERLAP", 120),
			UploadChunkSize: getEnvAsInt("UPLOAD_CHUNK_SIZE", 1000),
			UploadOverlap:   getEnvAsInt("UPLOAD_CHUNK_OVERLAP", 150),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RETRIEVAL_TOP_K", 4),
			ExtractMaxChars: getEnvAsInt("EXTRACT_MAX_CHARS", 0),
		},
		Session: SessionConfig{
			TTL:             getEnvAsDuration("SESSION_TTL", time.Hour),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
			MaxEntries:      getEnvAsInt("SESSION_MAX_ENTRIES", 256),
		},
		OCR: OCRConfig{
			Enabled:       getEnvAsBool("OCR_ENABLED", true),
			PdftoppmPath:  getEnv("OCR_PDFTOPPM_PATH", "pdftoppm"),
			TesseractPath: getEnv("OCR_TESSERACT_PATH", "tesseract"),
			Language:      getEnv("OCR_LANGUAGE", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxConcurrent: getEnvAsInt("OCR_MAX_CONCURRENT", 2),
		},
		Ingest: IngestConfig{
			DataDir: getEnv("DATA_DIR", "data"),
			Topic:   getEnv("INGEST_TOPIC_NAME", "INGEST_DOCUMENT"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "1h"); "0" disables.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "0" {
		return 0
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
