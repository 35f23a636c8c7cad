package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultIngestQueueSize  = 200
	defaultNumIngestWorkers = 1
	defaultCaptionMaxSize   = 800
	defaultModelLoadTimeout = 60 // seconds
)

const (
	defaultFaceDedupeIoU  = 0.5
	defaultSearchFloor    = 0.2
	defaultSearchMaxHits  = 50
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultCaptionModel   = "gpt-4.1-mini"
)

type Config struct {
	// library root (where original photo folders live); scans are restricted to it
	LibraryRoot string

	// database path
	DatabasePath string

	// ingestion worker settings
	IngestQueueSize  int
	NumIngestWorkers int

	// face detection model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string

	// face box deduplication threshold (intersection over union)
	FaceDedupeIoU float64

	// OpenAI-backed caption/embedding providers
	OpenAIAPIKey   string
	CaptionModel   string
	EmbeddingModel string

	// longest side of the image sent to the captioner
	CaptionMaxSize int

	// search tuning
	SearchFloor   float64
	SearchMaxHits int

	// how long AwaitReady blocks before the pipeline proceeds degraded
	ModelLoadTimeout time.Duration
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val < 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("LIBRARY_ROOT", ".")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for library root '%s': %w", root, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", "photoscope.db")

	cfg := Config{
		LibraryRoot:  absRoot,
		DatabasePath: dbPath,

		IngestQueueSize:  getEnvIntOrDefault("INGEST_QUEUE_SIZE", defaultIngestQueueSize),
		NumIngestWorkers: getEnvIntOrDefault("NUM_INGEST_WORKERS", defaultNumIngestWorkers),

		FaceDNNNetConfigPath: os.Getenv("FACE_DNN_CONFIG_PATH"),
		FaceDNNNetModelPath:  os.Getenv("FACE_DNN_MODEL_PATH"),
		FaceDedupeIoU:        getEnvFloatOrDefault("FACE_DEDUPE_IOU", defaultFaceDedupeIoU),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		CaptionModel:   getEnvOrDefault("CAPTION_MODEL", defaultCaptionModel),
		EmbeddingModel: getEnvOrDefault("EMBEDDING_MODEL", defaultEmbeddingModel),
		CaptionMaxSize: getEnvIntOrDefault("CAPTION_MAX_SIZE", defaultCaptionMaxSize),

		SearchFloor:   getEnvFloatOrDefault("SEARCH_FLOOR", defaultSearchFloor),
		SearchMaxHits: getEnvIntOrDefault("SEARCH_MAX_HITS", defaultSearchMaxHits),

		ModelLoadTimeout: time.Duration(getEnvIntOrDefault("MODEL_LOAD_TIMEOUT_SECONDS", defaultModelLoadTimeout)) * time.Second,
	}

	return cfg, nil
}
