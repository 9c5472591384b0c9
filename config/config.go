package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds the application's configuration values.
type Config struct {
	AppName string `json:"appname"`
	AppEnv  string `json:"appenv"`
	AppPort uint16 `json:"appport"`
	GinMode string `json:"ginmode"`
	DBHost  string `json:"dbhost"`
	DBPort  uint16 `json:"dbport"`
	DBName  string `json:"dbname"`
	DBUser  string `json:"dbuser"`
	DBPass  string `json:"dbpass"`

	JWTIssuer   string `json:"jwtissuer"`
	JWTAudience string `json:"jwtaudience"`

	OpenAIAPIKey string `json:"openaiapikey"`
	N8nAPIURL    string `json:"n8napiurl"`
	N8nAPIKey    string `json:"n8napikey"`

	AnalysisWorkers   int `json:"analysisworkers"`
	AnalysisQueueSize int `json:"analysisqueuesize"`

	// OfflineGraceFactor multiplies a service's reporting interval when
	// deciding whether it has gone silent.
	OfflineGraceFactor int `json:"offlinegracefactor"`
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// Load environment variables from a .env file when present; plain
		// env vars are enough in containers and tests.
		if err := godotenv.Load(); err != nil {
			log.Printf("no .env file loaded: %v", err)
		}

		appPort, _ := strconv.ParseUint(os.Getenv("APPPORT"), 10, 16)
		dbPort, _ := strconv.ParseUint(os.Getenv("DBPORT"), 10, 16)

		// Initialize the Config struct with values from environment variables.
		config = &Config{
			AppName:            os.Getenv("APPNAME"),
			AppEnv:             os.Getenv("APPENV"),
			AppPort:            uint16(appPort),
			GinMode:            os.Getenv("GINMODE"),
			DBHost:             os.Getenv("DBHOST"),
			DBPort:             uint16(dbPort),
			DBName:             os.Getenv("DBNAME"),
			DBUser:             os.Getenv("DBUSER"),
			DBPass:             os.Getenv("DBPASS"),
			JWTIssuer:          envOrDefault("JWTISSUER", "logcentral"),
			JWTAudience:        envOrDefault("JWTAUDIENCE", "logcentral-api"),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			N8nAPIURL:          os.Getenv("N8N_API_URL"),
			N8nAPIKey:          os.Getenv("N8N_API_KEY"),
			AnalysisWorkers:    envIntOrDefault("ANALYSIS_WORKERS", 4),
			AnalysisQueueSize:  envIntOrDefault("ANALYSIS_QUEUE_SIZE", 256),
			OfflineGraceFactor: envIntOrDefault("OFFLINE_GRACE_FACTOR", 2),
		}
	})
	return config
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// ConnectDB establishes a database connection using the configuration values.
// In the test environment an in-memory SQLite database is used so the suite
// does not depend on a provisioned MySQL instance.
func ConnectDB() (*gorm.DB, error) {
	cfg := LoadConfig()

	if cfg.AppEnv == "test" || os.Getenv("APPENV") == "test" {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	}

	// Build the Data Source Name (DSN) using the configuration values.
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
