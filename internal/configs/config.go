package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// RabbitMQConfig хранит конфигурацию для RabbitMQ
type RabbitMQConfig struct {
	Enabled    bool
	URL        string
	MaxRetries int
	RetryTTL   time.Duration
	Prefetch   int
}

type RESTConfig struct {
	Port string
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int
}

type StdoutLogConfig struct {
	Level  string
	IsJSON bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

// SourceConfig - переопределения адресов одного источника, пустое значение - адрес по умолчанию
type SourceConfig struct {
	BaseURL string
}

// AggregatorConfig - параметры сбора
type AggregatorConfig struct {
	Sources             []string // пусто - все известные
	RequestTimeout      time.Duration
	MaxRounds           int
	DetailConcurrency   int
	DropOnDetailFailure bool
	SourceParallelism   int
	RandomDelay         time.Duration
	RandomizeUserAgent  bool

	CityExpert SourceConfig
	FourZida   SourceConfig
	HaloOglasi SourceConfig
	Nekretnine SourceConfig
}

// LivenessConfig - параметры проверки актуальности
type LivenessConfig struct {
	RecheckThreshold time.Duration
	PageSize         int
	ProbeConcurrency int
	ProbesPerSecond  float64
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName           string
	Store             StoreConfig
	RabbitMQ          RabbitMQConfig
	Rest              RESTConfig
	FluentBit         FluentBitConfig
	StdoutLogger      StdoutLogConfig
	Aggregator        AggregatorConfig
	Liveness          LivenessConfig
	SearchPresetsFile string
}

// LoadConfig загружает конфигурацию из .env и переменных окружения.
// Отсутствие .env не ошибка: значения могут прийти из окружения контейнера.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath...)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: Could not load .env file (path: %v): %v. Using process environment.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "listing-aggregator-service")

	cfg.Store.Driver = strings.ToLower(getEnvAsString("STORE_DRIVER", StoreDriverPostgres))
	cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Store.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", 10)
	switch cfg.Store.Driver {
	case StoreDriverPostgres:
		if cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q, expected %q or %q", cfg.Store.Driver, StoreDriverPostgres, StoreDriverMemory)
	}

	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", true)
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
		if cfg.RabbitMQ.URL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL environment variable is required when RABBITMQ_ENABLED is true")
		}
		cfg.RabbitMQ.MaxRetries = getEnvAsInt("RABBITMQ_MAX_RETRIES", 3)
		cfg.RabbitMQ.RetryTTL = getEnvAsDuration("RABBITMQ_RETRY_TTL", 30*time.Second)
		cfg.RabbitMQ.Prefetch = getEnvAsInt("RABBITMQ_PREFETCH", 1)
	}

	cfg.Rest.Port = getEnvAsString("HTTP_PORT", "8090")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.IsJSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	cfg.Aggregator = AggregatorConfig{
		Sources:             getEnvAsList("AGGREGATOR_SOURCES"),
		RequestTimeout:      getEnvAsDuration("AGGREGATOR_REQUEST_TIMEOUT", 3*time.Second),
		MaxRounds:           getEnvAsInt("AGGREGATOR_MAX_ROUNDS", 50),
		DetailConcurrency:   getEnvAsInt("AGGREGATOR_DETAIL_CONCURRENCY", 3),
		DropOnDetailFailure: getEnvAsBool("AGGREGATOR_DROP_ON_DETAIL_FAILURE", false),
		SourceParallelism:   getEnvAsInt("AGGREGATOR_SOURCE_PARALLELISM", 2),
		RandomDelay:         getEnvAsDuration("AGGREGATOR_RANDOM_DELAY", 500*time.Millisecond),
		RandomizeUserAgent:  getEnvAsBool("AGGREGATOR_RANDOM_USER_AGENT", true),

		CityExpert: SourceConfig{BaseURL: os.Getenv("CITYEXPERT_BASE_URL")},
		FourZida:   SourceConfig{BaseURL: os.Getenv("FOURZIDA_BASE_URL")},
		HaloOglasi: SourceConfig{BaseURL: os.Getenv("HALOOGLASI_BASE_URL")},
		Nekretnine: SourceConfig{BaseURL: os.Getenv("NEKRETNINE_BASE_URL")},
	}

	cfg.Liveness = LivenessConfig{
		RecheckThreshold: getEnvAsDuration("LIVENESS_RECHECK_THRESHOLD", 5*time.Minute),
		PageSize:         getEnvAsInt("LIVENESS_PAGE_SIZE", 50),
		ProbeConcurrency: getEnvAsInt("LIVENESS_PROBE_CONCURRENCY", 4),
		ProbesPerSecond:  getEnvAsFloat("LIVENESS_PROBES_PER_SECOND", 2),
	}

	cfg.SearchPresetsFile = getEnvAsString("SEARCH_PRESETS_FILE", "")

	return cfg, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию.
// Логирует ошибку, если переменная есть, но не может быть преобразована в int.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %g\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration принимает формат time.ParseDuration ("3s", "5m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvAsList разбирает список через запятую, пустые элементы пропускаются
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
