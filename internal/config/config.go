package config

import (
	"bufio"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type CatalogConfig struct {
	APIURL      string
	APIToken    string
	Timeout     time.Duration
	Limit       int
	Burst       int
	MaxRetries  int
	BaseBackoff time.Duration
}

type VisionConfig struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	MaxBodyBytes int64
}

type ImageProxyConfig struct {
	AllowedHosts []string
	Timeout      time.Duration
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	CORSOrigin      string
	RateLimitPerSec float64
	RateBurst       int
	LogLevel        slog.Level
}

type TelemetryConfig struct {
	ServiceName    string
	TracesExporter string
	OTLPEndpoint   string
}

type Config struct {
	Catalog   CatalogConfig
	Vision    VisionConfig
	Images    ImageProxyConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
}

func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := Config{}

	cfg.Catalog.APIToken = os.Getenv("TMDB_ACCESS_TOKEN")
	cfg.Catalog.APIURL, _ = getEnvStringDefault("TMDB_API_URL", "https://api.themoviedb.org")

	duration, err := getEnvTimeDefault("HTTP_CLIENT_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	cfg.Catalog.Timeout = duration

	limit, err := getEnvIntDefault("TMDB_RATE_LIMIT", "40") // TMDB allows roughly 50 reqs/s
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit: %w", err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid rate limit: must be positive, got %d", limit)
	}
	cfg.Catalog.Limit = limit

	burst, err := getEnvIntDefault("TMDB_BURST_AMOUNT", "20")
	if err != nil {
		return nil, fmt.Errorf("invalid burst amount: %w", err)
	}
	cfg.Catalog.Burst = burst

	// One attempt means no retry.
	maxRetries, err := getEnvIntDefault("TMDB_MAX_RETRIES", "1")
	if err != nil {
		return nil, fmt.Errorf("invalid max retries: %w", err)
	}
	cfg.Catalog.MaxRetries = maxRetries

	baseBackoff, err := getEnvTimeDefault("TMDB_BASE_BACKOFF", "1s")
	if err != nil {
		return nil, fmt.Errorf("invalid base backoff: %w", err)
	}
	cfg.Catalog.BaseBackoff = baseBackoff

	cfg.Vision.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Vision.APIURL, _ = getEnvStringDefault("OPENAI_API_URL", "https://api.openai.com")

	visionTimeout, err := getEnvTimeDefault("VISION_CLIENT_TIMEOUT", "60s")
	if err != nil {
		return nil, fmt.Errorf("invalid vision timeout: %w", err)
	}
	cfg.Vision.Timeout = visionTimeout

	maxBody, err := getEnvIntDefault("EXTRACT_MAX_BODY_BYTES", strconv.Itoa(20<<20))
	if err != nil {
		return nil, fmt.Errorf("invalid extract body limit: %w", err)
	}
	cfg.Vision.MaxBodyBytes = int64(maxBody)

	hosts, _ := getEnvStringDefault("IMAGE_PROXY_ALLOWED_HOSTS", "media.themoviedb.org,image.tmdb.org")
	cfg.Images.AllowedHosts = splitList(hosts)

	imageTimeout, err := getEnvTimeDefault("IMAGE_CLIENT_TIMEOUT", "20s")
	if err != nil {
		return nil, fmt.Errorf("invalid image timeout: %w", err)
	}
	cfg.Images.Timeout = imageTimeout

	port, err := getEnvStringDefault("PORT", "8000")
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}
	cfg.Server.Addr = ":" + port

	readTimeout, err := getEnvTimeDefault("SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	cfg.Server.ReadTimeout = readTimeout

	// Extraction calls can take a while upstream.
	writeTimeout, err := getEnvTimeDefault("SERVER_WRITE_TIMEOUT", "90s")
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	cfg.Server.WriteTimeout = writeTimeout

	idleTimeout, err := getEnvTimeDefault("SERVER_IDLE_TIMEOUT", "120s")
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}
	cfg.Server.IdleTimeout = idleTimeout

	shutdownTimeout, err := getEnvTimeDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	cfg.Server.ShutdownTimeout = shutdownTimeout

	requestTimeout, err := getEnvTimeDefault("REQUEST_TIMEOUT", "75s")
	if err != nil {
		return nil, fmt.Errorf("invalid request timeout: %w", err)
	}
	cfg.Server.RequestTimeout = requestTimeout

	corsOrigin, err := getEnvStringDefault("CORS_ALLOWED_ORIGIN", "*")
	if err != nil {
		return nil, fmt.Errorf("invalid cors origin: %w", err)
	}
	cfg.Server.CORSOrigin = corsOrigin

	rateLimitPerSec, err := getEnvFloatDefault("RATE_LIMIT_PER_SEC", "10")
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit: %w", err)
	}
	cfg.Server.RateLimitPerSec = rateLimitPerSec

	rateBurst, err := getEnvIntDefault("RATE_BURST", "30")
	if err != nil {
		return nil, fmt.Errorf("invalid rate burst: %w", err)
	}
	cfg.Server.RateBurst = rateBurst

	levelName, _ := getEnvStringDefault("LOG_LEVEL", "info")
	if err := cfg.Server.LogLevel.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg.Telemetry.ServiceName, _ = getEnvStringDefault("OTEL_SERVICE_NAME", "posterpalette")
	cfg.Telemetry.TracesExporter, _ = getEnvStringDefault("OTEL_TRACES_EXPORTER", "none")
	switch cfg.Telemetry.TracesExporter {
	case "none", "stdout", "otlp":
	default:
		return nil, fmt.Errorf("invalid traces exporter %q", cfg.Telemetry.TracesExporter)
	}
	cfg.Telemetry.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return &cfg, nil
}

// loadDotEnv reads a .env file and sets any variable not already present in
// the environment. It silently does nothing if the file doesn't exist.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvStringDefault(key, defaultValue string) (string, error) {
	result := os.Getenv(key)
	if result == "" {
		result = defaultValue
	}
	return result, nil
}

func getEnvTimeDefault(key, defaultValue string) (time.Duration, error) {
	result := os.Getenv(key)
	if result == "" {
		result = defaultValue
	}

	duration, err := time.ParseDuration(result)
	if err != nil {
		return 0, fmt.Errorf("error parsing duration: %w", err)
	}
	return duration, nil
}

func getEnvIntDefault(key, defaultValue string) (int, error) {
	result := os.Getenv(key)
	if result == "" {
		result = defaultValue
	}
	value, err := strconv.Atoi(result)
	if err != nil {
		return 0, fmt.Errorf("error parsing env: %w", err)
	}
	return value, nil
}

func getEnvFloatDefault(key, defaultValue string) (float64, error) {
	result := os.Getenv(key)
	if result == "" {
		result = defaultValue
	}
	value, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing env: %w", err)
	}
	return value, nil
}
