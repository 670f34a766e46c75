package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// AppConfig represents the application configuration
type AppConfig struct {
	Port           string
	BaseURL        string
	LogLevel       string
	ConsoleLog     bool
	BackendsFile   string
	StorePath      string
	EnableAudit    bool
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
}

var appConfigInstance *AppConfig

// App returns the application configuration, loading it from the
// environment on first use.
func App() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:           GetEnv("APP_PORT", "9999"),
			BaseURL:        GetEnv("APP_URL", "http://localhost:9999"),
			LogLevel:       GetEnv("LOG_LEVEL", "info"),
			ConsoleLog:     GetBoolEnv("LOG_CONSOLE", false),
			BackendsFile:   GetEnv("BACKENDS_FILE", ""),
			StorePath:      GetEnv("STORE_PATH", "data/paykit.db"),
			EnableAudit:    GetBoolEnv("ENABLE_AUDIT", false),
			OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
		}
	}
	return appConfigInstance
}

// GetEnv returns the environment variable or a default value
func GetEnv(key, def string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return def
}

// GetBoolEnv returns a boolean environment variable or a default value
func GetBoolEnv(key string, def bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return def
}

// GetIntEnv returns an integer environment variable or a default value
func GetIntEnv(key string, def int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}

// LoadBackendOptions reads the per-backend option sets from a configuration
// file (YAML, TOML, JSON or INI, decided by extension). The file maps a
// backend kind to its flat option set:
//
//	dummy:
//	  origin: shop
//	paybox:
//	  site: "1999888"
func LoadBackendOptions(path string) (map[string]map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return parseBackendSettings(v.AllSettings()), nil
}

func parseBackendSettings(settings map[string]any) map[string]map[string]string {
	options := make(map[string]map[string]string)
	for backend, raw := range settings {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		flat := make(map[string]string, len(entry))
		for key, value := range entry {
			switch v := value.(type) {
			case string:
				flat[key] = v
			case bool:
				flat[key] = strconv.FormatBool(v)
			case int:
				flat[key] = strconv.Itoa(v)
			case float64:
				flat[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		options[backend] = flat
	}
	return options
}
