// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// IntakeConfig provides settings for the public form intake endpoint.
type IntakeConfig interface {
	GetIntakeAPIKey() string
	GetIntakeRatePerMinute() int
	GetIntakeRateBurst() int
}

// OperatorConfig provides settings for the operator-facing read API.
type OperatorConfig interface {
	GetOperatorAPIKey() string
}

// SchedulerConfig provides settings for the asynq background queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SalesBuilderConfig provides settings for the qualification job API.
type SalesBuilderConfig interface {
	GetSalesBuilderURL() string
	GetSalesBuilderTokenEnvVar() string
	GetPollMaxAttempts() int
	GetPollRetryDelay() time.Duration
	GetPollRequestTimeout() time.Duration
}

// EvolutionConfig provides settings for the WhatsApp messaging gateway.
type EvolutionConfig interface {
	GetEvolutionBaseURL() string
	GetEvolutionInstance() string
	GetEvolutionToken() string
	GetEvolutionSendTimeout() time.Duration
}

// DispatchConfig provides settings for the message dispatch pipeline.
type DispatchConfig interface {
	GetFallbackMessages() []string
	GetInterMessagePause() time.Duration
}

// HistoryConfig provides settings for delivered-message history records.
type HistoryConfig interface {
	GetReportingTimezone() string
}

// AlertConfig provides settings for operator failure alerts.
type AlertConfig interface {
	GetAlertsEnabled() bool
	GetAlertSMTPHost() string
	GetAlertSMTPPort() int
	GetAlertSMTPUsername() string
	GetAlertSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	IntakeAPIKey        string
	IntakeRatePerMinute int
	IntakeRateBurst     int
	OperatorAPIKey      string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	SalesBuilderURL     string
	SalesBuilderTokenEnvVar string
	PollMaxAttempts     int
	PollRetryDelay      time.Duration
	PollRequestTimeout  time.Duration
	EvolutionBaseURL    string
	EvolutionInstance   string
	EvolutionToken      string
	EvolutionSendTimeout time.Duration
	FallbackMessages    []string
	InterMessagePause   time.Duration
	ReportingTimezone   string
	AlertsEnabled       bool
	AlertSMTPHost       string
	AlertSMTPPort       int
	AlertSMTPUsername   string
	AlertSMTPPassword   string
	AlertFromAddress    string
	AlertToAddress      string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// IntakeConfig implementation
func (c *Config) GetIntakeAPIKey() string     { return c.IntakeAPIKey }
func (c *Config) GetIntakeRatePerMinute() int { return c.IntakeRatePerMinute }
func (c *Config) GetIntakeRateBurst() int     { return c.IntakeRateBurst }

// OperatorConfig implementation
func (c *Config) GetOperatorAPIKey() string { return c.OperatorAPIKey }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SalesBuilderConfig implementation
func (c *Config) GetSalesBuilderURL() string             { return c.SalesBuilderURL }
func (c *Config) GetSalesBuilderTokenEnvVar() string     { return c.SalesBuilderTokenEnvVar }
func (c *Config) GetPollMaxAttempts() int                { return c.PollMaxAttempts }
func (c *Config) GetPollRetryDelay() time.Duration       { return c.PollRetryDelay }
func (c *Config) GetPollRequestTimeout() time.Duration   { return c.PollRequestTimeout }

// EvolutionConfig implementation
func (c *Config) GetEvolutionBaseURL() string             { return c.EvolutionBaseURL }
func (c *Config) GetEvolutionInstance() string            { return c.EvolutionInstance }
func (c *Config) GetEvolutionToken() string               { return c.EvolutionToken }
func (c *Config) GetEvolutionSendTimeout() time.Duration  { return c.EvolutionSendTimeout }

// DispatchConfig implementation
func (c *Config) GetFallbackMessages() []string        { return c.FallbackMessages }
func (c *Config) GetInterMessagePause() time.Duration  { return c.InterMessagePause }

// HistoryConfig implementation
func (c *Config) GetReportingTimezone() string { return c.ReportingTimezone }

// AlertConfig implementation
func (c *Config) GetAlertsEnabled() bool        { return c.AlertsEnabled }
func (c *Config) GetAlertSMTPHost() string      { return c.AlertSMTPHost }
func (c *Config) GetAlertSMTPPort() int         { return c.AlertSMTPPort }
func (c *Config) GetAlertSMTPUsername() string  { return c.AlertSMTPUsername }
func (c *Config) GetAlertSMTPPassword() string  { return c.AlertSMTPPassword }
func (c *Config) GetAlertFromAddress() string   { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string     { return c.AlertToAddress }

// defaultFallbackScript is the substitute message pair used when the
// qualification job completes without producing any reply content. Override
// via FALLBACK_MESSAGES (entries separated by "||").
var defaultFallbackScript = []string{
	"Oi! Aqui é o time da Arduus. Recebemos seus dados e já estamos analisando o perfil da sua empresa.",
	"Em breve um dos nossos especialistas entra em contato para entender melhor seus objetivos com IA. Pode me adiantar qual é o principal desafio de vocês hoje?",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := containsWildcard(corsOrigins) || strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")

	fallback := splitDelimited(getEnv("FALLBACK_MESSAGES", ""), "||")
	if len(fallback) == 0 {
		fallback = defaultFallbackScript
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		IntakeAPIKey:        getEnv("API_KEY", ""),
		IntakeRatePerMinute: mustInt(getEnv("INTAKE_RATE_PER_MINUTE", "200")),
		IntakeRateBurst:     mustInt(getEnv("INTAKE_RATE_BURST", "50")),
		OperatorAPIKey:      getEnv("OPERATOR_API_KEY", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "followups"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SalesBuilderURL:     getEnv("SALES_BUILDER_URL", "https://sales-builder.ornexus.com"),
		SalesBuilderTokenEnvVar: getEnv("SALES_BUILDER_TOKEN_ENV", "SALES_BUILDER_API_KEY"),
		PollMaxAttempts:     mustInt(getEnv("POLL_MAX_ATTEMPTS", "30")),
		PollRetryDelay:      mustDuration(getEnv("POLL_RETRY_DELAY", "10s")),
		PollRequestTimeout:  mustDuration(getEnv("POLL_REQUEST_TIMEOUT", "60s")),
		EvolutionBaseURL:    evolutionBaseURL(),
		EvolutionInstance:   getEnv("EVO_INSTANCE", ""),
		EvolutionToken:      getEnv("EVO_TOKEN", ""),
		EvolutionSendTimeout: mustDuration(getEnv("EVO_SEND_TIMEOUT", "30s")),
		FallbackMessages:    fallback,
		InterMessagePause:   mustDuration(getEnv("INTER_MESSAGE_PAUSE", "1s")),
		ReportingTimezone:   getEnv("REPORTING_TIMEZONE", "America/Sao_Paulo"),
		AlertsEnabled:       strings.EqualFold(getEnv("ALERTS_ENABLED", "false"), "true"),
		AlertSMTPHost:       getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPPort:       mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		AlertSMTPUsername:   getEnv("ALERT_SMTP_USERNAME", ""),
		AlertSMTPPassword:   getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress:    getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:      getEnv("ALERT_TO_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IntakeAPIKey == "" {
		return nil, fmt.Errorf("API_KEY is required")
	}
	if cfg.PollMaxAttempts < 1 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.AlertsEnabled && (cfg.AlertSMTPHost == "" || cfg.AlertToAddress == "" || cfg.AlertFromAddress == "") {
		return nil, fmt.Errorf("ALERT_SMTP_HOST, ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERTS_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS allows all origins")
	}

	return cfg, nil
}

// evolutionBaseURL accepts either a full EVO_BASE_URL or the legacy
// EVO_SUBDOMAIN form (hostname only, https assumed).
func evolutionBaseURL() string {
	if base := getEnv("EVO_BASE_URL", ""); base != "" {
		return strings.TrimRight(base, "/")
	}
	if sub := getEnv("EVO_SUBDOMAIN", ""); sub != "" {
		return "https://" + sub
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	return splitDelimited(value, ",")
}

func splitDelimited(value, sep string) []string {
	parts := strings.Split(value, sep)
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
