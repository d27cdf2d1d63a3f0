package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	ImageURLTTL    time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SNSRegion                 string
	SNSPlatformApplicationARN string

	RelayURL    string // where cmd/notifier posts push requests
	RelayAPIKey string

	RedisAddr    string // empty disables cross-process queue change events
	RedisChannel string

	ShopName                string
	ShopTimezone            string
	QueueRefreshInterval    time.Duration
	NoticeTimeout           time.Duration
	PermissionPromptTimeout time.Duration
	NoticeIcon              string
	BroadcastConcurrency    int

	ListPerPage    int
	ListMaxPerPage int

	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Devices       string
	Notifications string
	Appointments  string
	Catalog       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Devices:       getEnv("DYNAMO_TABLE_DEVICES", "devices"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			Appointments:  getEnv("DYNAMO_TABLE_APPOINTMENTS", "appointments"),
			Catalog:       getEnv("DYNAMO_TABLE_CATALOG", "catalog"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "barbershop-images"),
		ImageURLTTL:  getEnvDuration("IMAGE_URL_TTL", time.Hour),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SNSRegion:                 getEnv("SNS_REGION", "us-east-1"),
		SNSPlatformApplicationARN: getEnv("SNS_PLATFORM_APPLICATION_ARN", ""),

		RelayURL:    getEnv("RELAY_URL", "http://localhost:3000/v1/push/send"),
		RelayAPIKey: getEnv("RELAY_API_KEY", ""),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_QUEUE_CHANNEL", "queue:changed"),

		ShopName:                getEnv("SHOP_NAME", "the barbershop"),
		ShopTimezone:            getEnv("SHOP_TIMEZONE", "Asia/Jakarta"),
		QueueRefreshInterval:    getEnvDuration("QUEUE_REFRESH_INTERVAL", 30*time.Second),
		NoticeTimeout:           getEnvDuration("NOTICE_TIMEOUT", 10*time.Second),
		PermissionPromptTimeout: getEnvDuration("PERMISSION_PROMPT_TIMEOUT", 60*time.Second),
		NoticeIcon:              getEnv("NOTICE_ICON", "/icons/barber-192.png"),
		BroadcastConcurrency:    getEnvInt("BROADCAST_CONCURRENCY", 8),

		ListPerPage:    getEnvInt("LIST_PER_PAGE", 20),
		ListMaxPerPage: getEnvInt("LIST_MAX_PER_PAGE", 100),

		LLMEndpoint: getEnv("LLM_ENDPOINT", "https://api.openai.com/v1"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:  getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Location resolves ShopTimezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
