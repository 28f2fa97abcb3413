package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Invite    InviteConfig
	Minio     MinioConfig
	RabbitMQ  RabbitMQConfig
	Directory DirectoryConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Port        string
	Env         string
	LogLevel    string
	TimeZone    string
	CORSOrigins []string
}

type DBConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	AutoMigrate bool
}

type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	DB         int
	// ProfileTTL bounds how long a session's cached profile is served.
	// Defaults to the refresh token expiry.
	ProfileTTL time.Duration
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// InviteConfig controls doctor invitation tokens issued by administrators.
type InviteConfig struct {
	Secret string
	Expiry time.Duration
}

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type RabbitMQConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type DirectoryConfig struct {
	// CatalogPath overrides the embedded bundled doctor list when set.
	CatalogPath         string
	MirrorRetryInterval time.Duration
}

type SchedulerConfig struct {
	FetchTimeout time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional when running from the environment alone
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("APP_TIMEZONE", "UTC")
	viper.SetDefault("RABBITMQ_EXCHANGE", "clinic.changes")
	viper.SetDefault("MINIO_BUCKET", "clinic-images")

	config := &Config{
		App: AppConfig{
			Port:        viper.GetString("APP_PORT"),
			Env:         viper.GetString("APP_ENV"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
			TimeZone:    viper.GetString("APP_TIMEZONE"),
			CORSOrigins: splitList(viper.GetString("APP_CORS_ORIGINS")),
		},
		DB: DBConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASSWORD"),
			Name:        viper.GetString("DB_NAME"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:       viper.GetString("REDIS_HOST"),
			Port:       viper.GetString("REDIS_PORT"),
			Password:   viper.GetString("REDIS_PASSWORD"),
			DB:         viper.GetInt("REDIS_DB"),
			ProfileTTL: parseDuration("REDIS_PROFILE_TTL", 0),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  parseDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: parseDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Invite: InviteConfig{
			Secret: viper.GetString("INVITE_SECRET"),
			Expiry: parseDuration("INVITE_EXPIRY", 72*time.Hour),
		},
		Minio: MinioConfig{
			Endpoint:      viper.GetString("MINIO_ENDPOINT"),
			AccessKey:     viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey:     viper.GetString("MINIO_SECRET_KEY"),
			Bucket:        viper.GetString("MINIO_BUCKET"),
			UseSSL:        viper.GetBool("MINIO_USE_SSL"),
			PublicBaseURL: viper.GetString("MINIO_PUBLIC_BASE_URL"),
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  viper.GetBool("RABBITMQ_ENABLED"),
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
		},
		Directory: DirectoryConfig{
			CatalogPath:         viper.GetString("DIRECTORY_CATALOG_PATH"),
			MirrorRetryInterval: parseDuration("DIRECTORY_MIRROR_RETRY_INTERVAL", time.Minute),
		},
		Scheduler: SchedulerConfig{
			FetchTimeout: parseDuration("SCHEDULER_FETCH_TIMEOUT", 5*time.Second),
		},
	}

	if config.Redis.ProfileTTL == 0 {
		config.Redis.ProfileTTL = config.JWT.RefreshExpiry
	}
	if config.Invite.Secret == "" {
		config.Invite.Secret = config.JWT.Secret
	}

	return config, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
