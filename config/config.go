package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	// Пустой DATABASE_URL включает хранилище в памяти.
	DatabaseURL  string `env:"DATABASE_URL"`
	JWTSecretKey string `env:"JWT_SECRET_KEY,required,notEmpty"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`

	StrikeBanThreshold  int           `env:"STRIKE_BAN_THRESHOLD" envDefault:"3"`
	ForfeitScore        int           `env:"FORFEIT_SCORE" envDefault:"3"`
	MatchWindow         time.Duration `env:"MATCH_WINDOW" envDefault:"24h"`
	AutoResolveInterval time.Duration `env:"AUTO_RESOLVE_INTERVAL" envDefault:"1m"`
	SweepConcurrency    int           `env:"SWEEP_CONCURRENCY" envDefault:"4"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	R2 R2Config `envPrefix:"R2_"`
}

// R2Config - архив результатов в Cloudflare R2. Без ключей архив отключён.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	BucketName      string `env:"BUCKET_NAME"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибку не считаем фатальной: .env есть не везде
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.StrikeBanThreshold <= 0 {
		return errors.New("STRIKE_BAN_THRESHOLD must be positive")
	}
	if c.ForfeitScore <= 0 {
		return errors.New("FORFEIT_SCORE must be positive")
	}
	if c.MatchWindow <= 0 {
		return errors.New("MATCH_WINDOW must be positive")
	}
	if c.AutoResolveInterval < time.Second {
		return fmt.Errorf("AUTO_RESOLVE_INTERVAL must be at least 1s, got %s", c.AutoResolveInterval)
	}
	if c.SweepConcurrency <= 0 {
		return errors.New("SWEEP_CONCURRENCY must be positive")
	}
	return nil
}
