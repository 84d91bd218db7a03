package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config はサーバーの起動に必要な設定値です。
type Config struct {
	Port           string
	DatabaseURL    string   // 空ならハイスコアはローカルファイルに保存する
	JWTSecret      string
	BypassAuth     bool
	AllowedOrigins []string
	HighScoreDir   string
}

const defaultPort = "8080"

var defaultAllowedOrigins = []string{"http://localhost:3000"}

// InitConfig は production 以外で .env を読み込みます。
func InitConfig() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] warning: Error loading .env file (this is fine in production): %v", err)
		return
	}
	log.Println("[Config] Successfully loaded environment variables")
}

// GetEnvVariable は環境変数を取得します。未設定ならエラーです。
func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}
	return b, nil
}

// Load は環境変数から Config を組み立てます。
func Load() (*Config, error) {
	cfg := &Config{
		Port:           defaultPort,
		AllowedOrigins: defaultAllowedOrigins,
		BypassAuth:     os.Getenv("BYPASS_AUTH") == "true",
	}

	if port, err := GetEnvVariable("PORT"); err == nil {
		cfg.Port = port
	}
	if url, err := GetEnvVariable("DATABASE_URL"); err == nil {
		cfg.DatabaseURL = url
	}
	if dir, err := GetEnvVariable("HIGH_SCORE_DIR"); err == nil {
		cfg.HighScoreDir = dir
	}
	if origins, err := GetEnvVariable("ALLOWED_ORIGINS"); err == nil {
		cfg.AllowedOrigins = splitOrigins(origins)
	}

	secret, err := GetEnvVariable("SUPABASE_JWT_SECRET")
	if err != nil && !cfg.BypassAuth {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET が設定されていません（開発時は BYPASS_AUTH=true も使えます）: %w", err)
	}
	cfg.JWTSecret = secret

	return cfg, nil
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
