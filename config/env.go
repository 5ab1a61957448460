package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvPrivateKey       = "BSCARB_PRIVATE_KEY"
	EnvTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
)

// LoadEnv loads environment variables from a .env file if one is present.
func LoadEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv returns an environment variable or an error if unset.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}

// ApplyEnvOverrides overlays secrets from the environment onto the config.
// The private key deliberately never appears in the config file.
func (c *Config) ApplyEnvOverrides() {
	if token := os.Getenv(EnvTelegramBotToken); token != "" {
		c.Telegram.BotToken = token
	}
	if chat := os.Getenv(EnvTelegramChatID); chat != "" {
		c.Telegram.ChatID = chat
	}
}
