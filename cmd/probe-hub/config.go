package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	internalhttp "github.com/EternisAI/probe-relay/internal/api/http"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/cert"
	"github.com/EternisAI/probe-relay/internal/db"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Log     logging.Config      `mapstructure:"log"`
	Http    internalhttp.Config `mapstructure:"http"`
	TLS     cert.Config         `mapstructure:"tls"`
	Hub     HubConfig           `mapstructure:"hub"`
	Auth    auth.Config         `mapstructure:"auth"`
	Storage StorageConfig       `mapstructure:"storage"`
}

type HubConfig struct {
	hub.Config `mapstructure:",squash"`
	// ConnectionString fills HostName, PolicyName and PolicyKey when they are unset.
	ConnectionString string `mapstructure:"connection_string" json:"-"`
}

type StorageConfig struct {
	Driver string    `mapstructure:"driver"`
	DB     db.Config `mapstructure:"db"`
}

var config Config

func InitConfig() error {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/probe-hub")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("hub.connection_string", "IOT_HUB_CONNECTION_STRING")
	_ = viper.BindEnv("storage.db.url", "DATABASE_URL")
	_ = viper.BindEnv("auth.jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("auth.admin_password", "ADMIN_PASSWORD")
	_ = viper.BindEnv("auth.admin_password_hash", "ADMIN_PASSWORD_HASH")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	config = Config{
		Log:     logging.Config{Level: logging.LevelInfo},
		Http:    internalhttp.Config{Port: 8080, CorsOrigins: []string{"*"}},
		Storage: StorageConfig{Driver: StorageDriverPostgres},
	}
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	logging.Init(config.Log.Level)

	if err := config.Hub.resolve(); err != nil {
		return err
	}

	if logging.IsDebug(config.Log.Level) {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
	return nil
}

func (c *HubConfig) resolve() error {
	if c.ConnectionString == "" {
		return nil
	}
	conn, err := iothub.ParseConnectionString(c.ConnectionString)
	if err != nil {
		return err
	}
	if c.HostName == "" {
		c.HostName = conn.HostName
	}
	if c.PolicyName == "" {
		c.PolicyName = conn.SharedAccessKeyName
	}
	if c.PolicyKey == "" {
		c.PolicyKey = conn.SharedAccessKey
	}
	return nil
}
