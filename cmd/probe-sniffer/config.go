package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/EternisAI/probe-relay/internal/capture"
	"github.com/EternisAI/probe-relay/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log     logging.Config `mapstructure:"log"`
	Capture capture.Config `mapstructure:"capture"`
	Device  DeviceConfig   `mapstructure:"device"`
}

type DeviceConfig struct {
	ConnectionString string `mapstructure:"connection_string" json:"-"`
	InsecureHTTP     bool   `mapstructure:"insecure_http"`
	CAFile           string `mapstructure:"ca_file"`
}

var config Config

func InitConfig(envFile string) error {
	_ = godotenv.Load(envFile)

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/probe-sniffer")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("device.connection_string", "DEVICE_CONNECTION_STRING")
	_ = viper.BindEnv("device.ca_file", "HUB_CA_FILE")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	config = Config{
		Log:     logging.Config{Level: logging.LevelInfo},
		Capture: capture.DefaultConfig(),
	}
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	logging.Init(config.Log.Level)

	if logging.IsDebug(config.Log.Level) {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
	return nil
}
