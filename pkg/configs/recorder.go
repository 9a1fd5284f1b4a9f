// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package configs

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// RecorderConfig is the top-level configuration for a recorder instance.
type RecorderConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// Platform selects the capability profile: "ios" or "android".
	Platform string `mapstructure:"platform" validate:"required,oneof=ios android"`

	// EngineURL is the websocket endpoint of the capture worker process.
	EngineURL string `mapstructure:"engine_url" validate:"required,uri"`
	// EngineToken authenticates against the capture worker, when it requires it.
	EngineToken string `mapstructure:"engine_token"`

	// SettleDelayMs is the default wait between issuing a stop/finalize command
	// and querying its result. The asset writer completes asynchronously; an
	// immediate query can race the write.
	SettleDelayMs int `mapstructure:"settle_delay_ms" validate:"required,gt=0"`
	// DialTimeoutMs bounds the websocket connect to the capture worker.
	DialTimeoutMs int `mapstructure:"dial_timeout_ms" validate:"required,gt=0"`
	// EventChannelSize is the buffer size of the engine event/completion channels.
	EventChannelSize int `mapstructure:"event_channel_size" validate:"required,gt=0"`
}

// InitConfig reads configuration from the environment (and an optional .env
// file pointed at by ENV_PATH), with defaults for everything non-secret.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("no config file, reading from env variables")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "capturekit-recorder")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("PLATFORM", "ios")
	v.SetDefault("ENGINE_URL", "ws://127.0.0.1:7643/engine")
	v.SetDefault("ENGINE_TOKEN", "")
	v.SetDefault("SETTLE_DELAY_MS", 500)
	v.SetDefault("DIAL_TIMEOUT_MS", 5000)
	v.SetDefault("EVENT_CHANNEL_SIZE", 64)
}

// GetRecorderConfig unmarshals and validates the recorder configuration.
func GetRecorderConfig(v *viper.Viper) (*RecorderConfig, error) {
	var config RecorderConfig
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, decodeHook); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
