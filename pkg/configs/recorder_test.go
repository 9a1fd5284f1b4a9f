// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecorderConfigDefaults(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	config, err := GetRecorderConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "capturekit-recorder", config.Name)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "ios", config.Platform)
	assert.Equal(t, "ws://127.0.0.1:7643/engine", config.EngineURL)
	assert.Equal(t, 500, config.SettleDelayMs)
	assert.Equal(t, 5000, config.DialTimeoutMs)
	assert.Equal(t, 64, config.EventChannelSize)
}

func TestGetRecorderConfigOverrides(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	v.Set("PLATFORM", "android")
	v.Set("ENGINE_URL", "ws://10.0.0.5:9000/engine")
	v.Set("SETTLE_DELAY_MS", 750)

	config, err := GetRecorderConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "android", config.Platform)
	assert.Equal(t, "ws://10.0.0.5:9000/engine", config.EngineURL)
	assert.Equal(t, 750, config.SettleDelayMs)
}

func TestGetRecorderConfigRejectsUnknownPlatform(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	v.Set("PLATFORM", "windows")
	_, err = GetRecorderConfig(v)
	assert.Error(t, err)
}

func TestGetRecorderConfigRejectsNonPositiveSettle(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	v.Set("SETTLE_DELAY_MS", 0)
	_, err = GetRecorderConfig(v)
	assert.Error(t, err)
}

func TestGetRecorderConfigRequiresEngineURL(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	v.Set("ENGINE_URL", "")
	_, err = GetRecorderConfig(v)
	assert.Error(t, err)
}
