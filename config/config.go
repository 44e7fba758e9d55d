// Package config registers every setting with viper and loads the TOML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/spf13/viper"
)

// EnvKeyReplacer maps a key such as player.auto_skip to its env suffix PLAYER_AUTO_SKIP.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Setup registers defaults and env bindings, then reads kitsune.toml from the config directory if present.
func Setup() error {
	viper.SetConfigName(constant.Kitsune)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(constant.Kitsune)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	err := viper.ReadInConfig()
	if errors.As(err, new(viper.ConfigFileNotFoundError)) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Millis reads an integer setting stored in milliseconds.
func Millis(k string) time.Duration {
	return time.Duration(viper.GetInt(k)) * time.Millisecond
}

// Seconds reads an integer setting stored in seconds.
func Seconds(k string) time.Duration {
	return time.Duration(viper.GetInt(k)) * time.Second
}
