// Package config loads typed configuration sections from the environment,
// optionally seeded from a dotenv file named by PORTAGENT_ENV_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// envFileVar points at the dotenv file loaded before the environment is
// read. When unset, a .env in the working directory is picked up if present.
const envFileVar = "PORTAGENT_ENV_FILE"

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New seeds the environment from the dotenv file, then decodes one prefixed
// section of it into T.
func New[T any](prefix string) (*T, error) {
	if err := seedEnvironment(); err != nil {
		return nil, fmt.Errorf("config %s: %w", prefix, err)
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("config %s: %w", prefix, err)
	}
	return &conf, nil
}

// seedEnvironment exports the dotenv file's settings into the process
// environment. Variables already set in the real environment win over the
// file. A missing default .env is fine; a missing explicit file is not.
func seedEnvironment() error {
	path := strings.TrimSpace(os.Getenv(envFileVar))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	info, err := os.Stat(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("env file %s is a directory", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for key, value := range v.AllSettings() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(value)); err != nil {
			return err
		}
	}
	return nil
}
