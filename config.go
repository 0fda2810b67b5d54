package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CrowderSoup/bizniz-quest/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadEnv copies KEY=value pairs from a .env file into the process
// environment. Variables that are already set win. A missing file is fine.
func loadEnv(filename string) error {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves the server configuration from the --env-file and
// --config flags.
func loadConfig(cmd *cobra.Command) (*services.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := loadEnv(envFile); err != nil {
			return nil, err
		}
	}
	path, _ := cmd.Flags().GetString("config")
	return services.LoadConfig(path)
}
