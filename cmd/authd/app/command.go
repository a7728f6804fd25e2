// Package app holds the authd command tree.
package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultHomeDir    = ".authd"
	defaultConfigName = "authd.yaml"
	envPrefix         = "AUTHD"
)

// NewCommand returns the root command. Running it without a subcommand
// serves the HTTP API.
func NewCommand() *cobra.Command {
	opts := NewServerOptions()
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:          "authd",
		Short:        "Authentication and session service",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd, configFile, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid options: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the authd configuration file.")
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newLoadTestCommand(opts))
	return cmd
}

// loadConfig layers flags over AUTHD_ environment variables over the YAML
// file, then decodes the result into opts.
func loadConfig(v *viper.Viper, cmd *cobra.Command, configFile string, opts *ServerOptions) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(defaultConfigName, filepath.Ext(defaultConfigName)))
		v.SetConfigType("yaml")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}

func searchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, defaultHomeDir))
	}
	return dirs
}
