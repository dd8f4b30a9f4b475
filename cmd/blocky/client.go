package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agorgl/blocky/internal/client"
	"github.com/agorgl/blocky/internal/client/config"
)

func init() {
	rootCmd.AddCommand(newClientCmd())
}

func newClientCmd() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client <server> <directory>",
		Short: "Sync a local directory from a patch server",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg := &config.Config{
				ServerURL:      args[0],
				DataDir:        args[1],
				Workers:        viper.GetInt("workers"),
				BlockSize:      viper.GetInt("block_size"),
				StrongHashSize: viper.GetInt("strong_hash_size"),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			c, err := client.New(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			return c.Start(cmd.Context())
		},
	}

	clientCmd.Flags().IntP("workers", "w", 0, "Concurrent file syncs (0 = number of CPUs)")
	clientCmd.Flags().Int("block-size", 0, "Signature block size in bytes")
	clientCmd.Flags().Int("strong-hash-size", 0, "Strong hash bytes per block")

	return clientCmd
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("blocky")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	bindFlag := func(key, flag string) {
		if f := cmd.Flags().Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
	bindFlag("workers", "workers")
	bindFlag("block_size", "block-size")
	bindFlag("strong_hash_size", "strong-hash-size")
	bindFlag("bind", "bind")
	bindFlag("root", "root")
	bindFlag("exclude", "exclude")
	bindFlag("listing_ttl", "listing-ttl")
	bindFlag("cert", "cert")
	bindFlag("key", "key")

	viper.SetEnvPrefix("BLOCKY")
	viper.AutomaticEnv()

	return nil
}
