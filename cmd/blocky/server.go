package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agorgl/blocky/internal/server"
)

func init() {
	rootCmd.AddCommand(newServerCmd())
}

func newServerCmd() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server <bind>",
		Short: "Serve listings and delta patches for a directory",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			addr := viper.GetString("bind")
			if len(args) > 0 {
				addr = args[0]
			}

			cfg := &server.Config{
				HTTP: server.HTTPConfig{
					Addr:     addr,
					CertFile: viper.GetString("cert"),
					KeyFile:  viper.GetString("key"),
				},
				Index: server.IndexConfig{
					Root:       viper.GetString("root"),
					Exclude:    viper.GetStringSlice("exclude"),
					ListingTTL: viper.GetDuration("listing_ttl"),
				},
			}

			s, err := server.New(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			return s.Start(cmd.Context())
		},
	}

	serverCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	serverCmd.Flags().StringP("root", "r", ".", "Directory to serve patches for")
	serverCmd.Flags().StringSliceP("exclude", "x", nil, "Glob patterns to exclude from the listing")
	serverCmd.Flags().Duration("listing-ttl", 0, "How long a listing snapshot may be reused (0 = rebuild per request)")
	serverCmd.Flags().String("cert", "", "Path to the TLS certificate file")
	serverCmd.Flags().String("key", "", "Path to the TLS key file")

	return serverCmd
}
