// Package main provides the newsboard CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"NewsBoard/internal/app"
	"NewsBoard/internal/config"
	"NewsBoard/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version, then the module version.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" {
		return ldflags
	}
	if info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	info, _ := debug.ReadBuildInfo()
	rootCmd := &cobra.Command{
		Use:          "newsboard",
		Short:        "Render a multi-panel news board",
		Long:         "Newsboard loads ranked stories into panels and shows every story on at most one panel.",
		Version:      resolveVersion(version, info),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("newsboard version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	load := func(cmd *cobra.Command) (*app.Application, error) {
		if configPath != "" {
			if err := os.Setenv("NEWSBOARD_CONFIG", configPath); err != nil {
				return nil, err
			}
		}
		cfg := config.Load()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)
		return app.New(cfg, logger)
	}

	rootCmd.AddCommand(newRenderCmd(load))
	rootCmd.AddCommand(newPanelsCmd(load))
	rootCmd.AddCommand(newServeCmd(load))

	return rootCmd
}

type loader func(cmd *cobra.Command) (*app.Application, error)

func newRenderCmd(load loader) *cobra.Command {
	var settle bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Load the board once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := load(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := application.Render(ctx, settle)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&settle, "wait", "w", true, "Wait for background batches and reconciliation")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Give up after this long")

	return cmd
}

func newPanelsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "panels",
		Short: "List configured panels in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := load(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			for rank, panel := range application.Panels() {
				line := fmt.Sprintf("%d. %s (%s)", rank+1, panel.Key, panel.Scanner)
				if panel.Title != "" && panel.Title != panel.Key {
					line += " " + panel.Title
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(line))
			}
			return nil
		},
	}
}

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the board on the scheduler interval and publish frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := load(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Serve(ctx)
		},
	}
}
