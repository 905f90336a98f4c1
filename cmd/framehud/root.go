// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/framehud/framehud/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the FrameHUD CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framehud",
		Short: "FrameHUD - a per-frame plugin runtime",
		Long: `FrameHUD runs independently developed HUD plugins against a shared
frame clock: plugins exchange values over a data bus, order themselves by
declared dependencies, and reload from disk without restarting the host.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "config file path")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}
