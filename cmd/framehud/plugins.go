// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package main

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/framehud/framehud/internal/config"
	luaplugin "github.com/framehud/framehud/internal/plugin/lua"
)

// NewPluginsCmd creates the plugins subcommand, which lists the script
// plugins in the configured directory and validates their manifests without
// starting the runtime.
func NewPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List and validate script plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}

			found, broken, err := luaplugin.Discover(cfg.PluginsDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(found)+len(broken) == 0 {
				cmd.Printf("no plugins found in %s\n", cfg.PluginsDir)
				return nil
			}

			if _, err := w.Write([]byte("NAME\tVERSION\tPROVIDES\tCONSUMES\tDEPENDS\n")); err != nil {
				return err
			}
			for _, d := range found {
				meta := d.Def.Meta
				line := strings.Join([]string{
					meta.Name,
					meta.Version,
					strings.Join(meta.Provides, ","),
					strings.Join(meta.Consumes, ","),
					strings.Join(meta.Dependencies, ","),
				}, "\t")
				if _, err := w.Write([]byte(line + "\n")); err != nil {
					return err
				}
			}
			for name, berr := range broken {
				if _, err := w.Write([]byte(name + "\tBROKEN\t" + berr.Error() + "\n")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
