// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	luaplugin "github.com/framehud/framehud/internal/plugin/lua"
)

// NewSchemaCmd creates the schema subcommand, which writes the manifest
// JSON Schema so editors can validate plugin.yaml files.
func NewSchemaCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate the plugin manifest JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := luaplugin.GenerateSchema()
			if err != nil {
				return err
			}

			if outPath == "-" {
				cmd.Println(string(schema))
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return err
			}
			cmd.Printf("Generated %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", filepath.Join("schemas", "plugin.schema.json"), "output path ('-' for stdout)")
	return cmd
}
