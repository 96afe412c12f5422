// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
)

// errConfigExists is returned when init would overwrite a config file.
var errConfigExists = errors.New("config file already exists (use --force to overwrite)")

type initFlags struct {
	scanFlags
	format         string
	output         string
	force          bool
	nonInteractive bool
}

func newInitCmd(a *app) *cobra.Command {
	f := &initFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write " + config.FileName + " into the config directory",
		Long: `Creates a config file with the scan settings. On a terminal the settings
are asked for interactively, seeded with the flag values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, a, f)
		},
	}
	f.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", string(config.FormatGV), "Output format: gv, csv or json")
	fl.StringVarP(&f.output, "output", "o", ".", "Output directory, s3:// or gs:// URL")
	fl.BoolVar(&f.force, "force", false, "Overwrite an existing config file")
	fl.BoolVar(&f.nonInteractive, "non-interactive", false, "Never prompt")
	return cmd
}

func runInit(cmd *cobra.Command, a *app, f *initFlags) error {
	path := filepath.Join(a.configDir, config.FileName)
	if _, err := os.Stat(path); err == nil && !f.force {
		return fmt.Errorf("%w: %s", errConfigExists, path)
	}

	cfg := config.Default()
	f.apply(cmd, &cfg)
	cfg.Format = config.Format(f.format)
	cfg.Output = f.output

	if !f.nonInteractive && isTerminal(os.Stdin) && isTerminal(cmd.OutOrStdout()) {
		if err := promptConfig(&cfg); err != nil {
			return err
		}
	}

	format, err := config.ParseFormat(string(cfg.Format))
	if err != nil {
		return err
	}
	cfg.Format = format
	if err := cfg.ValidateOptions(); err != nil {
		return err
	}

	written, err := cfg.Save(a.configDir)
	if err != nil {
		return err
	}
	a.logger.Debug("config written", "path", written)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", written)
	return nil
}

// promptConfig asks for the main settings with a huh form.
func promptConfig(cfg *config.Config) error {
	kind := "project"
	path := cfg.ProjectPath
	if cfg.FolderPath != "" {
		kind, path = "folder", cfg.FolderPath
	}
	format := string(cfg.Format)
	excluded := strings.Join(cfg.ExcludedNames, ",")

	formatOptions := make([]huh.Option[string], 0, len(config.Formats))
	for _, f := range config.Formats {
		formatOptions = append(formatOptions, huh.NewOption(string(f), string(f)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What do you want to scan?").
				Options(
					huh.NewOption("Xcode project or Swift package (one module per target)", "project"),
					huh.NewOption("Plain folder (one module)", "folder"),
				).
				Value(&kind),
			huh.NewInput().
				Title("Path").
				Value(&path).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return config.ErrPathRequired
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Options(formatOptions...).
				Value(&format),
			huh.NewInput().
				Title("Output directory or bucket URL").
				Value(&cfg.Output),
			huh.NewInput().
				Title("Excluded entity names (comma separated)").
				Value(&excluded),
			huh.NewConfirm().
				Title("Show references to undiscovered types?").
				Value(&cfg.ShowLeafReferences),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.ProjectPath, cfg.FolderPath = "", ""
	if kind == "folder" {
		cfg.FolderPath = strings.TrimSpace(path)
	} else {
		cfg.ProjectPath = strings.TrimSpace(path)
	}
	cfg.Format = config.Format(format)
	cfg.ExcludedNames = splitList(excluded)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
