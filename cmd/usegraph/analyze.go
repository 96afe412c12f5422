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
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/export"
	"github.com/AleutianAI/usegraph/services/usegraph/pipeline"
)

// errFoldersRequired is returned when analyze is run without --folders.
var errFoldersRequired = errors.New("at least one folder is required (--folders)")

type analyzeFlags struct {
	scanFlags
	folders []string
	output  string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report the references that leave each folder",
		Long: `For every folder, keeps the entities declared in it plus the same-module
entities outside it that they reference, and writes a module-info.html page
with the boundary links. Without --output the page is written into the folder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, a, f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringSliceVar(&f.folders, "folders", nil, "Folders to analyze")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Directory or bucket URL for the reports")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, f *analyzeFlags) error {
	if len(f.folders) == 0 {
		return errFoldersRequired
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	f.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	builder, err := pipeline.NewBuilder(cfg, pipeline.WithLogger(a.logger))
	if err != nil {
		return err
	}
	res, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(f.folders)+1)
	total := 0
	for _, folder := range f.folders {
		report := export.AnalyzeFolder(res.Graph, folder)
		var buf bytes.Buffer
		if err := export.WriteReport(&buf, report); err != nil {
			return err
		}

		output, name := folder, export.ReportName
		if f.output != "" {
			output, name = f.output, filepath.Base(filepath.Clean(folder))+"-"+export.ReportName
		}
		sink, err := export.OpenSink(ctx, output, config.S3FromEnv(), a.logger)
		if err != nil {
			return err
		}
		_, err = export.WriteAll(ctx, sink, []export.Artifact{{
			Name:        name,
			ContentType: "text/html",
			Data:        buf.Bytes(),
		}})
		closeSink(sink)
		if err != nil {
			return err
		}

		total += report.Count()
		rows = append(rows, []string{folder, strconv.Itoa(report.Count())})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(total)})

	_, err = fmt.Fprintln(cmd.OutOrStdout(), listTable([]string{"Folder", "Links"}, rows))
	return err
}
