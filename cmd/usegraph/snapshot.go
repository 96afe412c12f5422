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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/usegraph/services/usegraph/export"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved graph snapshots",
	}
	cmd.AddCommand(
		newSnapshotListCmd(a),
		newSnapshotDeleteCmd(a),
		newSnapshotDiffCmd(a),
	)
	return cmd
}

// withSnapshots opens the snapshot store for the duration of fn.
func (a *app) withSnapshots(fn func(*graph.SnapshotManager) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	mgr, closeDB, err := openSnapshots(cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(mgr)
}

func newSnapshotListCmd(a *app) *cobra.Command {
	var root string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshots(func(mgr *graph.SnapshotManager) error {
				metas, err := mgr.List(cmd.Context(), root, limit)
				if err != nil {
					return err
				}
				if len(metas) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No snapshots.")
					return nil
				}
				rows := make([][]string, 0, len(metas))
				for _, m := range metas {
					rows = append(rows, []string{
						m.SnapshotID,
						time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339),
						m.Label,
						strconv.Itoa(m.EntityCount),
						strconv.Itoa(m.EdgeCount),
						m.Root,
					})
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(),
					listTable([]string{"ID", "Created", "Label", "Entities", "Edges", "Root"}, rows))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Only list snapshots of this scan root")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum snapshots to list")
	return cmd
}

func newSnapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSnapshots(func(mgr *graph.SnapshotManager) error {
				for _, id := range args {
					if err := mgr.Delete(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func newSnapshotDiffCmd(a *app) *cobra.Command {
	var unified bool
	cmd := &cobra.Command{
		Use:   "diff BASE TARGET",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSnapshots(func(mgr *graph.SnapshotManager) error {
				ctx := cmd.Context()
				base, _, err := mgr.Load(ctx, args[0])
				if err != nil {
					return err
				}
				target, _, err := mgr.Load(ctx, args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if unified {
					text, err := export.UnifiedEdgeDiff(args[0], args[1], base, target)
					if err != nil {
						return err
					}
					_, err = out.Write(text)
					return err
				}
				_, err = fmt.Fprintln(out, diffSummary(graph.DiffGraphs(base, target)))
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&unified, "unified", "u", false, "Print edge changes as a unified diff")
	return cmd
}

func diffSummary(d *graph.Diff) string {
	if d.Empty() {
		return "No changes."
	}
	rows := [][]string{
		{"Entities added", strconv.Itoa(len(d.EntitiesAdded))},
		{"Entities removed", strconv.Itoa(len(d.EntitiesRemoved))},
		{"Entities modified", strconv.Itoa(len(d.EntitiesModified))},
		{"Edges added", strconv.Itoa(d.EdgesAdded)},
		{"Edges removed", strconv.Itoa(d.EdgesRemoved)},
		{"Files affected", strconv.Itoa(d.FilesAffected)},
	}
	var b strings.Builder
	b.WriteString(keyValueTable(rows))
	for _, name := range d.EntitiesAdded {
		b.WriteString("\n" + addedStyle.Render("+ "+name))
	}
	for _, name := range d.EntitiesRemoved {
		b.WriteString("\n" + removeStyle.Render("- "+name))
	}
	for _, m := range d.EntitiesModified {
		b.WriteString("\n~ " + m.Name + " (" + m.ChangeType + ")")
	}
	return b.String()
}
