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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/usegraph/services/usegraph/watch"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

type rebuildStartedMsg struct {
	files int
}

type rebuildDoneMsg struct {
	summary string
	err     error
	at      time.Time
}

// watchModel shows the state of a watch session: a spinner while a
// rebuild runs, then the summary or error of the last rebuild.
type watchModel struct {
	root     string
	spinner  spinner.Model
	building bool
	files    int
	rebuilds int
	summary  string
	err      error
	at       time.Time
}

func newWatchModel(root string) watchModel {
	return watchModel{
		root:    root,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		at:      time.Now(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case rebuildStartedMsg:
		m.building = true
		m.files = msg.files
	case rebuildDoneMsg:
		m.building = false
		m.rebuilds++
		m.at = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.summary = msg.summary
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Watching "+m.root) + "\n")
	if m.building {
		fmt.Fprintf(&b, "%s rebuilding (%d changed files)\n", m.spinner.View(), m.files)
	} else {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("rebuilds: %d, last at %s",
			m.rebuilds, m.at.Format(time.Kitchen))) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(strings.TrimRight(m.summary, "\n") + "\n")
	b.WriteString(mutedStyle.Render("q to quit") + "\n")
	return b.String()
}

// runWatchUI runs the watcher behind an interactive status view until the
// user quits or ctx is canceled.
func runWatchUI(ctx context.Context, out io.Writer, w *watch.Watcher, root string,
	rebuild func(context.Context, io.Writer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newWatchModel(root), tea.WithOutput(out), tea.WithContext(ctx))

	watchErr := make(chan error, 1)
	go func() {
		err := w.Run(ctx, func(ctx context.Context, c watch.Change) error {
			p.Send(rebuildStartedMsg{files: len(c.Paths)})
			var buf bytes.Buffer
			err := rebuild(ctx, &buf)
			p.Send(rebuildDoneMsg{summary: buf.String(), err: err, at: time.Now()})
			return err
		})
		p.Quit()
		watchErr <- err
	}()

	_, err := p.Run()
	cancel()
	if werr := <-watchErr; werr != nil {
		return werr
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
