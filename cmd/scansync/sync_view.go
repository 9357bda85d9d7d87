package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	syncengine "scansync/store/sync"
)

type progressMsg syncengine.Progress

type syncDoneMsg struct{}

// syncModel renders a live progress bar while a sync runs. Keypresses are
// ignored: a started sync runs to completion.
type syncModel struct {
	bar     progress.Model
	current int
	total   int
	phase   string
	done    bool
}

func newSyncModel() syncModel {
	return syncModel{
		bar: progress.New(progress.WithDefaultGradient()),
	}
}

func (m syncModel) Init() tea.Cmd {
	return nil
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 20
		if width > 60 {
			width = 60
		}
		if width > 0 {
			m.bar.Width = width
		}
		return m, nil
	case progressMsg:
		m.current = msg.Current
		m.total = msg.Total
		m.phase = msg.Phase
		return m, nil
	case syncDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m syncModel) View() string {
	if m.done {
		return ""
	}
	if m.total == 0 {
		return dimStyle.Render("contacting remote store...") + "\n"
	}

	pct := float64(m.current) / float64(m.total)
	return fmt.Sprintf("%s %s %d/%d\n",
		m.phase, m.bar.ViewAs(pct), m.current, m.total)
}

// runSyncWithProgressUI runs the engine under a bubbletea program that shows
// per-item progress, returning the engine's result once the run finishes.
func runSyncWithProgressUI(engine *syncengine.Engine) (*syncengine.Result, error) {
	p := tea.NewProgram(newSyncModel())

	unsubscribe := engine.Subscribe(func(pr syncengine.Progress) {
		p.Send(progressMsg(pr))
	})
	defer unsubscribe()

	var result *syncengine.Result
	var syncErr error
	go func() {
		result, syncErr = engine.Sync(context.Background())
		p.Send(syncDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return result, fmt.Errorf("progress display failed: %w", err)
	}
	return result, syncErr
}
