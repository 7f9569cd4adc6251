package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/asydsolutions/sentinel/internal/config"
	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
	"github.com/asydsolutions/sentinel/internal/statestore"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const refreshInterval = time.Second

type snapshotMsg struct {
	services []*service.Service
	err      error
}

type tuiModel struct {
	cfg   *config.Config
	table table.Model
	err   error
}

func newTUIModel(cfg *config.Config) tuiModel {
	columns := []table.Column{
		{Title: "NAME", Width: 18},
		{Title: "TYPE", Width: 10},
		{Title: "MONITOR", Width: 10},
		{Title: "PID", Width: 8},
		{Title: "CPU%", Width: 8},
		{Title: "RSS(kB)", Width: 10},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(15))
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(lipgloss.Color("39")).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39"))
	t.SetStyles(s)

	return tuiModel{cfg: cfg, table: t}
}

func (m tuiModel) Init() tea.Cmd {
	return fetchSnapshot(m.cfg)
}

func fetchSnapshot(cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		services, err := config.LoadServices(cfg.ControlFile)
		if err != nil {
			return snapshotMsg{err: err}
		}

		if cfg.StateFile != "" {
			if _, statErr := os.Stat(cfg.StateFile); statErr == nil {
				table := depgraph.NewTable(services)
				store, err := statestore.Open(context.Background(), statestore.Config{Path: cfg.StateFile}, zerolog.Nop())
				if err == nil {
					_ = store.Load(context.Background(), table)
					store.Close()
					services = table.All()
				}
			}
		}

		return snapshotMsg{services: services}
	}
}

func tickCmd(cfg *config.Config) tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return fetchSnapshot(cfg)()
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.cfg)
		}

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 4)

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			var rows []table.Row
			for _, s := range msg.services {
				rows = append(rows, table.Row{
					s.Name, s.Type.String(), s.Monitor.String(),
					fmt.Sprintf("%d", s.Info.PID),
					fmt.Sprintf("%.1f", s.Info.CPUPercent),
					fmt.Sprintf("%d", s.Info.RSSKB),
				})
			}
			m.table.SetRows(rows)
		}
		return m, tickCmd(m.cfg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	header := headerStyle.Render("sentinel — service status")
	footer := footerStyle.Render("r refresh · q quit")
	if m.err != nil {
		return header + "\n\n" + failStyle.Render("error: "+m.err.Error()) + "\n\n" + footer
	}
	return header + "\n\n" + m.table.View() + "\n\n" + footer
}

func runTUI(cfg *config.Config) {
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "sentinelctl:", err)
		os.Exit(1)
	}
}
