package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-bench/bench"
)

type progressMsg bench.Progress

type doneMsg struct {
	err     error
	results []*bench.Result
}

type progressModel struct {
	spinner  spinner.Model
	bar      progress.Model
	current  bench.Progress
	seen     map[string]bool
	failures int
	total    int
	finished bool
	quitting bool
}

func newProgressModel(total int) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = funcStyle
	return &progressModel{
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		seen:    make(map[string]bool),
		total:   total,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case progressMsg:
		m.current = bench.Progress(msg)
		m.seen[bench.ID(m.current.Op, m.current.Benchmark)] = true
		if m.current.Err != nil && !m.current.Warmup {
			m.failures++
		}

	case doneMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.finished || m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wasm-bench"))
	b.WriteString(fmt.Sprintf(" %d/%d\n\n", len(m.seen), m.total))

	if m.current.Benchmark == "" {
		b.WriteString(m.spinner.View() + " preparing...\n")
	} else {
		phase := fmt.Sprintf("iteration %d/%d", m.current.Iteration, m.current.Total)
		if m.current.Warmup {
			phase = "warming up"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n\n",
			m.spinner.View(),
			funcStyle.Render(bench.ID(m.current.Op, m.current.Benchmark)),
			typeStyle.Render(phase)))

		var pct float64
		if m.current.Total > 0 {
			pct = float64(m.current.Iteration) / float64(m.current.Total)
		}
		b.WriteString(m.bar.ViewAs(pct))
		b.WriteString("\n")
	}

	if m.failures > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("\n%d failed iteration(s)", m.failures)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}
