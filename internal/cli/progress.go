package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/fossaudit/pkg/audit"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

const barWidth = 30

type scanMsg audit.ScanEvent

type scanDoneMsg struct{ err error }

// scanModel shows repository scan progress while an audit runs.
type scanModel struct {
	cancel   context.CancelFunc
	total    int
	done     int
	included int
	skipped  int
	packages int
	last     string
	finished bool
	err      error
}

func newScanModel(total int, cancel context.CancelFunc) scanModel {
	return scanModel{total: total, cancel: cancel}
}

func (m scanModel) Init() tea.Cmd { return nil }

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case scanMsg:
		m.done, m.total = msg.Done, msg.Total
		m.last = msg.Repo.ID()
		if msg.Status == audit.ScanIncluded {
			m.included++
			m.packages += msg.Packages
		} else {
			m.skipped++
		}
	case scanDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m scanModel) View() string {
	if m.finished {
		return ""
	}
	filled := 0
	if m.total > 0 {
		filled = barWidth * m.done / m.total
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Scanning"))
	b.WriteString(" ")
	b.WriteString(barFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(barEmptyStyle.Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(StyleDim.Render(fmt.Sprintf(" %d/%d", m.done, m.total)))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d included · %d skipped", m.included, m.skipped)))
	if m.last != "" {
		b.WriteString(StyleDim.Render(" · " + m.last))
	}
	b.WriteString("\n")
	return b.String()
}

// runScan runs scan, reporting each finished repository branch either on a
// progress view (interactive terminals) or as log lines.
func runScan(ctx context.Context, logger *log.Logger, total int, interactive bool, scan func(ctx context.Context, onScan func(audit.ScanEvent)) error) error {
	if !interactive || !isatty.IsTerminal(os.Stderr.Fd()) {
		return scan(ctx, func(ev audit.ScanEvent) {
			if ev.Status == audit.ScanSkipped {
				logger.Debug("skipped", "repo", ev.Repo.ID(), "reason", ev.Reason, "progress", fmt.Sprintf("%d/%d", ev.Done, ev.Total))
				return
			}
			logger.Info("scanned", "repo", ev.Repo.ID(), "packages", ev.Packages, "progress", fmt.Sprintf("%d/%d", ev.Done, ev.Total))
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanModel(total, cancel), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	result := make(chan error, 1)
	go func() {
		err := scan(ctx, func(ev audit.ScanEvent) { p.Send(scanMsg(ev)) })
		result <- err
		p.Send(scanDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-result
		return err
	}
	return <-result
}
