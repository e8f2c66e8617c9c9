package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/health"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live dashboard of a running controller",
	Run:   runTop,
}

func init() {
	rootCmd.AddCommand(topCmd)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type tickMsg time.Time

type reportMsg struct {
	report health.Report
	err    error
}

type topModel struct {
	base      string
	detectors table.Model
	events    table.Model
	report    health.Report
	err       error
	updated   time.Time
}

func runTop(cmd *cobra.Command, args []string) {
	base, err := baseURL()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	program := tea.NewProgram(newTopModel(base), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		slog.Error("Dashboard failed", "error", err)
		os.Exit(1)
	}
}

func newTopModel(base string) topModel {
	detectors := table.New(
		table.WithColumns([]table.Column{
			{Title: "Detector", Width: 12},
			{Title: "Avail", Width: 6},
			{Title: "Last", Width: 10},
			{Title: "Hits", Width: 6},
			{Title: "Warning", Width: 9},
			{Title: "Critical", Width: 9},
		}),
		table.WithHeight(len(domain.Domains)+1),
	)
	events := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 9},
			{Title: "Type", Width: 22},
			{Title: "Detector", Width: 12},
			{Title: "Level", Width: 9},
			{Title: "Message", Width: 40},
		}),
		table.WithHeight(11),
	)
	return topModel{base: base, detectors: detectors, events: events}
}

func (m topModel) Init() tea.Cmd {
	return tea.Batch(fetchReportCmd(m.base), tickCmd())
}

func (m topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(fetchReportCmd(m.base), tickCmd())
	case reportMsg:
		m.err = typed.err
		if typed.err == nil {
			m.report = typed.report
			m.updated = time.Now()
			m.detectors.SetRows(detectorRows(typed.report))
			m.events.SetRows(eventRows(typed.report))
		}
		return m, nil
	}
	return m, nil
}

func (m topModel) View() string {
	r := m.report

	status := mutedStyle.Render("waiting for " + m.base)
	if !m.updated.IsZero() {
		status = statusStyle(r.Status).Render(fmt.Sprintf("%s  score %d", r.Status, r.Score))
	}

	lines := []string{
		titleStyle.Render("perfguard top"),
		status,
		fmt.Sprintf("Level %d %s   Recovery %d/%d   Quality %.2f",
			r.Level, degradation.LevelDescription(r.Level), r.Recovery.Successful, r.Recovery.Total, r.Tuning.Quality),
	}
	if len(r.Degradation.DisabledFeatures) > 0 {
		lines = append(lines, mutedStyle.Render("Disabled: "+strings.Join(r.Degradation.DisabledFeatures, ", ")))
	}
	lines = append(lines, "", m.detectors.View(), "", m.events.View(), "")

	if m.err != nil {
		lines = append(lines, errStyle.Render(m.err.Error()))
	} else if !m.updated.IsZero() {
		lines = append(lines, mutedStyle.Render("updated "+m.updated.Format(time.TimeOnly)+"  q to quit"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusStyle(s health.SystemStatus) lipgloss.Style {
	switch s {
	case health.StatusExcellent, health.StatusGood:
		return okStyle
	case health.StatusFair:
		return warnStyle
	default:
		return errStyle
	}
}

func detectorRows(r health.Report) []table.Row {
	rows := make([]table.Row, 0, len(domain.Domains))
	for _, d := range domain.Domains {
		st, ok := r.Detection.Detectors[d]
		if !ok {
			continue
		}
		rows = append(rows, table.Row{
			string(d),
			fmt.Sprintf("%t", st.Available),
			fmt.Sprintf("%.2f", st.LastValue),
			fmt.Sprintf("%d", st.Detections),
			fmt.Sprintf("%v", st.Thresholds.Warning),
			fmt.Sprintf("%v", st.Thresholds.Critical),
		})
	}
	return rows
}

func eventRows(r health.Report) []table.Row {
	rows := make([]table.Row, 0, len(r.RecentEvents))
	for _, e := range r.RecentEvents {
		rows = append(rows, table.Row{
			e.CreatedAt.Local().Format(time.TimeOnly),
			string(e.EventType),
			string(e.Detector),
			e.Level,
			e.Message,
		})
	}
	return rows
}

func fetchReportCmd(base string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		report, err := fetchReport(ctx, base)
		return reportMsg{report: report, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
