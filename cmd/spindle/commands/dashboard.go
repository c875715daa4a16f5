package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var spoolDashboardCmd = &cobra.Command{
	Use:   "spool_dashboard",
	Short: "Show running/complete/error counts and shards needing attention",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return runDashboardStatic()
		}
		_, err := tea.NewProgram(newDashboardModel()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(spoolDashboardCmd)
}

func runDashboardStatic() error {
	var out any
	if err := NewClient().Get("/v1/spool_dashboard", &out); err != nil {
		return err
	}
	printJSON(out)
	return nil
}

// dashboardPayload mirrors facade.DashboardResult loosely enough for display
// without importing the daemon's internal packages into the client binary.
type dashboardPayload struct {
	Running           int `json:"running"`
	CompleteLastHour  int `json:"complete_last_hour"`
	ErrorsTotal       int `json:"errors_total"`
	ErrorsLastHour    int `json:"errors_last_hour"`
	RecentCompletions []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Age    string `json:"age"`
	} `json:"recent_completions"`
	NeedingAttention []struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
		Detail string `json:"detail"`
	} `json:"needing_attention"`
}

// dashboardModel is a bubbletea live view of the daemon's dashboard,
// grounded on the ancestor CLI's internal/tui/dashboard.go panel-refresh
// pattern (generalized from a project's issue/plan panel to a periodic
// HTTP poll of spindled).
type dashboardModel struct {
	client  *Client
	payload dashboardPayload
	err     error
	loaded  bool
	spinner spinner.Model
}

type tickMsg time.Time
type dataMsg dashboardPayload
type errMsg error

func newDashboardModel() dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = dashDimStyle
	return dashboardModel{client: NewClient(), spinner: s}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tickEvery(), m.spinner.Tick)
}

func tickEvery() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) fetch() tea.Cmd {
	return func() tea.Msg {
		var p dashboardPayload
		if err := m.client.Get("/v1/spool_dashboard", &p); err != nil {
			return errMsg(err)
		}
		return dataMsg(p)
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.fetch(), tickEvery())
	case dataMsg:
		m.payload = dashboardPayload(msg)
		m.err = nil
		m.loaded = true
	case errMsg:
		m.err = msg
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

var (
	dashHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1e1e2e")).Background(lipgloss.Color("#89b4fa")).Padding(0, 2)
	dashOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	dashWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	dashErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	dashDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

func (m dashboardModel) View() string {
	if m.err != nil {
		return dashErrStyle.Render(fmt.Sprintf("spindled unreachable: %v", m.err)) + "\n" + dashDimStyle.Render("press q to quit")
	}
	if !m.loaded {
		return m.spinner.View() + " " + dashDimStyle.Render("loading dashboard...")
	}

	b := dashHeaderStyle.Render("spindle dashboard") + "\n\n"
	b += fmt.Sprintf("%s  %s  %s\n\n",
		dashOKStyle.Render(fmt.Sprintf("running: %d", m.payload.Running)),
		dashOKStyle.Render(fmt.Sprintf("complete (1h): %d", m.payload.CompleteLastHour)),
		errorsStyle(m.payload.ErrorsTotal).Render(fmt.Sprintf("errors: %d (%d last hour)", m.payload.ErrorsTotal, m.payload.ErrorsLastHour)))

	if len(m.payload.NeedingAttention) > 0 {
		b += dashWarnStyle.Render("needing attention:") + "\n"
		for _, item := range m.payload.NeedingAttention {
			line := fmt.Sprintf("  %s  %s", item.ID, item.Reason)
			if item.Detail != "" {
				line += " (" + item.Detail + ")"
			}
			b += line + "\n"
		}
		b += "\n"
	}

	if len(m.payload.RecentCompletions) > 0 {
		b += "recent completions:\n"
		for _, c := range m.payload.RecentCompletions {
			b += fmt.Sprintf("  %s  %-8s %s\n", c.ID, c.Status, c.Age)
		}
	}

	b += "\n" + dashDimStyle.Render("press q to quit, refreshes every 2s")
	return b
}

func errorsStyle(n int) lipgloss.Style {
	if n > 0 {
		return dashErrStyle
	}
	return dashDimStyle
}
