package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accent = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var phaseStyles = map[domain.Phase]lipgloss.Style{
	domain.PhaseStarting: lipgloss.NewStyle().Foreground(yellow),
	domain.PhaseRunning:  lipgloss.NewStyle().Foreground(green),
	domain.PhaseError:    lipgloss.NewStyle().Foreground(red),
	domain.PhaseStopped:  lipgloss.NewStyle().Foreground(dim),
}

// Phase renders a phase in its status colour.
func Phase(p domain.Phase) string {
	if style, ok := phaseStyles[p]; ok {
		return style.Render(string(p))
	}
	return string(p)
}

// Table renders rows under headers with rounded borders.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// MachinesTable renders machine descriptors as reported by the machine service.
func MachinesTable(machines []domain.MachineDescriptor) string {
	rows := make([][]string, len(machines))
	for i, m := range machines {
		rows[i] = []string{m.ID.String(), m.Name, Phase(m.Status), m.Recipe, strings.Join(m.Projects, ",")}
	}
	return Table([]string{"ID", "NAME", "STATUS", "RECIPE", "PROJECTS"}, rows)
}

// SessionsTable renders a workspace's persisted sessions. The current machine is starred.
func SessionsTable(sessions []domain.MachineSession) string {
	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		marker := ""
		if s.IsCurrent {
			marker = "*"
		}
		rows[i] = []string{marker, s.ID.String(), Phase(s.Phase), s.OutputChannel}
	}
	return Table([]string{"", "ID", "PHASE", "OUTPUT"}, rows)
}

// Summary is a one-line count suffix, e.g. "2 machines".
func Summary(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
