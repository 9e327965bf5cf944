package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/moolen/groundwork/internal/host"
	"github.com/spf13/cobra"
)

var planJSON bool

var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorMuted   = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	groupStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	memberStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			PaddingLeft(4)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the lifecycle order and middleware pipeline",
	Long: `Print the order in which lifecycle groups would be started and stopped,
and the middleware phases of the HTTP pipeline. No lifecycle method is invoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h, err := host.New(cfg)
		if err != nil {
			return err
		}
		plan, err := h.Plan(context.Background())
		if err != nil {
			return err
		}
		if planJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		}
		return renderPlan(cmd.OutOrStdout(), plan)
	},
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func renderPlan(w io.Writer, plan host.Plan) error {
	mode := "sequential"
	if plan.Lifecycle.Parallel {
		mode = "parallel"
	}

	var start strings.Builder
	start.WriteString(titleStyle.Render(fmt.Sprintf("Start order (%s)", mode)))
	for i, g := range plan.Lifecycle.Start {
		name := g.Name
		if name == "" {
			name = "(ungrouped)"
		}
		start.WriteString("\n" + groupStyle.Render(fmt.Sprintf("%d. %s", i+1, name)))
		for _, m := range g.Members {
			start.WriteString("\n" + memberStyle.Render(m))
		}
	}

	var stop strings.Builder
	stop.WriteString(titleStyle.Render("Stop order"))
	for i, g := range plan.Lifecycle.Stop {
		name := g.Name
		if name == "" {
			name = "(ungrouped)"
		}
		stop.WriteString("\n" + groupStyle.Render(fmt.Sprintf("%d. %s", i+1, name)))
	}

	var pipe strings.Builder
	pipe.WriteString(titleStyle.Render("Pipeline (outermost first)"))
	for _, p := range plan.Pipeline {
		pipe.WriteString("\n" + groupStyle.Render(p.Name))
		for _, m := range p.Members {
			line := m.Key
			if m.Path != "" {
				line += " " + m.Path
			}
			pipe.WriteString("\n" + memberStyle.Render(line))
		}
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(start.String()),
		boxStyle.Render(stop.String()),
		boxStyle.Render(pipe.String()),
	))
	return err
}
