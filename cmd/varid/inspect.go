package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/varid"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newInspectCommand(a *app) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Interactively toggle FX and watch the pass chain change",
		Long: `Open a terminal UI listing the FX of the active profile. Every change re-plans
one frame against virtual resources and shows the passes recorded per view.

Keys: up/down select, space toggles, e/d enable/disable all, b begins or ends
rendering, m switches mono/stereo, p cycles profiles, q quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extent, err := parseSize(size)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := newPlanner(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			m := newInspectModel(ctx, p, extent)
			if paths, err := p.Module().ListProfiles("", ""); err == nil {
				m.profiles = &profileCycler{mod: p.Module(), paths: paths}
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&size, "size", "1280x720", "Frame size as WIDTHxHEIGHT")
	return cmd
}

// planMsg carries the result of re-planning a frame.
type planMsg struct {
	sub frame_graph.Submission
	res frame_graph.Result
	err error
}

// inspectModel is the bubbletea model of the inspect command.
type inspectModel struct {
	ctx      context.Context
	planner  *planner
	profiles *profileCycler
	size     common.IntPoint

	cursor int
	width  int
	plan   planMsg
}

func newInspectModel(ctx context.Context, p *planner, size common.IntPoint) inspectModel {
	return inspectModel{ctx: ctx, planner: p, size: size, width: 80}
}

func (m inspectModel) Init() tea.Cmd {
	return m.planCmd()
}

func (m inspectModel) planCmd() tea.Cmd {
	return func() tea.Msg {
		sub, res, err := m.planner.Plan(m.ctx, m.size)
		return planMsg{sub: sub, res: res, err: err}
	}
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	mod := m.planner.Module()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case planMsg:
		m.plan = msg
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < int(varid.NumFX)-1 {
				m.cursor++
			}
			return m, nil
		case " ", "enter":
			_ = mod.ToggleFX(varid.FXID(m.cursor))
		case "e":
			mod.EnableAllFX()
		case "d":
			mod.DisableAllFX()
		case "b":
			if mod.IsRendering() {
				mod.EndRendering()
			} else {
				mod.BeginRendering()
			}
		case "m":
			m.planner.camera.ToggleStereo()
		case "p":
			if m.profiles != nil {
				m.profiles.Next()
			}
		default:
			return m, nil
		}
		return m, m.planCmd()
	}
	return m, nil
}

func (m inspectModel) View() string {
	mod := m.planner.Module()
	profile := mod.ActiveProfile()

	state := offStyle.Render("stopped")
	if mod.IsRendering() {
		state = onStyle.Render("rendering")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title("VARID  %s", profile.Name),
		"  ", state,
		"  ", dimStyle.Render(fmt.Sprintf("%dx%d %s", m.size.X, m.size.Y, m.planner.camera.Mode())),
	)

	var rows []string
	for _, fx := range mod.FXList() {
		line := fmt.Sprintf(" %d  %-18s %s  %3d points", fx.ID, fx.Name, onOff(fx.Enabled), profile.Points(fx.ID))
		if int(fx.ID) == m.cursor {
			line = selectedStyle.Render(line)
		}
		rows = append(rows, line)
	}

	footer := dimStyle.Render("space toggle · e/d all · b render · m mono/stereo · p profile · q quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		divider(m.width),
		lipgloss.JoinVertical(lipgloss.Left, rows...),
		divider(m.width),
		m.renderPlan(),
		divider(m.width),
		footer,
	)
}

// renderPlan lists the pass count and the distinct pass groups of each view.
func (m inspectModel) renderPlan() string {
	if m.plan.err != nil {
		return offStyle.Render(m.plan.err.Error())
	}
	lists := nonEmptyLists(m.plan.sub)
	if len(lists) == 0 {
		return dimStyle.Render(fmt.Sprintf("frame %d: every view passed through", m.plan.res.Frame))
	}
	lines := []string{fmt.Sprintf("frame %d: %d passes, %d dropped", m.plan.res.Frame, m.plan.res.Passes, m.plan.res.Dropped)}
	for _, l := range lists {
		lines = append(lines, fmt.Sprintf("  view %d %-5s %3d  %s", l.View.Index, l.View.Stereo, l.Len(), strings.Join(passGroups(l.Names()), " → ")))
	}
	return strings.Join(lines, "\n")
}

// passGroups collapses pass names to their stage, keeping first-seen order:
// "VARID.GaussianBlur[3]" and "VARID.GaussianBlur[4]" both become "GaussianBlur".
func passGroups(names []string) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, name := range names {
		group, _, _ := strings.Cut(name[strings.LastIndex(name, ".")+1:], "[")
		if !seen[group] {
			seen[group] = true
			groups = append(groups, group)
		}
	}
	return groups
}

var _ tea.Model = inspectModel{}
