package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/spf13/cobra"
)

// parseSize parses "WIDTHxHEIGHT".
func parseSize(s string) (common.IntPoint, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return common.IntPoint{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	x, errX := strconv.Atoi(w)
	y, errY := strconv.Atoi(h)
	if errX != nil || errY != nil || x <= 0 || y <= 0 {
		return common.IntPoint{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	return common.IntPoint{X: x, Y: y}, nil
}

func newPlanCommand(a *app) *cobra.Command {
	flags := &fxFlags{}
	var (
		size    string
		mono    bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the render passes of the active profile",
		Long: `Run one frame of the VARID pass chain against virtual resources and print the
passes recorded for each view. Every shader is compiled and every binding is
validated; no GPU is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Profile == "" {
				return errNoProfile
			}
			extent, err := parseSize(size)
			if err != nil {
				return err
			}
			if mono {
				a.cfg.Stereo = false
			}

			ctx := cmd.Context()
			p, err := newPlanner(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer p.Close(ctx)
			if err := flags.apply(p.Module()); err != nil {
				return err
			}

			sub, res, err := p.Plan(ctx, extent)
			if err != nil {
				return err
			}
			writePlan(cmd.OutOrStdout(), sub, res, verbose)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "1280x720", "Frame size as WIDTHxHEIGHT")
	cmd.Flags().BoolVar(&mono, "mono", false, "Render a single mono view")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print bindings and workgroup counts")
	flags.register(cmd)
	return cmd
}

// writePlan prints the passes of each view.
func writePlan(w io.Writer, sub frame_graph.Submission, res frame_graph.Result, verbose bool) {
	fmt.Fprintln(w, title("frame %d: %d passes, %d dropped", res.Frame, res.Passes, res.Dropped))
	lists := nonEmptyLists(sub)
	if len(lists) == 0 {
		fmt.Fprintln(w, dimStyle.Render("every view passed through"))
		return
	}
	for _, l := range lists {
		fmt.Fprintf(w, "%s\n%s\n", divider(40), l)
		for i, c := range l.Commands {
			fmt.Fprintf(w, "  %3d  %-8s %s\n", i, c.Kind, c.Name)
			if verbose {
				fmt.Fprintf(w, "       %s\n", dimStyle.Render(describeCommand(c)))
			}
		}
	}
}

// describeCommand summarises the shader, bindings and work size of a command.
func describeCommand(c pass.Command) string {
	var b strings.Builder
	if c.Kind == pass.KindCompute {
		fmt.Fprintf(&b, "%s groups=%v", c.Shader, c.Dispatch)
	} else {
		fmt.Fprintf(&b, "%s+%s vertices=%d", c.VertexShader, c.Shader, c.Draw.VertexCount)
	}
	if len(c.Permutation) > 0 {
		fmt.Fprintf(&b, " perm=%v", c.Permutation)
	}
	for _, in := range c.Inputs {
		fmt.Fprintf(&b, " in:%s", bindingLabel(in))
	}
	for _, out := range c.Outputs {
		fmt.Fprintf(&b, " out:%s", bindingLabel(out))
	}
	return b.String()
}

func bindingLabel(b pass.Binding) string {
	label := b.Name
	if b.Handle != nil {
		label += "=" + b.Handle.Descriptor().Label
	}
	if b.Mip != pass.AllMips {
		label += "@" + strconv.Itoa(b.Mip)
	}
	return label
}
