package main

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-varid/varid"
	"github.com/spf13/cobra"
)

var errNoProfile = errors.New("no profile set, use --profile or VARID_PROFILE")

// fxFlags selects the effects switched on before a command runs.
type fxFlags struct {
	toggle     []string
	enableAll  bool
	disableAll bool
}

func (f *fxFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.toggle, "toggle", nil, "FX ids or names to toggle, e.g. 0,RightEye.Warp")
	cmd.Flags().BoolVar(&f.enableAll, "enable-all", false, "Enable every FX before toggling")
	cmd.Flags().BoolVar(&f.disableAll, "disable-all", false, "Disable every FX before toggling")
	cmd.MarkFlagsMutuallyExclusive("enable-all", "disable-all")
}

// apply switches the module's active profile effects.
func (f *fxFlags) apply(mod varid.Module) error {
	switch {
	case f.enableAll:
		mod.EnableAllFX()
	case f.disableAll:
		mod.DisableAllFX()
	}
	for _, s := range f.toggle {
		id, err := varid.ParseFXID(s)
		if err != nil {
			return err
		}
		if err := mod.ToggleFX(id); err != nil {
			return err
		}
	}
	return nil
}

func newFXCommand(a *app) *cobra.Command {
	flags := &fxFlags{}

	cmd := &cobra.Command{
		Use:   "fx",
		Short: "List the FX of the active profile",
		Long: `List the eight effect switches of the active profile:

  0 LeftEye.Blur    1 LeftEye.Contrast    2 LeftEye.Inpaint    3 LeftEye.Warp
  4 RightEye.Blur   5 RightEye.Contrast   6 RightEye.Inpaint   7 RightEye.Warp

Switches given with --toggle, --enable-all or --disable-all are applied first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Profile == "" {
				return errNoProfile
			}
			mod := newModule(a.cfg)
			path, err := resolveProfile(mod, a.cfg.Profile)
			if err != nil {
				return err
			}
			p, err := mod.LoadProfile(path)
			if err != nil {
				return err
			}
			if err := mod.SetActiveProfile(p); err != nil {
				return err
			}
			if err := flags.apply(mod); err != nil {
				return err
			}

			active := mod.ActiveProfile()
			fmt.Fprintln(cmd.OutOrStdout(), title("%s", active.Name))
			fmt.Fprintln(cmd.OutOrStdout(), fxTable(&active))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
