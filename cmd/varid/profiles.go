package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/Carmen-Shannon/oxy-varid/config"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/varid"
	"github.com/spf13/cobra"
)

// newModule creates an unloaded module for profile operations that need no shaders.
func newModule(cfg *config.Config) varid.Module {
	return varid.NewModule(shader.NewLibrary(shader.NewSourceRegistry()), hook.NewTable(), moduleOptions(cfg)...)
}

func newProfilesCommand(a *app) *cobra.Command {
	var ext string

	cmd := &cobra.Command{
		Use:   "profiles [dir]",
		Short: "List VARID profiles",
		Long: `List the profile files in a directory, <content_dir>/Profiles by default.

Every file is loaded with the configured display FOV; invalid profiles are
listed with the reason they were rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			mod := newModule(a.cfg)
			paths, err := mod.ListProfiles(root, ext)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no profiles found"))
				return nil
			}
			rows := make([][]string, 0, len(paths))
			for i, path := range paths {
				p, err := mod.LoadProfile(path)
				if err != nil {
					rows = append(rows, []string{strconv.Itoa(i), offStyle.Render("invalid"), "", filepath.Base(path), err.Error()})
					continue
				}
				rows = append(rows, []string{strconv.Itoa(i), p.Name, p.Author, filepath.Base(path), p.Description})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "NAME", "AUTHOR", "FILE", "DESCRIPTION"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "Profile file extension (default from config)")

	cmd.AddCommand(newProfileShowCommand(a))
	return cmd
}

func newProfileShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path|index>",
		Short: "Show the effects of one profile",
		Long: `Show a profile's metadata and the visual field points behind each effect.

The argument is a file path or an index into the default profile listing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod := newModule(a.cfg)
			path, err := resolveProfile(mod, args[0])
			if err != nil {
				return err
			}
			p, err := mod.LoadProfile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, title("%s", p.Name))
			fmt.Fprintf(out, "%s\nauthor %s, %s\n%s\n", p.Description, p.Author, p.Date, divider(40))
			fmt.Fprintln(out, fxTable(&p))
			return nil
		},
	}
}

// resolveProfile turns an index into the default listing into a path. Anything that is not
// an index is returned unchanged.
func resolveProfile(mod varid.Module, arg string) (string, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	paths, err := mod.ListProfiles("", "")
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(paths) {
		return "", fmt.Errorf("profile index %d out of range, %d profiles found", i, len(paths))
	}
	return paths[i], nil
}

// fxTable renders every effect switch of a profile.
func fxTable(p *varid.Profile) string {
	rows := make([][]string, 0, varid.NumFX)
	for _, fx := range p.FXList() {
		rows = append(rows, []string{strconv.Itoa(int(fx.ID)), fx.Name, onOff(fx.Enabled), strconv.Itoa(p.Points(fx.ID))})
	}
	return renderTable([]string{"ID", "FX", "STATE", "POINTS"}, rows)
}
