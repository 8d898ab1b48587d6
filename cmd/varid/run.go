package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/config"
	"github.com/Carmen-Shannon/oxy-varid/engine"
	"github.com/Carmen-Shannon/oxy-varid/engine/camera"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/profiler"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-varid/engine/window"
	"github.com/Carmen-Shannon/oxy-varid/varid"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// runFlags holds command-line flags for the run command
type runFlags struct {
	headless    bool
	frames      uint64
	cpuProfile  string
	memProfile  string
	testPattern bool
	fx          fxFlags
}

func newRunCommand(a *app) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the VARID extension on the WebGPU host",
		Long: `Open a window and render the active profile over a test pattern.

Keys:
  B / N        begin / end rendering
  E / D        enable / disable all FX
  1-8          toggle one FX
  P            next profile in <content_dir>/Profiles
  arrows       move the gaze, R centres it
  Esc          quit

Without a display, or with --headless, frames are rendered off screen until
--frames is reached or the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), a.cfg, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "Render without a window")
	cmd.Flags().Uint64Var(&flags.frames, "frames", 0, "Stop after this many frames (0 = until closed)")
	cmd.Flags().StringVar(&flags.cpuProfile, "cpuprofile", "", "Write a CPU profile into this directory")
	cmd.Flags().StringVar(&flags.memProfile, "memprofile", "", "Write a heap profile into this directory")
	cmd.Flags().BoolVar(&flags.testPattern, "test-pattern", true, "Fill the scene colour with an animated test pattern")
	cmd.MarkFlagsMutuallyExclusive("cpuprofile", "memprofile")
	flags.fx.register(cmd)
	return cmd
}

// startProfiling starts the requested pkg/profile profile. The returned function stops it.
func startProfiling(flags *runFlags) func() {
	switch {
	case flags.cpuProfile != "":
		return profile.Start(profile.CPUProfile, profile.ProfilePath(flags.cpuProfile), profile.NoShutdownHook).Stop
	case flags.memProfile != "":
		return profile.Start(profile.MemProfile, profile.ProfilePath(flags.memProfile), profile.NoShutdownHook).Stop
	}
	return func() {}
}

// openWindow creates the host window, or returns nil when running headless or when no
// display is available.
func openWindow(cfg *config.Config, headless bool) window.Window {
	if headless {
		return nil
	}
	win, err := window.NewWindow(
		window.WithTitle("VARID"),
		window.WithSize(cfg.Width, cfg.Height),
	)
	if err != nil {
		log.Printf("[VARID] no window, running headless: %v", err)
		return nil
	}
	return win
}

func runHost(ctx context.Context, cfg *config.Config, flags *runFlags) error {
	defer startProfiling(flags)()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	win := openWindow(cfg, flags.headless)
	mode, _ := renderer.ParsePresentMode(cfg.PresentMode)
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(mode),
		renderer.WithForceSoftwareRenderer(cfg.ForceSoftwareGPU),
		renderer.WithPipelineCacheSize(cfg.PipelineCache),
		renderer.WithPoolOptions(cfg.PoolOptions()...),
		renderer.WithHeadlessSize(cfg.Width, cfg.Height),
	)
	if err != nil {
		if win != nil {
			win.Close()
		}
		return err
	}
	defer r.Release()

	hooks := hook.NewTable()
	mod := varid.NewModule(r.Shaders(), hooks, moduleOptions(cfg)...)
	graph := frame_graph.NewFrameGraph(hooks, r.Pool(),
		frame_graph.WithWorkers(cfg.Workers),
		frame_graph.WithRecorder(r.Recorder()),
		frame_graph.WithShaderLibrary(r.Shaders()),
		frame_graph.WithExtension(mod),
	)
	if flags.testPattern {
		if _, err := hooks.Install(hook.PointPostBasePass, renderer.TestPattern(time.Now()), 0, hook.WithName("TestPattern")); err != nil {
			return err
		}
	}

	if err := mod.Load(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mod.Unload(context.Background()); err != nil {
			log.Printf("[VARID] unload: %v", err)
		}
	}()

	cycler := &profileCycler{mod: mod}
	if paths, err := mod.ListProfiles("", ""); err == nil {
		cycler.paths = paths
	}
	if cfg.Profile != "" {
		path, err := resolveProfile(mod, cfg.Profile)
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
	} else if _, ok := cycler.Next(); !ok {
		log.Printf("[VARID] no profile loaded, every view passes through")
	}
	if err := flags.fx.apply(mod); err != nil {
		return err
	}
	mod.BeginRendering()

	gaze := camera.NewGazeController()
	e := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithFrameGraph(graph),
		engine.WithCamera(cameraFor(cfg)),
		engine.WithProfiler(profiler.NewProfiler(profiler.WithPool(r.Pool()))),
		engine.WithProfiling(true),
		engine.WithRenderFrameLimit(cfg.FrameLimit),
		engine.WithMaxFrames(flags.frames),
	)
	for code, action := range cheatBindings(mod, gaze, cycler) {
		e.BindKey(code, action)
	}
	e.SetKeyCallbacks(func(code uint32) { gaze.KeyDown(code) }, gaze.KeyUp)
	e.SetTickCallback(followGaze(mod, gaze))

	go func() {
		<-ctx.Done()
		e.Quit()
	}()
	e.Run()

	stats := graph.Stats()
	fmt.Printf("%s\n%d frames, %d passes, %d dropped, %d cancelled, %d submit errors\n",
		title("VARID stopped"), stats.Frames, stats.Passes, stats.Dropped, stats.Cancelled, stats.SubmitErrors)
	if stats.SubmitErrors > 0 {
		return errors.New("some frames failed to submit")
	}
	return nil
}
