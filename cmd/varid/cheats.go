package main

import (
	"log"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/camera"
	"github.com/Carmen-Shannon/oxy-varid/varid"
)

// profileCycler steps through a profile listing, skipping files that fail to load.
type profileCycler struct {
	mod   varid.Module
	paths []string
	next  int
}

// Next activates the next loadable profile and returns its path. It returns false when no
// profile in the listing loads.
func (c *profileCycler) Next() (string, bool) {
	for range c.paths {
		path := c.paths[c.next]
		c.next = (c.next + 1) % len(c.paths)

		p, err := c.mod.LoadProfile(path)
		if err == nil {
			err = c.mod.SetActiveProfile(p)
		}
		if err != nil {
			log.Printf("[VARID] skipping profile %s: %v", path, err)
			continue
		}
		log.Printf("[VARID] active profile %q (%s)", p.Name, path)
		return path, true
	}
	return "", false
}

// cheatBindings maps the demo keys onto the VARID cheat commands:
//
//	B begin rendering     N end rendering
//	E enable all FX       D disable all FX
//	1-8 toggle one FX     P next profile
//	R centre the gaze
func cheatBindings(mod varid.Module, gaze camera.GazeController, profiles *profileCycler) map[uint32]func() {
	bindings := map[uint32]func(){
		common.KeyB: func() {
			mod.BeginRendering()
			log.Printf("[VARID] rendering begun")
		},
		common.KeyN: func() {
			mod.EndRendering()
			log.Printf("[VARID] rendering ended")
		},
		common.KeyE: mod.EnableAllFX,
		common.KeyD: mod.DisableAllFX,
		common.KeyR: func() {
			gaze.Reset()
			mod.SetEyeTracking(varid.EyeTracking{})
		},
	}
	if profiles != nil && len(profiles.paths) > 0 {
		bindings[common.KeyP] = func() { profiles.Next() }
	}

	for code := uint32(common.Key1); code <= common.Key8; code++ {
		id, _ := common.FXForKey(code)
		fxID := varid.FXID(id)
		bindings[code] = func() {
			if err := mod.ToggleFX(fxID); err != nil {
				log.Printf("[VARID] toggle %s: %v", fxID, err)
				return
			}
			fx, _ := mod.FX(fxID)
			log.Printf("[VARID] %s %v", fx.Name, fx.Enabled)
		}
	}
	return bindings
}

// followGaze returns a tick callback feeding the controller's gaze to the module.
func followGaze(mod varid.Module, gaze camera.GazeController) func(dt float32) {
	return func(dt float32) {
		if !gaze.Update(dt) {
			return
		}
		left, right := gaze.Gaze()
		mod.SetEyeTracking(varid.EyeTracking{LeftEyeGazePoint: left, RightEyeGazePoint: right})
	}
}
