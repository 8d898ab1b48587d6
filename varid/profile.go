package varid

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
)

// NumContrastLevels is the number of spatial frequency bands a contrast effect describes.
// Level 0 is the highest frequency so that levels line up with mip levels.
const NumContrastLevels = 10

// VFMapPoint is one visual field measurement as read from a profile together with its
// normalised form. Norm values are inverted so that 0 is unimpaired vision.
type VFMapPoint struct {
	RawX     float32
	RawY     float32
	RawValue float32
	Min      float32
	Max      float32

	NormX     float32
	NormY     float32
	NormValue float32
}

// VFMap is a visual field map: either a single full-field value or a set of points.
type VFMap struct {
	ExpectedNumDataPoints int
	FullField             bool
	Data                  []VFMapPoint
}

func (m VFMap) clone() VFMap {
	m.Data = append([]VFMapPoint(nil), m.Data...)
	return m
}

// Effect is an effect driven by one visual field map.
type Effect struct {
	FX
	VFMap VFMap
}

// ContrastEffect is the contrast effect, one visual field map per frequency band.
type ContrastEffect struct {
	FX
	VFMaps [NumContrastLevels]VFMap
}

// Eye holds the effects of one eye.
type Eye struct {
	Blur     Effect
	Contrast ContrastEffect
	Inpaint  Effect
	Warp     Effect
}

func (e Eye) clone() Eye {
	e.Blur.VFMap = e.Blur.VFMap.clone()
	e.Inpaint.VFMap = e.Inpaint.VFMap.clone()
	e.Warp.VFMap = e.Warp.VFMap.clone()
	for i := range e.Contrast.VFMaps {
		e.Contrast.VFMaps[i] = e.Contrast.VFMaps[i].clone()
	}
	return e
}

func (e *Eye) setAll(enabled bool) {
	e.Blur.Enabled = enabled
	e.Contrast.Enabled = enabled
	e.Inpaint.Enabled = enabled
	e.Warp.Enabled = enabled
}

// Profile describes the visual impairment simulated for both eyes. Only profiles with
// Valid set are rendered.
type Profile struct {
	Name        string
	Description string
	Author      string
	Date        string
	Valid       bool

	LeftEye  Eye
	RightEye Eye
}

// DefaultProfile returns the placeholder profile active before any profile is loaded.
// It is not valid, so nothing is rendered with it.
//
// Returns:
//   - Profile: the default profile
func DefaultProfile() Profile {
	p := Profile{
		Name:        "UNKNOWN",
		Description: "UNKNOWN",
		Author:      "UNKNOWN",
		Date:        "UNKNOWN",
	}
	p.LeftEye = Eye{
		Blur:     Effect{FX: newFX(FXLeftBlur)},
		Contrast: ContrastEffect{FX: newFX(FXLeftContrast)},
		Inpaint:  Effect{FX: newFX(FXLeftInpaint)},
		Warp:     Effect{FX: newFX(FXLeftWarp)},
	}
	p.RightEye = Eye{
		Blur:     Effect{FX: newFX(FXRightBlur)},
		Contrast: ContrastEffect{FX: newFX(FXRightContrast)},
		Inpaint:  Effect{FX: newFX(FXRightInpaint)},
		Warp:     Effect{FX: newFX(FXRightWarp)},
	}
	return p
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	p.LeftEye = p.LeftEye.clone()
	p.RightEye = p.RightEye.clone()
	return p
}

// Eye returns the eye rendered by a view. Mono views use the left eye.
func (p *Profile) Eye(stereo pass.StereoPass) *Eye {
	if stereo == pass.StereoRight {
		return &p.RightEye
	}
	return &p.LeftEye
}

// EnableAllFX turns on every effect of both eyes.
func (p *Profile) EnableAllFX() {
	p.LeftEye.setAll(true)
	p.RightEye.setAll(true)
}

// DisableAllFX turns off every effect of both eyes.
func (p *Profile) DisableAllFX() {
	p.LeftEye.setAll(false)
	p.RightEye.setAll(false)
}

// FXList returns pointers to every effect switch, indexed by FXID.
func (p *Profile) FXList() []*FX {
	return []*FX{
		&p.LeftEye.Blur.FX,
		&p.LeftEye.Contrast.FX,
		&p.LeftEye.Inpaint.FX,
		&p.LeftEye.Warp.FX,
		&p.RightEye.Blur.FX,
		&p.RightEye.Contrast.FX,
		&p.RightEye.Inpaint.FX,
		&p.RightEye.Warp.FX,
	}
}

// FX returns the effect switch with the given id.
//
// Parameters:
//   - id: the effect id
//
// Returns:
//   - *FX: the switch, owned by the profile
//   - error: ErrInvalidFX if id is out of range
func (p *Profile) FX(id FXID) (*FX, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFX, int(id))
	}
	return p.FXList()[id], nil
}

// ToggleFX flips one effect on or off.
//
// Parameters:
//   - id: the effect id
//
// Returns:
//   - error: ErrInvalidFX if id is out of range
func (p *Profile) ToggleFX(id FXID) error {
	fx, err := p.FX(id)
	if err != nil {
		return err
	}
	fx.Enabled = !fx.Enabled
	return nil
}
