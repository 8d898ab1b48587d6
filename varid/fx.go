package varid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFX is returned for an FX id outside the profile's effect list.
var ErrInvalidFX = errors.New("varid: invalid fx id")

// FXID identifies one effect of one eye. Ids are stable and index Profile.FXList.
type FXID int

const (
	FXLeftBlur FXID = iota
	FXLeftContrast
	FXLeftInpaint
	FXLeftWarp
	FXRightBlur
	FXRightContrast
	FXRightInpaint
	FXRightWarp

	// NumFX is the number of effects in a profile.
	NumFX
)

var fxNames = [NumFX]string{
	"LeftEye.Blur",
	"LeftEye.Contrast",
	"LeftEye.Inpaint",
	"LeftEye.Warp",
	"RightEye.Blur",
	"RightEye.Contrast",
	"RightEye.Inpaint",
	"RightEye.Warp",
}

// Valid reports whether id names an effect.
func (id FXID) Valid() bool {
	return id >= 0 && id < NumFX
}

// String returns the effect name, e.g. "LeftEye.Blur".
func (id FXID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("FXID(%d)", int(id))
	}
	return fxNames[id]
}

// FX is the switchable part of an effect.
type FX struct {
	ID      FXID
	Name    string
	Enabled bool
}

func newFX(id FXID) FX {
	return FX{ID: id, Name: id.String(), Enabled: true}
}

// ParseFXID accepts an id ("3") or a case-insensitive name ("lefteye.warp").
//
// Parameters:
//   - s: the id or name
//
// Returns:
//   - FXID: the effect id
//   - error: ErrInvalidFX if s names no effect
func ParseFXID(s string) (FXID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if id := FXID(n); id.Valid() {
			return id, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrInvalidFX, n)
	}
	for id, name := range fxNames {
		if strings.EqualFold(name, s) {
			return FXID(id), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFX, s)
}

// Points returns the number of visual field points behind an effect of the profile.
// Contrast counts the points of every frequency band.
//
// Parameters:
//   - id: the effect id
//
// Returns:
//   - int: the point count, 0 for an invalid id
func (p *Profile) Points(id FXID) int {
	if !id.Valid() {
		return 0
	}
	eye := &p.LeftEye
	if id >= FXRightBlur {
		eye = &p.RightEye
	}
	switch id {
	case FXLeftBlur, FXRightBlur:
		return len(eye.Blur.VFMap.Data)
	case FXLeftInpaint, FXRightInpaint:
		return len(eye.Inpaint.VFMap.Data)
	case FXLeftWarp, FXRightWarp:
		return len(eye.Warp.VFMap.Data)
	}
	n := 0
	for _, m := range eye.Contrast.VFMaps {
		n += len(m.Data)
	}
	return n
}
