package varid

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-varid/common"
)

var (
	// ErrInvalidProfile is returned when a profile file cannot be read or fails validation.
	ErrInvalidProfile = errors.New("varid: invalid profile")
	// ErrInvalidFOV is returned for a display field of view that is zero or negative.
	ErrInvalidFOV = errors.New("varid: invalid display fov")
)

const (
	// fullFieldLen is the data length of a full-field map: value, min, max.
	fullFieldLen = 3
	// pointStride is the data length of one map point: x, y, value, min, max.
	pointStride = 5
	// profileWarnThreshold is the directory size above which ListProfiles warns.
	profileWarnThreshold = 100
)

// contrastLevelKeys are the profile keys of the contrast bands, lowest frequency first.
// Key i is stored at VFMaps[NumContrastLevels-1-i].
var contrastLevelKeys = [NumContrastLevels]string{
	"level_0_lowest_spatial_freq",
	"level_1",
	"level_2",
	"level_3",
	"level_4",
	"level_5",
	"level_6",
	"level_7",
	"level_8",
	"level_9_highest_spatial_freq",
}

type profileFile struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Author      *string  `json:"author"`
	Date        *string  `json:"date"`
	LeftEye     *eyeFile `json:"left_eye"`
	RightEye    *eyeFile `json:"right_eye"`
}

type eyeFile struct {
	Blur     *vfMapFile            `json:"blur"`
	Inpaint  *vfMapFile            `json:"inpaint"`
	Warp     *vfMapFile            `json:"warp"`
	Contrast map[string]*vfMapFile `json:"contrast"`
}

type vfMapFile struct {
	Data                  *[]float32 `json:"data"`
	ExpectedNumDataPoints *int       `json:"expected_num_data_points"`
}

// CheckFOV validates a display field of view in degrees.
//
// Parameters:
//   - fov: the horizontal and vertical field of view
//
// Returns:
//   - error: ErrInvalidFOV unless both axes are positive
func CheckFOV(fov common.Vec2) error {
	if fov.X <= 0 || fov.Y <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFOV, fov)
	}
	return nil
}

// LoadProfile reads and validates a JSON profile. Point positions are normalised against
// the display field of view.
//
// Parameters:
//   - path: the profile file
//   - fov: the display field of view in degrees
//
// Returns:
//   - Profile: the loaded profile, Valid set
//   - error: ErrInvalidFOV, or ErrInvalidProfile describing the first problem found
func LoadProfile(path string, fov common.Vec2) (Profile, error) {
	if path == "" {
		return Profile{}, fmt.Errorf("%w: empty path", ErrInvalidProfile)
	}
	if err := CheckFOV(fov); err != nil {
		return Profile{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	p, err := ParseProfile(raw, fov)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProfile validates a JSON profile held in memory.
//
// Parameters:
//   - raw: the JSON document
//   - fov: the display field of view in degrees
//
// Returns:
//   - Profile: the parsed profile, Valid set
//   - error: ErrInvalidFOV or ErrInvalidProfile
func ParseProfile(raw []byte, fov common.Vec2) (Profile, error) {
	if err := CheckFOV(fov); err != nil {
		return Profile{}, err
	}
	var f profileFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	required := []struct {
		key     string
		present bool
	}{
		{"name", f.Name != nil},
		{"description", f.Description != nil},
		{"author", f.Author != nil},
		{"date", f.Date != nil},
		{"left_eye", f.LeftEye != nil},
		{"right_eye", f.RightEye != nil},
	}
	for _, r := range required {
		if !r.present {
			return Profile{}, fmt.Errorf("%w: missing field %q", ErrInvalidProfile, r.key)
		}
	}

	p := DefaultProfile()
	p.Name, p.Description, p.Author, p.Date = *f.Name, *f.Description, *f.Author, *f.Date
	if err := parseEye(f.LeftEye, "/left_eye", fov, &p.LeftEye); err != nil {
		return Profile{}, err
	}
	if err := parseEye(f.RightEye, "/right_eye", fov, &p.RightEye); err != nil {
		return Profile{}, err
	}
	p.Valid = true
	return p, nil
}

func parseEye(f *eyeFile, path string, fov common.Vec2, eye *Eye) error {
	var err error
	if eye.Blur.VFMap, err = parseVFMap(f.Blur, path+"/blur", fov); err != nil {
		return err
	}
	if eye.Inpaint.VFMap, err = parseVFMap(f.Inpaint, path+"/inpaint", fov); err != nil {
		return err
	}
	for i, key := range contrastLevelKeys {
		m, err := parseVFMap(f.Contrast[key], path+"/contrast/"+key, fov)
		if err != nil {
			return err
		}
		eye.Contrast.VFMaps[NumContrastLevels-1-i] = m
	}
	if eye.Warp.VFMap, err = parseVFMap(f.Warp, path+"/warp", fov); err != nil {
		return err
	}
	return nil
}

// parseVFMap converts one map. A missing map is an empty map.
func parseVFMap(f *vfMapFile, path string, fov common.Vec2) (VFMap, error) {
	var m VFMap
	if f == nil {
		return m, nil
	}
	if f.Data == nil {
		return m, fmt.Errorf("%w: %s has no field \"data\"", ErrInvalidProfile, path)
	}
	data := *f.Data

	if len(data) == fullFieldLen {
		m.FullField = true
		value, err := normalizeValue(data[0], data[1], data[2])
		if err != nil {
			return VFMap{}, fmt.Errorf("%s: %w", path, err)
		}
		m.Data = []VFMapPoint{{RawValue: data[0], Min: data[1], Max: data[2], NormValue: value}}
		return m, nil
	}

	if f.ExpectedNumDataPoints != nil {
		m.ExpectedNumDataPoints = *f.ExpectedNumDataPoints
		if len(data) != m.ExpectedNumDataPoints*pointStride {
			return VFMap{}, fmt.Errorf("%w: %s expects %d points of %d values, has %d values", ErrInvalidProfile, path, m.ExpectedNumDataPoints, pointStride, len(data))
		}
	} else {
		m.ExpectedNumDataPoints = len(data) / pointStride
	}
	if len(data)%pointStride != 0 {
		return VFMap{}, fmt.Errorf("%w: %s data is not a list of %d-tuples", ErrInvalidProfile, path, pointStride)
	}

	m.Data = make([]VFMapPoint, 0, len(data)/pointStride)
	for i := 0; i < len(data); i += pointStride {
		x, y, v, lo, hi := data[i], data[i+1], data[i+2], data[i+3], data[i+4]
		value, err := normalizeValue(v, lo, hi)
		if err != nil {
			return VFMap{}, fmt.Errorf("%s[%d]: %w", path, i/pointStride, err)
		}
		m.Data = append(m.Data, VFMapPoint{
			RawX: x, RawY: y, RawValue: v, Min: lo, Max: hi,
			NormX:     (x/(fov.X/2))/2 + 0.5,
			NormY:     (y/(fov.Y/2))/2 + 0.5,
			NormValue: value,
		})
	}
	return m, nil
}

// normalizeValue maps a profile value into the renderer's range: 0 is unimpaired, 1 is
// fully impaired, and symmetric ranges are centred on 0.
func normalizeValue(value, lo, hi float32) (float32, error) {
	switch {
	case lo == 0 && hi == 0:
		return 0, fmt.Errorf("%w: min and max are both zero", ErrInvalidProfile)
	case hi <= lo:
		return 0, fmt.Errorf("%w: max %g is not above min %g", ErrInvalidProfile, hi, lo)
	case value < lo:
		return 0, fmt.Errorf("%w: value %g below min %g", ErrInvalidProfile, value, lo)
	case value > hi:
		return 0, fmt.Errorf("%w: value %g above max %g", ErrInvalidProfile, value, hi)
	case lo < 0 && float32(math.Abs(float64(lo))) != hi:
		return 0, fmt.Errorf("%w: negative min %g must mirror max %g", ErrInvalidProfile, lo, hi)
	}

	n := 1 - (value-lo)/(hi-lo)
	if lo < 0 && hi > 0 {
		n -= 0.5
	}
	return n, nil
}

// ListProfiles returns the profile files in a directory, sorted.
//
// Parameters:
//   - root: the directory to search
//   - ext: the file extension, with or without a leading dot; "" means ".json"
//
// Returns:
//   - []string: the full paths of the matching files
//   - error: if root does not exist or is not a directory
func ListProfiles(root, ext string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("varid: profile directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("varid: profile directory %s is not a directory", root)
	}

	switch {
	case ext == "":
		ext = ".json"
	case !strings.HasPrefix(ext, "."):
		ext = "." + ext
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("varid: profile directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ext) {
			files = append(files, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) > profileWarnThreshold {
		log.Printf("[VARID] %s holds %d profiles (more than %d), consider splitting it into directories", root, len(files), profileWarnThreshold)
	}
	return files, nil
}
