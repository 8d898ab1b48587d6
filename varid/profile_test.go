package varid

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.False(t, p.Valid)
	assert.Equal(t, "UNKNOWN", p.Name)
	assert.Equal(t, "UNKNOWN", p.Author)

	list := p.FXList()
	require.Len(t, list, int(NumFX))
	for i, fx := range list {
		assert.Equal(t, FXID(i), fx.ID)
		assert.Equal(t, FXID(i).String(), fx.Name)
		assert.True(t, fx.Enabled)
	}
	assert.Equal(t, "RightEye.Warp", FXRightWarp.String())
	assert.Equal(t, "FXID(8)", NumFX.String())
}

func TestProfile_ToggleFX(t *testing.T) {
	p := DefaultProfile()

	require.NoError(t, p.ToggleFX(FXLeftContrast))
	assert.False(t, p.LeftEye.Contrast.Enabled)
	assert.True(t, p.RightEye.Contrast.Enabled)
	require.NoError(t, p.ToggleFX(FXLeftContrast))
	assert.True(t, p.LeftEye.Contrast.Enabled)

	assert.ErrorIs(t, p.ToggleFX(NumFX), ErrInvalidFX)
	assert.ErrorIs(t, p.ToggleFX(-1), ErrInvalidFX)
	_, err := p.FX(42)
	assert.ErrorIs(t, err, ErrInvalidFX)

	fx, err := p.FX(FXRightInpaint)
	require.NoError(t, err)
	fx.Enabled = false
	assert.False(t, p.RightEye.Inpaint.Enabled, "FX returns the profile's own switch")

	p.DisableAllFX()
	for _, fx := range p.FXList() {
		assert.False(t, fx.Enabled, fx.Name)
	}
	p.EnableAllFX()
	for _, fx := range p.FXList() {
		assert.True(t, fx.Enabled, fx.Name)
	}
}

func TestProfile_CloneIsDeep(t *testing.T) {
	p := DefaultProfile()
	p.LeftEye.Blur.VFMap.Data = []VFMapPoint{{NormValue: 0.5}}
	p.RightEye.Contrast.VFMaps[3].Data = []VFMapPoint{{NormValue: 0.25}}

	c := p.Clone()
	c.LeftEye.Blur.VFMap.Data[0].NormValue = 1
	c.RightEye.Contrast.VFMaps[3].Data[0].NormValue = 1
	c.LeftEye.Warp.Enabled = false

	assert.Equal(t, float32(0.5), p.LeftEye.Blur.VFMap.Data[0].NormValue)
	assert.Equal(t, float32(0.25), p.RightEye.Contrast.VFMaps[3].Data[0].NormValue)
	assert.True(t, p.LeftEye.Warp.Enabled)
}

func TestProfile_EyeForStereoPass(t *testing.T) {
	p := DefaultProfile()
	assert.Same(t, &p.LeftEye, p.Eye(pass.StereoFull))
	assert.Same(t, &p.LeftEye, p.Eye(pass.StereoLeft))
	assert.Same(t, &p.RightEye, p.Eye(pass.StereoRight))
}

func TestParseFXID(t *testing.T) {
	tests := []struct {
		in   string
		want FXID
		err  bool
	}{
		{in: "0", want: FXLeftBlur},
		{in: "7", want: FXRightWarp},
		{in: " 3 ", want: FXLeftWarp},
		{in: "RightEye.Contrast", want: FXRightContrast},
		{in: "lefteye.inpaint", want: FXLeftInpaint},
		{in: "8", err: true},
		{in: "-1", err: true},
		{in: "LeftEye", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFXID(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidFX)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfile_Points(t *testing.T) {
	p := DefaultProfile()
	p.LeftEye.Blur.VFMap.Data = make([]VFMapPoint, 3)
	p.RightEye.Warp.VFMap.Data = make([]VFMapPoint, 2)
	p.RightEye.Contrast.VFMaps[0].Data = make([]VFMapPoint, 1)
	p.RightEye.Contrast.VFMaps[9].Data = make([]VFMapPoint, 4)

	assert.Equal(t, 3, p.Points(FXLeftBlur))
	assert.Equal(t, 0, p.Points(FXLeftContrast))
	assert.Equal(t, 2, p.Points(FXRightWarp))
	assert.Equal(t, 5, p.Points(FXRightContrast))
	assert.Equal(t, 0, p.Points(NumFX))
}
