package varid

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointMap(n int) VFMap {
	m := VFMap{ExpectedNumDataPoints: n}
	for i := range n {
		m.Data = append(m.Data, VFMapPoint{NormX: 0.5, NormY: 0.25, NormValue: float32(i) / float32(n)})
	}
	return m
}

func TestBuildMapPoints_Disabled(t *testing.T) {
	points, origin := BuildMapPoints(false, pointMap(4), common.Vec2{}, pass.StereoFull, 0.5)
	assert.Nil(t, points)
	assert.Equal(t, float32(0.5), origin)
}

func TestBuildMapPoints_FullField(t *testing.T) {
	m := VFMap{FullField: true, Data: []VFMapPoint{{NormValue: 0.7}}}
	points, origin := BuildMapPoints(true, m, common.Vec2{X: 0.1}, pass.StereoLeft, 0)
	assert.Nil(t, points)
	assert.Equal(t, float32(0.7), origin)
}

func TestBuildMapPoints_Placement(t *testing.T) {
	gaze := common.Vec2{X: 0.1, Y: -0.05}
	tests := []struct {
		stereo pass.StereoPass
		wantX  float32
	}{
		{pass.StereoFull, 0.6},
		{pass.StereoLeft, 0.3},
		{pass.StereoRight, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.stereo.String(), func(t *testing.T) {
			points, origin := BuildMapPoints(true, pointMap(2), gaze, tt.stereo, 0.5)
			require.Len(t, points, 2)
			assert.Equal(t, float32(0.5), origin)
			assert.InDelta(t, tt.wantX, points[0].X, 1e-6)
			assert.InDelta(t, 0.2, points[0].Y, 1e-6)
			assert.Equal(t, float32(0.5), points[1].Value)
			assert.Equal(t, float32(1), points[1].Padding)
		})
	}
}

func TestBuildMapPoints_Truncates(t *testing.T) {
	points, _ := BuildMapPoints(true, pointMap(MaxMapPoints+10), common.Vec2{}, pass.StereoFull, 0)
	assert.Len(t, points, MaxMapPoints)

	points, _ = BuildMapPoints(true, VFMap{}, common.Vec2{}, pass.StereoFull, 0)
	assert.Empty(t, points)
}
