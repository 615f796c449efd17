package geo

import (
	"math"
	"testing"

	"github.com/OCAP2/combatsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFromPosition(t *testing.T) {
	pt := PointFromPosition(core.Position{X: 100.5, Y: 200.25})

	coords, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 100.5, coords.X)
	assert.Equal(t, 200.25, coords.Y)
}

func TestPointFromPosition_NonFinite(t *testing.T) {
	for _, pos := range []core.Position{
		{X: math.NaN(), Y: 1},
		{X: 1, Y: math.Inf(1)},
		{X: math.Inf(-1), Y: math.NaN()},
	} {
		pt := PointFromPosition(pos)
		assert.True(t, pt.IsEmpty())
		assert.Equal(t, core.Position{}, PositionFromPoint(pt))
	}
}

func TestPositionFromPoint_RoundTrip(t *testing.T) {
	pos := core.Position{X: -12.5, Y: 640}
	assert.Equal(t, pos, PositionFromPoint(PointFromPosition(pos)))
}

func TestPositionFromPoint_Empty(t *testing.T) {
	assert.Equal(t, core.Position{}, PositionFromPoint(geom.NewEmptyPoint(geom.DimXY)))
}

func TestProjector_OriginMapsToAnchor(t *testing.T) {
	p := NewProjector(13.4, 52.5)

	lon, lat := p.LonLat(core.Position{})
	assert.InDelta(t, 13.4, lon, 1e-6)
	assert.InDelta(t, 52.5, lat, 1e-6)
}

func TestProjector_OffsetsMoveEastAndNorth(t *testing.T) {
	p := NewProjector(0, 0)

	lon0, lat0 := p.LonLat(core.Position{})
	lonE, latE := p.LonLat(core.Position{X: 1000})
	lonN, latN := p.LonLat(core.Position{Y: 1000})

	assert.Greater(t, lonE, lon0)
	assert.InDelta(t, lat0, latE, 1e-9)
	assert.Greater(t, latN, lat0)
	assert.InDelta(t, lon0, lonN, 1e-9)
	// 1 km at the equator is roughly 0.009 degrees
	assert.InDelta(t, 0.009, lonE-lon0, 0.001)
}
