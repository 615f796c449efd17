package geo

import (
	"github.com/OCAP2/combatsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Plane positions are stored as planar XY points with no SRID. The Projector
// places the plane on the globe for exports by treating plane units as metres
// offset from an origin in EPSG:3857.

// PointFromPosition converts a plane position to a 2D point. Non-finite
// positions become empty points.
func PointFromPosition(p core.Position) geom.Point {
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}}, geom.OmitInvalid)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	return pt
}

// PositionFromPoint converts a point back to a plane position. Empty points
// map to the origin.
func PositionFromPoint(p geom.Point) core.Position {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Position{}
	}
	return core.Position{X: coord.XY.X, Y: coord.XY.Y}
}

// Projector maps plane positions to WGS84 longitude and latitude.
type Projector struct {
	originX, originY float64
	toMercator       func(a, b, c float64) (float64, float64, float64)
	toLonLat         func(a, b, c float64) (float64, float64, float64)
}

// NewProjector anchors plane coordinate (0,0) at the given longitude and latitude.
func NewProjector(originLon, originLat float64) *Projector {
	epsg := wgs84.EPSG()
	p := &Projector{
		toMercator: epsg.Transform(4326, 3857),
		toLonLat:   epsg.Transform(3857, 4326),
	}
	p.originX, p.originY, _ = p.toMercator(originLon, originLat, 0)
	return p
}

// LonLat returns the longitude and latitude of a plane position.
func (p *Projector) LonLat(pos core.Position) (lon, lat float64) {
	lon, lat, _ = p.toLonLat(p.originX+pos.X, p.originY+pos.Y, 0)
	return lon, lat
}
