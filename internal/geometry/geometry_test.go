package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(xy ...float64) []Point {
	out := make([]Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func TestPoint_JSON(t *testing.T) {
	var p Point
	require.NoError(t, json.Unmarshal([]byte(`[12.5, 7]`), &p))
	assert.Equal(t, Point{X: 12.5, Y: 7}, p)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[12.5, 7]`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`[1, 2, 3]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &p))
}

func TestBounds(t *testing.T) {
	minP, maxP := Bounds(pts(30, 5, 10, 40, 20, 20))
	assert.Equal(t, Point{X: 10, Y: 5}, minP)
	assert.Equal(t, Point{X: 30, Y: 40}, maxP)

	minP, maxP = Bounds(nil)
	assert.Equal(t, Point{}, minP)
	assert.Equal(t, Point{}, maxP)
}

func TestNormalizedBBox(t *testing.T) {
	tests := []struct {
		name           string
		points         []Point
		w, h           int
		cx, cy, bw, bh float64
		ok             bool
	}{
		{"square inside image", pts(10, 10, 30, 10, 30, 30, 10, 30), 100, 100, 0.2, 0.2, 0.2, 0.2, true},
		{"two point diagonal", pts(0, 0, 50, 100), 100, 200, 0.25, 0.25, 0.5, 0.5, true},
		{"clamped to image", pts(-10, -10, 50, 50), 100, 100, 0.25, 0.25, 0.5, 0.5, true},
		{"entirely outside", pts(150, 150, 200, 200), 100, 100, 0, 0, 0, 0, false},
		{"degenerate line", pts(10, 10, 10, 50), 100, 100, 0, 0, 0, 0, false},
		{"empty", nil, 100, 100, 0, 0, 0, 0, false},
		{"zero sized image", pts(0, 0, 1, 1), 0, 100, 0, 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cy, bw, bh, ok := NormalizedBBox(tt.points, tt.w, tt.h)
			require.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.cx, cx, 1e-9)
			assert.InDelta(t, tt.cy, cy, 1e-9)
			assert.InDelta(t, tt.bw, bw, 1e-9)
			assert.InDelta(t, tt.bh, bh, 1e-9)
		})
	}
}

func TestRectangleToPolygon(t *testing.T) {
	got := RectangleToPolygon(pts(10, 10, 30, 30))
	assert.Equal(t, pts(10, 10, 30, 10, 30, 30, 10, 30), got)

	three := pts(1, 1, 2, 2, 3, 3)
	got = RectangleToPolygon(three)
	assert.Equal(t, three, got)
	got[0].X = 99
	assert.Equal(t, 1.0, three[0].X, "input must not be aliased")
}

func TestCircleToPolygon(t *testing.T) {
	center := Point{X: 50, Y: 50}
	poly := CircleToPolygon(center, 10, DefaultCircleSegments)
	require.Len(t, poly, 12)

	assert.InDelta(t, 60, poly[0].X, 1e-9)
	assert.InDelta(t, 50, poly[0].Y, 1e-9)
	assert.InDelta(t, 50, poly[3].X, 1e-9)
	assert.InDelta(t, 60, poly[3].Y, 1e-9)
	for _, p := range poly {
		assert.InDelta(t, 10, Distance(center, p), 1e-9)
	}

	assert.Nil(t, CircleToPolygon(center, 10, 0))
}

func TestPolygonArea(t *testing.T) {
	assert.InDelta(t, 100.0, PolygonArea(pts(0, 0, 10, 0, 10, 10, 0, 10)), 1e-9)
	assert.InDelta(t, 100.0, PolygonArea(pts(0, 10, 10, 10, 10, 0, 0, 0)), 1e-9, "winding must not change the sign")
	assert.Equal(t, 0.0, PolygonArea(pts(0, 0, 10, 10)))
	assert.Equal(t, 0.0, PolygonArea(nil))
	assert.InDelta(t, 50.0, PolygonArea(pts(0, 0, 10, 0, 0, 10)), 1e-9)

	// A 12-gon inscribed in a circle is slightly smaller than the circle.
	circle := PolygonArea(CircleToPolygon(Point{}, 10, 12))
	assert.Less(t, circle, math.Pi*100)
	assert.Greater(t, circle, 0.9*math.Pi*100)
}

func TestCOCOBBox(t *testing.T) {
	assert.Equal(t, [4]float64{10, 20, 30, 40}, COCOBBox(pts(40, 20, 10, 60, 25, 30)))
	assert.Equal(t, [4]float64{}, COCOBBox(nil))
}

func TestNormalizePolygon(t *testing.T) {
	got := NormalizePolygon(pts(50, 50, 100, 50, 250, -5), 200, 200)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.25, got[0].X, 1e-9)
	assert.InDelta(t, 0.25, got[0].Y, 1e-9)
	assert.InDelta(t, 0.5, got[1].X, 1e-9)
	assert.InDelta(t, 1.0, got[2].X, 1e-9)
	assert.InDelta(t, 0.0, got[2].Y, 1e-9)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 3, 4}, Flatten(pts(1, 2, 3, 4)))
	assert.Empty(t, Flatten(nil))
}

func TestOpenRing(t *testing.T) {
	closed := pts(0, 0, 10, 0, 10, 10, 0.0001, 0.0002)
	assert.Equal(t, pts(0, 0, 10, 0, 10, 10), OpenRing(closed))

	open := pts(0, 0, 10, 0, 10, 10, 0, 10)
	assert.Equal(t, open, OpenRing(open))

	triangle := pts(0, 0, 10, 0, 0, 0)
	assert.Len(t, OpenRing(triangle), 3)
}
