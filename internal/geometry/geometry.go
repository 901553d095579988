// Package geometry provides the coordinate math used when converting labelme
// shapes into training formats.
//
// All functions are pure and operate on points in source-image pixel space,
// where (0,0) is the top-left corner, X increases rightward and Y increases
// downward. Normalized outputs are fractions of the image width/height in the
// range [0, 1].
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// closeEpsilon is the tolerance used when deciding whether the last vertex of
// a polygon repeats the first one.
const closeEpsilon = 0.001

// DefaultCircleSegments is the number of vertices used to approximate a circle.
const DefaultCircleSegments = 12

// Point is a single (x, y) coordinate in pixel space.
//
// Points serialize as two-element JSON arrays ([x, y]) to match the labelme
// file format.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x, y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("point must be an [x, y] array: %w", err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Bounds returns the axis-aligned extremes of points as (min, max).
//
// For an empty slice both corners are the zero point.
func Bounds(points []Point) (Point, Point) {
	if len(points) == 0 {
		return Point{}, Point{}
	}

	minP := Point{X: math.MaxFloat64, Y: math.MaxFloat64}
	maxP := Point{X: -math.MaxFloat64, Y: -math.MaxFloat64}
	for _, p := range points {
		minP.X = math.Min(minP.X, p.X)
		minP.Y = math.Min(minP.Y, p.Y)
		maxP.X = math.Max(maxP.X, p.X)
		maxP.Y = math.Max(maxP.Y, p.Y)
	}
	return minP, maxP
}

// NormalizedBBox computes a YOLO-style box for points inside a width x height
// image.
//
// The bounding box is clamped to the image before normalization. The return
// values are the box center and extents as fractions of the image size. ok is
// false when points is empty, the image has no area, or the clamped box has
// zero width or height.
func NormalizedBBox(points []Point, width, height int) (cx, cy, bw, bh float64, ok bool) {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return 0, 0, 0, 0, false
	}

	w, h := float64(width), float64(height)
	minP, maxP := Bounds(points)

	minX := clamp(minP.X, 0, w)
	maxX := clamp(maxP.X, 0, w)
	minY := clamp(minP.Y, 0, h)
	maxY := clamp(maxP.Y, 0, h)

	boxW := maxX - minX
	boxH := maxY - minY
	if boxW <= 0 || boxH <= 0 {
		return 0, 0, 0, 0, false
	}

	return (minX + maxX) / 2 / w, (minY + maxY) / 2 / h, boxW / w, boxH / h, true
}

// RectangleToPolygon expands a two-point diagonal rectangle into its four
// corners in the order (x1,y1), (x2,y1), (x2,y2), (x1,y2).
//
// Inputs that do not have exactly two points are returned unchanged (as a copy).
func RectangleToPolygon(points []Point) []Point {
	if len(points) != 2 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	p1, p2 := points[0], points[1]
	return []Point{
		{X: p1.X, Y: p1.Y},
		{X: p2.X, Y: p1.Y},
		{X: p2.X, Y: p2.Y},
		{X: p1.X, Y: p2.Y},
	}
}

// CircleToPolygon approximates a circle with n vertices evenly spaced by angle,
// starting at angle 0 (the point directly right of the center).
func CircleToPolygon(center Point, radius float64, n int) []Point {
	if n <= 0 {
		return nil
	}

	polygon := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		polygon = append(polygon, Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		})
	}
	return polygon
}

// PolygonArea returns the absolute area enclosed by points using the
// shoelace formula. Fewer than three points have no area.
func PolygonArea(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}

	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(area / 2)
}

// COCOBBox returns [x, y, width, height] with (x, y) the top-left corner of the
// bounding box of points.
func COCOBBox(points []Point) [4]float64 {
	if len(points) == 0 {
		return [4]float64{}
	}
	minP, maxP := Bounds(points)
	return [4]float64{minP.X, minP.Y, maxP.X - minP.X, maxP.Y - minP.Y}
}

// NormalizePolygon clamps every point into the image and scales it to [0, 1].
func NormalizePolygon(points []Point, width, height int) []Point {
	w, h := float64(width), float64(height)
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{
			X: clamp(p.X, 0, w) / w,
			Y: clamp(p.Y, 0, h) / h,
		}
	}
	return out
}

// Flatten converts points into the [x1, y1, x2, y2, ...] layout used by COCO
// segmentation arrays.
func Flatten(points []Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// OpenRing drops a trailing vertex that repeats the first one. Only polygons
// with at least four points are considered, so a triangle is never reduced
// below three vertices.
func OpenRing(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	if len(out) < 4 {
		return out
	}

	first, last := out[0], out[len(out)-1]
	if math.Abs(first.X-last.X) < closeEpsilon && math.Abs(first.Y-last.Y) < closeEpsilon {
		out = out[:len(out)-1]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
