package labelme

import "fmt"

// InputFormat is the dataset-wide annotation encoding inferred by sampling.
// It is computed once per run and then used to validate every shape.
type InputFormat string

const (
	// FormatBbox2Point is a rectangle given by two diagonal corners.
	FormatBbox2Point InputFormat = "bbox_2point"
	// FormatBbox4Point is a rectangle given by its four corners.
	FormatBbox4Point InputFormat = "bbox_4point"
	// FormatPolygon is a polygon with a variable number (>= 3) of vertices.
	FormatPolygon InputFormat = "polygon"
	// FormatUnknown is a mixed or undetermined encoding.
	FormatUnknown InputFormat = "unknown"
)

// ExpectedPoints describes the point count a format requires.
func (f InputFormat) ExpectedPoints() string {
	switch f {
	case FormatBbox2Point:
		return "requires 2 points"
	case FormatBbox4Point:
		return "requires 4 points"
	case FormatPolygon:
		return "requires at least 3 points"
	default:
		return "format unknown"
	}
}

// ReasonKind classifies why a shape was rejected.
type ReasonKind int

const (
	EmptyPoints ReasonKind = iota
	ZeroArea
	InsufficientPoints
	PointsCountMismatch
)

// InvalidReason explains why a shape failed validation. It is a value, not an
// error: invalid shapes are skipped and recorded, never fatal.
type InvalidReason struct {
	Kind ReasonKind
	// ExpectedFormat and ActualPoints are set for PointsCountMismatch.
	ExpectedFormat InputFormat
	ActualPoints   int
}

func (r InvalidReason) String() string {
	switch r.Kind {
	case EmptyPoints:
		return "annotation has no points"
	case ZeroArea:
		return "annotation has zero area (width or height <= 0)"
	case InsufficientPoints:
		return "not enough points (need at least 2)"
	case PointsCountMismatch:
		return fmt.Sprintf("point count does not match dataset format (%s, got %d)",
			r.ExpectedFormat.ExpectedPoints(), r.ActualPoints)
	default:
		return "invalid annotation"
	}
}

// ValidateShape checks the point count of shape against the dataset format.
// It returns nil for a valid shape.
func ValidateShape(shape *Shape, format InputFormat) *InvalidReason {
	n := len(shape.Points)
	if n == 0 {
		return &InvalidReason{Kind: EmptyPoints}
	}

	mismatch := &InvalidReason{Kind: PointsCountMismatch, ExpectedFormat: format, ActualPoints: n}
	switch format {
	case FormatBbox2Point:
		if n != 2 {
			return mismatch
		}
	case FormatBbox4Point:
		if n != 4 {
			return mismatch
		}
	case FormatPolygon:
		if n < 3 {
			return mismatch
		}
	default:
		if n < 2 {
			return &InvalidReason{Kind: InsufficientPoints}
		}
	}
	return nil
}
