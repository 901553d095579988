// Package labelme defines the labelme annotation document model and the
// per-shape validation rules applied during conversion.
package labelme

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/geometry"
)

// ShapeType is the labelme "shape_type" of a shape.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapePolygon   ShapeType = "polygon"
	ShapeCircle    ShapeType = "circle"
)

// Shape is one labeled region of an image.
type Shape struct {
	Label       string           `json:"label"`
	Points      []geometry.Point `json:"points"`
	GroupID     *int64           `json:"group_id"`
	ShapeType   ShapeType        `json:"shape_type"`
	Description *string          `json:"description,omitempty"`
	Mask        *string          `json:"mask,omitempty"`
	Flags       map[string]bool  `json:"flags,omitempty"`
}

// Annotation is the labelme document for a single image.
type Annotation struct {
	Version     string          `json:"version"`
	Flags       map[string]bool `json:"flags,omitempty"`
	Shapes      []Shape         `json:"shapes"`
	ImagePath   string          `json:"imagePath"`
	ImageData   *string         `json:"imageData"`
	ImageHeight int             `json:"imageHeight"`
	ImageWidth  int             `json:"imageWidth"`
}

// HasImageData reports whether the document embeds the image as base64.
func (a *Annotation) HasImageData() bool {
	return a.ImageData != nil && *a.ImageData != ""
}

// ReadFile parses the labelme document at path.
func ReadFile(path string) (*Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var ann Annotation
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&ann); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return &ann, nil
}

// WriteFile writes ann to path as indented JSON.
func WriteFile(path string, ann *Annotation) error {
	data, err := json.MarshalIndent(ann, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize labelme JSON")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Labels returns the labels of ann's shapes in document order, including
// repeats.
func (a *Annotation) Labels() []string {
	labels := make([]string, len(a.Shapes))
	for i, s := range a.Shapes {
		labels[i] = s.Label
	}
	return labels
}
