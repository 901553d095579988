package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/geometry"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// yoloPipeline writes images/{split} and labels/{split} with one text line
// per shape, plus dataset.yaml.
type yoloPipeline struct{}

func (p *yoloPipeline) setup(cfg Config, base string) (*dataset.Layout, error) {
	layout := dataset.YOLOLayout(base, cfg.HasTestSplit())
	if err := layout.Create(); err != nil {
		return nil, err
	}
	return layout, nil
}

func (p *yoloPipeline) process(r *run, jsonPath string) (fileResult, error) {
	src, fresh, err := r.open(jsonPath)
	if err != nil {
		return fileResult{}, err
	}
	if !fresh {
		return fileResult{status: statusDuplicate}, nil
	}

	var t tally
	var lines []string
	for i := range src.ann.Shapes {
		shape := &src.ann.Shapes[i]
		id, ok := r.admit(src, shape, &t)
		if !ok {
			continue
		}
		w, h, err := r.dimensions(src)
		if err != nil {
			return fileResult{}, err
		}
		line, reason := yoloLine(shape, id, w, h, r.cfg.AnnotationFormat, r.format)
		if reason != nil {
			r.reject(src, shape, *reason, &t)
			continue
		}
		lines = append(lines, line)
		t.written++
	}

	shapes := len(src.ann.Shapes)
	if t.allInvalid(shapes) {
		return t.rejected(), nil
	}

	split := AssignSplit(src.key, r.cfg.ValSize, r.cfg.TestSize)
	dest, err := r.placeImage(src, r.layout.Dir(split, dataset.KindImage))
	if err != nil {
		return fileResult{}, err
	}
	if err := writeLabelFile(r.layout, split, dest, lines); err != nil {
		return fileResult{}, err
	}

	res := t.result()
	res.filteredEmpty = t.filteredEmpty(shapes)
	return res, nil
}

// background copies an unannotated image into its split with an empty label
// file.
func (p *yoloPipeline) background(r *run, imagePath string) error {
	split := AssignSplit(dataset.CanonicalKey(imagePath), r.cfg.ValSize, r.cfg.TestSize)
	dest, err := dataset.CopyImage(imagePath, r.layout.Dir(split, dataset.KindImage))
	if err != nil {
		return err
	}
	return writeLabelFile(r.layout, split, dest, nil)
}

func (p *yoloPipeline) finalize(r *run) error {
	d := dataset.NewDescriptor(r.layout.Base, r.ctx.Labels(), r.cfg.HasTestSplit())
	if _, err := dataset.WriteDescriptor(r.layout.Base, d); err != nil {
		return errors.Wrap(err, "failed to create dataset.yaml")
	}
	return nil
}

// writeLabelFile names the label file after the written image, so a
// de-collided image "frame_1.jpg" gets "frame_1.txt".
func writeLabelFile(layout *dataset.Layout, split dataset.Split, imageDest string, lines []string) error {
	path := filepath.Join(layout.Dir(split, dataset.KindLabel), dataset.Stem(imageDest)+".txt")
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := dataset.WriteFile(path, content); err != nil {
		return errors.Wrap(err, "failed to write label file")
	}
	return nil
}

// yoloLine renders one shape. Bbox mode uses the bounding box of all points
// whatever the shape type; polygon mode expands 2-point boxes to 4 corners
// and passes other point lists through.
func yoloLine(shape *labelme.Shape, classID, width, height int, mode AnnotationFormat, format labelme.InputFormat) (string, *labelme.InvalidReason) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", classID)

	switch mode {
	case AnnotationPolygon:
		points := shape.Points
		if format == labelme.FormatBbox2Point {
			points = geometry.RectangleToPolygon(points)
		}
		for _, v := range geometry.Flatten(geometry.NormalizePolygon(points, width, height)) {
			fmt.Fprintf(&b, " %.6f", v)
		}
	default:
		cx, cy, bw, bh, ok := geometry.NormalizedBBox(shape.Points, width, height)
		if !ok {
			if len(shape.Points) == 0 {
				return "", &labelme.InvalidReason{Kind: labelme.EmptyPoints}
			}
			return "", &labelme.InvalidReason{Kind: labelme.ZeroArea}
		}
		fmt.Fprintf(&b, " %.6f %.6f %.6f %.6f", cx, cy, bw, bh)
	}
	return b.String(), nil
}
