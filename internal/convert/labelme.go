package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/geometry"
	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

const (
	labelsFileName  = "labels.txt"
	summaryFileName = "conversion_summary.txt"
)

// labelmePipeline is the clean-and-filter pass: annotations stay in labelme
// format, shapes outside the allow-list or failing validation are dropped, and
// every JSON lands next to its image in one flat directory.
type labelmePipeline struct{}

func (p *labelmePipeline) setup(cfg Config, base string) (*dataset.Layout, error) {
	layout := dataset.FlatLayout(base)
	if err := layout.Create(); err != nil {
		return nil, err
	}
	return layout, nil
}

func (p *labelmePipeline) process(r *run, jsonPath string) (fileResult, error) {
	src, fresh, err := r.open(jsonPath)
	if err != nil {
		return fileResult{}, err
	}
	if !fresh {
		return fileResult{status: statusDuplicate}, nil
	}

	var t tally
	kept := make([]labelme.Shape, 0, len(src.ann.Shapes))
	for i := range src.ann.Shapes {
		shape := src.ann.Shapes[i]
		if _, ok := r.admit(src, &shape, &t); !ok {
			continue
		}
		kept = append(kept, rewriteShape(shape, r.cfg.LabelmeShapes))
		t.written++
	}

	shapes := len(src.ann.Shapes)
	if t.allInvalid(shapes) {
		return t.rejected(), nil
	}

	dir := r.layout.Base
	imageName, err := p.placeLabelmeImage(r, src, dir)
	if err != nil {
		return fileResult{}, err
	}

	out := *src.ann
	out.Shapes = kept
	out.ImagePath = imageName
	if r.cfg.RemoveImageData {
		out.ImageData = nil
	}

	dest := dataset.UniquePath(filepath.Join(dir, dataset.Stem(imageName)+".json"))
	if err := labelme.WriteFile(dest, &out); err != nil {
		return fileResult{}, err
	}

	res := t.result()
	res.filteredEmpty = t.filteredEmpty(shapes)
	return res, nil
}

// placeLabelmeImage copies the image next to the output JSON and returns the
// name the JSON should reference. An image that only exists as embedded data
// is extracted when the data is being stripped and left embedded otherwise.
func (p *labelmePipeline) placeLabelmeImage(r *run, src *source, dir string) (string, error) {
	if _, err := os.Stat(src.image); err == nil {
		dest, err := dataset.CopyImage(src.image, dir)
		if err != nil {
			return "", errors.Wrap(err, "failed to copy image")
		}
		return filepath.Base(dest), nil
	}

	if !src.ann.HasImageData() {
		return "", errors.Newf("image file not found: %s", src.image)
	}
	if !r.cfg.RemoveImageData {
		return filepath.Base(src.image), nil
	}

	dest := dataset.UniquePath(filepath.Join(dir, filepath.Base(src.image)))
	if _, err := imaging.WritePayload(*src.ann.ImageData, dest); err != nil {
		return "", errors.Wrap(err, "failed to extract embedded image")
	}
	return filepath.Base(dest), nil
}

func (p *labelmePipeline) background(r *run, imagePath string) error {
	_, err := dataset.CopyImage(imagePath, r.layout.Base)
	return err
}

func (p *labelmePipeline) finalize(r *run) error {
	labels := r.ctx.Labels()
	if len(labels) > 0 {
		path := filepath.Join(r.layout.Base, labelsFileName)
		if err := dataset.WriteFile(path, strings.Join(labels, "\n")); err != nil {
			return errors.Wrap(err, "failed to write labels.txt")
		}
	}

	stats := r.ctx.Stats
	summary := fmt.Sprintf("LabelMe Conversion Summary\n"+
		"==========================\n"+
		"Source: %s\n"+
		"Files processed: %d\n"+
		"Total annotations: %d\n"+
		"Skipped annotations: %d\n"+
		"Labels: %s\n",
		r.cfg.InputDir, stats.ProcessedFiles, stats.TotalAnnotations, stats.SkippedAnnotations,
		strings.Join(labels, ", "))
	if err := dataset.WriteFile(filepath.Join(r.layout.Base, summaryFileName), summary); err != nil {
		return errors.Wrap(err, "failed to write summary")
	}
	return nil
}

// rewriteShape applies the LabelmeShapes setting. Circles are expanded to
// polygons before taking their bounds.
func rewriteShape(shape labelme.Shape, mode LabelmeShapes) labelme.Shape {
	if mode == ShapesOriginal {
		return shape
	}

	points := shape.Points
	if shape.ShapeType == labelme.ShapeCircle && len(points) >= 2 {
		points = geometry.CircleToPolygon(points[0], geometry.Distance(points[0], points[1]), geometry.DefaultCircleSegments)
	}
	minP, maxP := geometry.Bounds(points)
	box := []geometry.Point{minP, maxP}

	switch mode {
	case ShapesBbox2Point:
		shape.Points = box
		shape.ShapeType = labelme.ShapeRectangle
	case ShapesBbox4Point:
		shape.Points = geometry.RectangleToPolygon(box)
		shape.ShapeType = labelme.ShapePolygon
	}
	return shape
}
