package convert

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// pipeline is one output format. Convert picks an implementation once, from
// Config.OutputFormat, and drives it through setup, process (per annotation
// file), background (per unannotated image) and finalize.
type pipeline interface {
	setup(cfg Config, base string) (*dataset.Layout, error)
	process(r *run, jsonPath string) (fileResult, error)
	background(r *run, imagePath string) error
	finalize(r *run) error
}

func newPipeline(cfg Config) pipeline {
	switch cfg.OutputFormat {
	case OutputCOCO:
		return newCOCOPipeline(cfg)
	case OutputLabelme:
		return &labelmePipeline{}
	default:
		return &yoloPipeline{}
	}
}

type fileStatus int

const (
	statusWritten fileStatus = iota
	// statusDuplicate: another annotation file already claimed the image.
	statusDuplicate
	// statusAllInvalid: every shape failed validation; nothing was written.
	statusAllInvalid
)

type fileResult struct {
	status        fileStatus
	annotations   int
	skipped       int
	filteredEmpty bool
	// invalid is folded into Stats only when the file is not failed.
	invalid []InvalidAnnotation
}

// run bundles what a pipeline needs while processing.
type run struct {
	cfg    Config
	ctx    *Context
	layout *dataset.Layout
	format labelme.InputFormat
	dims   *imaging.DimensionCache
	log    *zap.SugaredLogger
	start  time.Time
}

// source is an annotation file together with its resolved image.
type source struct {
	path  string
	ann   *labelme.Annotation
	image string
	key   string
}

// open reads an annotation file and claims its image. fresh is false when
// the image was already claimed by an earlier file.
func (r *run) open(jsonPath string) (src *source, fresh bool, err error) {
	ann, err := labelme.ReadFile(jsonPath)
	if err != nil {
		return nil, false, err
	}

	imagePath := ann.ImagePath
	if imagePath == "" {
		imagePath = dataset.Stem(jsonPath) + ".png"
	}
	image := dataset.ResolveImagePath(jsonPath, imagePath)
	src = &source{
		path:  jsonPath,
		ann:   ann,
		image: image,
		key:   dataset.CanonicalKey(image),
	}
	return src, r.ctx.claim(src.key), nil
}

// dimensions returns the image size, probing the image file or the embedded
// payload when the annotation does not record it. Probed values are written
// back into the annotation.
func (r *run) dimensions(src *source) (int, int, error) {
	if src.ann.ImageWidth > 0 && src.ann.ImageHeight > 0 {
		return src.ann.ImageWidth, src.ann.ImageHeight, nil
	}

	var d imaging.Dimensions
	var err error
	if _, statErr := os.Stat(src.image); statErr == nil {
		d, err = r.dims.Probe(src.image)
	} else if src.ann.HasImageData() {
		d, err = imaging.PayloadDimensions(*src.ann.ImageData)
	} else {
		err = errors.Newf("image file not found: %s", src.image)
	}
	if err != nil {
		return 0, 0, errors.Wrap(err, "image size is missing from the annotation and could not be probed")
	}

	r.log.Debugw("Probed image size", "image", src.image, "width", d.Width, "height", d.Height)
	src.ann.ImageWidth, src.ann.ImageHeight = d.Width, d.Height
	return d.Width, d.Height, nil
}

// placeImage writes the image for src into dir and returns the written path.
// Embedded payloads take precedence over the file on disk.
func (r *run) placeImage(src *source, dir string) (string, error) {
	if src.ann.HasImageData() {
		dest := dataset.UniquePath(filepath.Join(dir, filepath.Base(src.image)))
		if _, err := imaging.WritePayload(*src.ann.ImageData, dest); err != nil {
			return "", errors.Wrap(err, "failed to extract embedded image")
		}
		return dest, nil
	}
	if _, err := os.Stat(src.image); err != nil {
		return "", errors.Newf("image file not found: %s", src.image)
	}
	dest, err := dataset.CopyImage(src.image, dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to copy image")
	}
	return dest, nil
}

// tally counts what happened to the shapes of one file.
type tally struct {
	written      int
	labelSkipped int
	invalid      int
	records      []InvalidAnnotation
}

func (t tally) skipped() int { return t.labelSkipped + t.invalid }

// allInvalid: the file had shapes and every one failed validation.
func (t tally) allInvalid(shapes int) bool {
	return shapes > 0 && t.written == 0 && t.labelSkipped == 0 && t.invalid > 0
}

// filteredEmpty: the file had shapes but the allow-list removed all of them.
func (t tally) filteredEmpty(shapes int) bool {
	return shapes > 0 && t.written == 0 && t.labelSkipped > 0
}

func (t tally) result() fileResult {
	return fileResult{status: statusWritten, annotations: t.written, skipped: t.skipped(), invalid: t.records}
}

func (t tally) rejected() fileResult {
	return fileResult{status: statusAllInvalid, skipped: t.skipped(), invalid: t.records}
}

// admit applies the label policy and point-count validation to a shape,
// recording the outcome. It returns the class id when the shape is accepted.
func (r *run) admit(src *source, shape *labelme.Shape, t *tally) (int, bool) {
	id, ok := r.ctx.LabelID(shape.Label)
	if !ok {
		t.labelSkipped++
		return 0, false
	}
	if reason := labelme.ValidateShape(shape, r.format); reason != nil {
		r.reject(src, shape, *reason, t)
		return 0, false
	}
	return id, true
}

func (r *run) reject(src *source, shape *labelme.Shape, reason labelme.InvalidReason, t *tally) {
	t.records = append(t.records, InvalidAnnotation{
		File:        filepath.Base(src.path),
		Label:       shape.Label,
		Reason:      reason.String(),
		ShapeType:   string(shape.ShapeType),
		PointsCount: len(shape.Points),
	})
	t.invalid++
}
