package convert

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/geometry"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// COCOInfo is the info block of a COCO document.
type COCOInfo struct {
	Year        int    `json:"year"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Contributor string `json:"contributor"`
	URL         string `json:"url"`
	DateCreated string `json:"date_created"`
}

// COCOLicense is a licenses entry. Every image references license 1.
type COCOLicense struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// COCOCategory maps a label to its 1-based category id.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// COCOImage describes one exported image.
type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	License  int    `json:"license"`
}

// COCOAnnotation is one shape. BBox is [x, y, width, height]; Segmentation
// is omitted in bbox_only mode.
type COCOAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
}

// COCODataset is the content of one instances_<split>.json file.
type COCODataset struct {
	Info        COCOInfo         `json:"info"`
	Licenses    []COCOLicense    `json:"licenses"`
	Categories  []COCOCategory   `json:"categories"`
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
}

// cocoPipeline accumulates one dataset per split in memory and writes them
// in finalize. Image and annotation ids are global across splits.
type cocoPipeline struct {
	datasets map[dataset.Split]*COCODataset
	splits   []dataset.Split
	nextImg  int
	nextAnn  int
}

func newCOCOPipeline(cfg Config) *cocoPipeline {
	return &cocoPipeline{
		datasets: make(map[dataset.Split]*COCODataset),
		nextImg:  cfg.StartImageID,
		nextAnn:  cfg.StartAnnotationID,
	}
}

// setup creates the layout and one empty dataset per split it has.
func (p *cocoPipeline) setup(cfg Config, base string) (*dataset.Layout, error) {
	layout := dataset.COCOLayout(base, cfg.HasTestSplit())
	if err := layout.Create(); err != nil {
		return nil, err
	}
	for _, s := range []dataset.Split{dataset.SplitTrain, dataset.SplitVal, dataset.SplitTest} {
		if !layout.HasSplit(s) {
			continue
		}
		p.splits = append(p.splits, s)
		p.datasets[s] = &COCODataset{
			Licenses:    []COCOLicense{{ID: 1, Name: "Unknown", URL: ""}},
			Categories:  []COCOCategory{},
			Images:      []COCOImage{},
			Annotations: []COCOAnnotation{},
		}
	}
	return layout, nil
}

func (p *cocoPipeline) process(r *run, jsonPath string) (fileResult, error) {
	src, fresh, err := r.open(jsonPath)
	if err != nil {
		return fileResult{}, err
	}
	if !fresh {
		return fileResult{status: statusDuplicate}, nil
	}

	var t tally
	var pending []COCOAnnotation
	for i := range src.ann.Shapes {
		shape := &src.ann.Shapes[i]
		id, ok := r.admit(src, shape, &t)
		if !ok {
			continue
		}
		ann, ok := cocoAnnotation(shape, id+1, r.cfg.SegmentationMode)
		if !ok {
			continue
		}
		pending = append(pending, ann)
		t.written++
	}

	shapes := len(src.ann.Shapes)
	if t.allInvalid(shapes) {
		return t.rejected(), nil
	}

	w, h, err := r.dimensions(src)
	if err != nil {
		return fileResult{}, err
	}

	split := AssignSplit(src.key, r.cfg.ValSize, r.cfg.TestSize)
	dest, err := r.placeImage(src, r.layout.Dir(split, dataset.KindImage))
	if err != nil {
		return fileResult{}, err
	}

	imageID := p.addImage(split, filepath.Base(dest), w, h)
	ds := p.datasets[split]
	for _, ann := range pending {
		ann.ID = p.nextAnn
		ann.ImageID = imageID
		p.nextAnn++
		ds.Annotations = append(ds.Annotations, ann)
	}

	res := t.result()
	res.filteredEmpty = t.filteredEmpty(shapes)
	return res, nil
}

func (p *cocoPipeline) addImage(split dataset.Split, name string, width, height int) int {
	id := p.nextImg
	p.nextImg++
	ds := p.datasets[split]
	ds.Images = append(ds.Images, COCOImage{
		ID:       id,
		FileName: name,
		Width:    width,
		Height:   height,
		License:  1,
	})
	return id
}

// background adds an unannotated image to its split with no annotations.
func (p *cocoPipeline) background(r *run, imagePath string) error {
	d, err := r.dims.Probe(imagePath)
	if err != nil {
		return errors.Wrap(err, "failed to read background image size")
	}
	split := AssignSplit(dataset.CanonicalKey(imagePath), r.cfg.ValSize, r.cfg.TestSize)
	dest, err := dataset.CopyImage(imagePath, r.layout.Dir(split, dataset.KindImage))
	if err != nil {
		return err
	}
	p.addImage(split, filepath.Base(dest), d.Width, d.Height)
	return nil
}

func (p *cocoPipeline) finalize(r *run) error {
	labels := r.ctx.Labels()
	categories := make([]COCOCategory, len(labels))
	for i, l := range labels {
		categories[i] = COCOCategory{ID: i + 1, Name: l, Supercategory: "none"}
	}
	info := COCOInfo{
		Year:        r.start.Year(),
		Version:     "1.0",
		Description: "Exported from LabelMe",
		Contributor: "labelme-tools",
		URL:         "",
		DateCreated: r.start.Format("2006-01-02"),
	}

	dir := r.layout.Dir(dataset.SplitTrain, dataset.KindLabel)
	for _, s := range p.splits {
		ds := p.datasets[s]
		ds.Info = info
		ds.Categories = categories
		path := filepath.Join(dir, "instances_"+string(s)+".json")
		if err := writeCOCO(path, ds); err != nil {
			return errors.Wrapf(err, "failed to write instances_%s.json", s)
		}
	}
	return nil
}

func writeCOCO(path string, ds *COCODataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// cocoAnnotation converts one shape. ok is false for shape types without an
// area (lines, points) and for degenerate shapes; those are dropped without
// being reported as invalid.
func cocoAnnotation(shape *labelme.Shape, categoryID int, mode SegmentationMode) (COCOAnnotation, bool) {
	points, ok := cocoPoints(shape)
	if !ok || len(points) < 3 {
		return COCOAnnotation{}, false
	}

	area := geometry.PolygonArea(points)
	if area <= 0 {
		return COCOAnnotation{}, false
	}

	ann := COCOAnnotation{
		CategoryID: categoryID,
		BBox:       geometry.COCOBBox(points),
		Area:       area,
	}
	if mode == SegmentationPolygon {
		ann.Segmentation = [][]float64{geometry.Flatten(points)}
	}
	return ann, true
}

func cocoPoints(shape *labelme.Shape) ([]geometry.Point, bool) {
	switch shape.ShapeType {
	case labelme.ShapePolygon, "":
		return geometry.OpenRing(shape.Points), true
	case labelme.ShapeRectangle:
		if len(shape.Points) < 2 {
			return nil, false
		}
		return geometry.RectangleToPolygon(shape.Points), true
	case labelme.ShapeCircle:
		if len(shape.Points) < 2 {
			return nil, false
		}
		center := shape.Points[0]
		radius := geometry.Distance(center, shape.Points[1])
		return geometry.CircleToPolygon(center, radius, geometry.DefaultCircleSegments), true
	default:
		return nil, false
	}
}
