package dataset

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Split is a dataset partition.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// FileKind distinguishes image directories from label directories.
type FileKind int

const (
	KindImage FileKind = iota
	KindLabel
)

type dirKey struct {
	split Split
	kind  FileKind
}

// Layout is the directory structure of one output dataset. Flat layouts
// (labelme output) place every file in Base regardless of split.
type Layout struct {
	Base string
	dirs map[dirKey]string
	flat bool
}

// Dir returns the directory for files of kind in split. Flat layouts and
// splits without a directory fall back to Base.
func (l *Layout) Dir(split Split, kind FileKind) string {
	if l.flat {
		return l.Base
	}
	if d, ok := l.dirs[dirKey{split, kind}]; ok {
		return d
	}
	return l.Base
}

// HasSplit reports whether the layout has directories for split.
func (l *Layout) HasSplit(split Split) bool {
	_, ok := l.dirs[dirKey{split, KindImage}]
	return ok
}

// Create makes every directory in the layout and marks Base as an output tree.
func (l *Layout) Create() error {
	if err := os.MkdirAll(l.Base, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", l.Base)
	}
	if err := os.WriteFile(filepath.Join(l.Base, OutputMarker), nil, 0o644); err != nil {
		return errors.Wrap(err, "failed to write output marker")
	}
	for _, d := range l.dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", d)
		}
	}
	return nil
}

func splitsFor(withTest bool) []Split {
	if withTest {
		return []Split{SplitTrain, SplitVal, SplitTest}
	}
	return []Split{SplitTrain, SplitVal}
}

// YOLOLayout returns images/{split} and labels/{split} under base.
func YOLOLayout(base string, withTest bool) *Layout {
	l := &Layout{Base: base, dirs: make(map[dirKey]string)}
	for _, s := range splitsFor(withTest) {
		l.dirs[dirKey{s, KindImage}] = filepath.Join(base, "images", string(s))
		l.dirs[dirKey{s, KindLabel}] = filepath.Join(base, "labels", string(s))
	}
	return l
}

// COCOLayout returns images/{split} under base plus a shared annotations
// directory used as the label directory of every split.
func COCOLayout(base string, withTest bool) *Layout {
	l := &Layout{Base: base, dirs: make(map[dirKey]string)}
	annotations := filepath.Join(base, "annotations")
	for _, s := range splitsFor(withTest) {
		l.dirs[dirKey{s, KindImage}] = filepath.Join(base, "images", string(s))
		l.dirs[dirKey{s, KindLabel}] = annotations
	}
	return l
}

// FlatLayout places everything directly in base.
func FlatLayout(base string) *Layout {
	return &Layout{Base: base, flat: true}
}
