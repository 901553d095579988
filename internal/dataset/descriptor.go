package dataset

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DescriptorFile is the name of the YOLO dataset descriptor.
const DescriptorFile = "dataset.yaml"

// Descriptor is the content of a YOLO dataset.yaml. Test is nil when the
// dataset has no test split and serialises as null.
type Descriptor struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  *string        `yaml:"test"`
	Names map[int]string `yaml:"names"`
}

// NewDescriptor builds the descriptor for a YOLO dataset rooted at base with
// the given class names in id order.
func NewDescriptor(base string, names []string, withTest bool) Descriptor {
	d := Descriptor{
		Path:  base,
		Train: "images/train",
		Val:   "images/val",
		Names: make(map[int]string, len(names)),
	}
	if withTest {
		test := "images/test"
		d.Test = &test
	}
	for i, n := range names {
		d.Names[i] = n
	}
	return d
}

// WriteDescriptor writes d to base/dataset.yaml and returns the file path.
func WriteDescriptor(base string, d Descriptor) (string, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal dataset descriptor")
	}
	path := filepath.Join(base, DescriptorFile)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}

// ReadDescriptor reads a dataset.yaml written by WriteDescriptor.
func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, errors.Wrapf(err, "failed to parse %s", path)
	}
	return d, nil
}
