// Package dataset implements the filesystem side of a conversion: finding
// annotation and image files, placing images into output trees, and laying
// out the directory structure of each output format.
package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
)

// OutputMarker is written into every output tree. Directories containing it
// are never treated as input, so converting into the input directory twice
// does not pick up the previous output.
const OutputMarker = ".labelme-tools-output"

// FindJSONFiles walks root and returns every *.json file in walk (lexical)
// order. Directories listed in exclude and directories carrying OutputMarker
// are not descended into. Unreadable entries are skipped.
func FindJSONFiles(root string, exclude ...string) []string {
	return walkFiles(root, exclude, func(path string) bool {
		return strings.EqualFold(filepath.Ext(path), ".json")
	})
}

// FindImageFiles walks root and returns every file with a supported image
// extension, honouring exclude like FindJSONFiles.
func FindImageFiles(root string, exclude ...string) []string {
	return walkFiles(root, exclude, imaging.IsImageFile)
}

// FindBackgroundImages returns the images under root that have no annotation:
// their canonical key is not in annotated and there is no JSON file with the
// same stem next to them.
func FindBackgroundImages(root string, annotated map[string]struct{}, exclude ...string) []string {
	var background []string
	for _, img := range FindImageFiles(root, exclude...) {
		if _, ok := annotated[CanonicalKey(img)]; ok {
			continue
		}
		sibling := strings.TrimSuffix(img, filepath.Ext(img)) + ".json"
		if _, err := os.Stat(sibling); err == nil {
			continue
		}
		background = append(background, img)
	}
	return background
}

func walkFiles(root string, exclude []string, keep func(string) bool) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e != "" {
			skip[CanonicalKey(e)] = true
		}
	}

	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (skip[CanonicalKey(path)] || isOutputTree(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && keep(path) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func isOutputTree(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, OutputMarker))
	return err == nil
}
