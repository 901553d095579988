package scanner

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// LabelCount is one row of a label count preview.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// Palette assigns each label a hex colour. Hues are spread evenly over the
// sorted label set, so the same labels always get the same colours.
func Palette(labels []string) map[string]string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	colors := make(map[string]string, len(sorted))
	for i, l := range sorted {
		hue := 360 * float64(i) / float64(len(sorted))
		colors[l] = colorful.Hsv(hue, 0.65, 0.95).Hex()
	}
	return colors
}

// Summarize orders counts by descending count, then label, and attaches the
// palette colour of each label.
func Summarize(counts map[string]int) []LabelCount {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	colors := Palette(labels)

	rows := make([]LabelCount, 0, len(counts))
	for _, l := range labels {
		rows = append(rows, LabelCount{Label: l, Count: counts[l], Color: colors[l]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}
