package convert

import (
	"fmt"
	"sort"

	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
)

// Context is the mutable state of one conversion run. It is owned by a single
// Convert call and needs no locking.
type Context struct {
	labelIDs map[string]int
	labels   []string // id order
	// closed is set for predefined and deterministic label maps: unknown
	// labels are skipped instead of registered.
	closed bool

	processed map[string]struct{}

	skipped     map[string]struct{}
	skippedList []string

	Stats  Stats
	Errors []string
}

func newContext(cfg Config) *Context {
	c := &Context{
		labelIDs:  make(map[string]int),
		processed: make(map[string]struct{}),
		skipped:   make(map[string]struct{}),
		Stats:     newStats(),
		Errors:    []string{},
	}
	if len(cfg.LabelList) > 0 {
		for _, l := range cfg.LabelList {
			c.register(l)
		}
		c.closed = true
	}
	return c
}

func (c *Context) register(label string) int {
	if id, ok := c.labelIDs[label]; ok {
		return id
	}
	id := len(c.labels)
	c.labelIDs[label] = id
	c.labels = append(c.labels, label)
	return id
}

// LabelID resolves a label under the run's label policy. With an open map
// (incremental policy) unseen labels get the next id. With a closed map they
// are recorded as skipped and ok is false.
func (c *Context) LabelID(label string) (id int, ok bool) {
	if id, ok := c.labelIDs[label]; ok {
		return id, true
	}
	if c.closed {
		if _, seen := c.skipped[label]; !seen {
			c.skipped[label] = struct{}{}
			c.skippedList = append(c.skippedList, label)
		}
		return 0, false
	}
	return c.register(label), true
}

// Labels returns label names in id order.
func (c *Context) Labels() []string {
	return append([]string(nil), c.labels...)
}

// SkippedLabels returns labels rejected by the allow-list in first-seen order.
func (c *Context) SkippedLabels() []string {
	return append([]string(nil), c.skippedList...)
}

// gatherLabels reads every file, sorts the union of labels and closes the
// map, so ids do not depend on walk order. Unreadable files are ignored here;
// the main pass reports them.
func (c *Context) gatherLabels(files []string) {
	set := make(map[string]struct{})
	for _, f := range files {
		ann, err := labelme.ReadFile(f)
		if err != nil {
			continue
		}
		for _, s := range ann.Shapes {
			set[s.Label] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(set))
	for l := range set {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)
	for _, l := range sorted {
		c.register(l)
	}
	c.closed = true
}

// claim marks an image key as processed. It returns false when an earlier
// annotation file already claimed the image.
func (c *Context) claim(key string) bool {
	if _, ok := c.processed[key]; ok {
		return false
	}
	c.processed[key] = struct{}{}
	return true
}

// Processed returns the set of claimed image keys.
func (c *Context) Processed() map[string]struct{} {
	return c.processed
}

func (c *Context) addError(path string, err error) {
	c.Errors = append(c.Errors, fmt.Sprintf("%s: %v", path, err))
}
