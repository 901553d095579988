package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/labelme"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
)

func writeDoc(t *testing.T, dir, name string, labels ...string) {
	t.Helper()
	shapes := ""
	for i, l := range labels {
		if i > 0 {
			shapes += ","
		}
		shapes += fmt.Sprintf(`{"label": %q, "points": [[0,0],[10,10]], "shape_type": "rectangle"}`, l)
	}
	doc := fmt.Sprintf(`{"version": "5.0.1", "shapes": [%s], "imagePath": "x.png"}`, shapes)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
}

func testScanner(workers int) *Scanner {
	cfg := DefaultConfig()
	cfg.Workers = workers
	return New(cfg, nil)
}

func TestLabels(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.json", "dog", "cat")
	writeDoc(t, dir, "b.json", "cat", "bird")
	writeDoc(t, dir, "c.json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	rec := &progress.Recorder{}
	labels, err := testScanner(3).Labels(dir, progress.NewEmitter("scan", rec))
	require.NoError(t, err)
	assert.Equal(t, []string{"bird", "cat", "dog"}, labels)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 0, events[0].Current)
	assert.Equal(t, 4, events[1].Current)
	assert.Equal(t, 4, events[1].Total)
	assert.Equal(t, 100.0, events[2].Percentage)
	assert.Contains(t, events[2].Message, "found 3 labels")
}

func TestLabels_MalformedPointsStillCount(t *testing.T) {
	dir := t.TempDir()
	doc := `{"shapes": [{"label": "cat", "points": [[1,2,3]]}, {"points": []}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(doc), 0o644))

	labels, err := testScanner(2).Labels(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, labels)
}

func TestLabels_EmptyAndMissing(t *testing.T) {
	rec := &progress.Recorder{}
	labels, err := testScanner(2).Labels(t.TempDir(), progress.NewEmitter("scan", rec))
	require.NoError(t, err)
	assert.Empty(t, labels)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "No JSON files found", rec.Events()[0].Message)

	rec = &progress.Recorder{}
	_, err = testScanner(2).Labels(filepath.Join(t.TempDir(), "missing"), progress.NewEmitter("scan", rec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory does not exist")
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, 0, rec.Events()[0].Total)
}

func TestLabelCounts(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 250; i++ {
		writeDoc(t, dir, fmt.Sprintf("f%03d.json", i), "cat", "dog", "cat")
	}

	rec := &progress.Recorder{}
	counts, err := testScanner(4).LabelCounts(dir, progress.NewEmitter("count", rec))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cat": 500, "dog": 250}, counts)

	// start, 100, 200, 250, complete
	events := rec.Events()
	require.Len(t, events, 5)
	ticks := []int{events[1].Current, events[2].Current, events[3].Current}
	assert.ElementsMatch(t, []int{100, 200, 250}, ticks)
	assert.Contains(t, events[4].Message, "2 labels, 750 annotations")
}

func TestLabelCounts_WorkerCountDoesNotChangeResult(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 30; i++ {
		writeDoc(t, dir, fmt.Sprintf("f%02d.json", i), fmt.Sprintf("l%d", i%7))
	}

	want, err := testScanner(1).LabelCounts(dir, nil)
	require.NoError(t, err)
	for _, workers := range []int{2, 5, 64} {
		got, err := testScanner(workers).LabelCounts(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestAnalyzeFormat(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.json", "cat", "dog")

	rec := &progress.Recorder{}
	analysis, err := testScanner(2).AnalyzeFormat(dir, progress.NewEmitter("analyze", rec))
	require.NoError(t, err)
	assert.Equal(t, labelme.FormatBbox2Point, analysis.InputFormat)
	assert.Equal(t, 1.0, analysis.Confidence)

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, 30, events[1].Current)
	assert.Contains(t, events[3].Message, "confidence 100.0%")
}

func TestAsyncJobs(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.json", "cat")
	s := testScanner(2)
	ctx := context.Background()

	labels := s.LabelsAsync(ctx, dir, nil)
	counts := s.LabelCountsAsync(ctx, dir, nil)
	analysis := s.AnalyzeFormatAsync(ctx, dir, nil)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	l, err := labels.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, l)
	assert.Equal(t, JobStatusCompleted, labels.Status())
	assert.NotEmpty(t, labels.ID)

	c, err := counts.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cat": 1}, c)

	a, err := analysis.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, a.TotalFiles)
}

func TestAsyncJob_Failure(t *testing.T) {
	job := testScanner(1).LabelsAsync(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	<-job.Done()
	_, err := job.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, JobStatusFailed, job.Status())
}

func TestAsyncJob_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := testScanner(1).LabelsAsync(ctx, t.TempDir(), nil)
	<-job.Done()
	assert.Equal(t, JobStatusCancelled, job.Status())
	_, err := job.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_UsesListingCache(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.json", "cat")

	cache := dataset.NewListingCache(time.Hour)
	s := New(DefaultConfig(), cache)

	labels, err := s.Labels(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, labels)
	assert.Equal(t, 1, cache.Len())

	// New files stay invisible until the listing is invalidated.
	writeDoc(t, dir, "b.json", "dog")
	labels, err = s.Labels(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, labels)

	cache.Invalidate(dir)
	labels, err = s.Labels(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, labels)
}

func TestSummarize(t *testing.T) {
	rows := Summarize(map[string]int{"dog": 2, "cat": 5, "ant": 2})
	require.Len(t, rows, 3)
	assert.Equal(t, "cat", rows[0].Label)
	assert.Equal(t, "ant", rows[1].Label)
	assert.Equal(t, "dog", rows[2].Label)
	for _, r := range rows {
		assert.Regexp(t, `^#[0-9a-f]{6}$`, r.Color)
	}

	p1 := Palette([]string{"b", "a", "c"})
	p2 := Palette([]string{"c", "b", "a"})
	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1["a"], p1["b"])
}
