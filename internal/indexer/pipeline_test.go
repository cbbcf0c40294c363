package indexer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"picfinder/internal/vision"
)

type classifyFunc func(ctx context.Context, images []image.Image) ([][]vision.Prediction, error)

func (f classifyFunc) Classify(ctx context.Context, images []image.Image) ([][]vision.Prediction, error) {
	return f(ctx, images)
}

type detectFunc func(ctx context.Context, images []image.Image) ([][]vision.Prediction, error)

func (f detectFunc) Detect(ctx context.Context, images []image.Image) ([][]vision.Prediction, error) {
	return f(ctx, images)
}

type recognizeFunc func(ctx context.Context, images []image.Image) ([][]vision.Prediction, error)

func (f recognizeFunc) Recognize(ctx context.Context, images []image.Image) ([][]vision.Prediction, error) {
	return f(ctx, images)
}

// constStage returns the same prediction list for every input image.
func constStage(preds ...vision.Prediction) func(context.Context, []image.Image) ([][]vision.Prediction, error) {
	return func(_ context.Context, images []image.Image) ([][]vision.Prediction, error) {
		out := make([][]vision.Prediction, len(images))
		for i := range out {
			out[i] = preds
		}
		return out, nil
	}
}

func testConfig(batchSize int) vision.IndexConfig {
	return vision.IndexConfig{
		Classification: vision.ClassificationNone,
		Detection:      vision.DetectionNone,
		OCR:            vision.OCRRapidOCR,
		BatchSize:      batchSize,
	}
}

func planFor(root string, relPaths ...string) *Plan {
	plan := &Plan{}
	for _, rel := range relPaths {
		plan.Items = append(plan.Items, WorkItem{
			AbsPath: filepath.Join(root, filepath.FromSlash(rel)),
			RelPath: rel,
			Reason:  ReasonNew,
		})
	}
	return plan
}

func TestRunOCROnlyFillsOnlyOCRColumns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sign.png", pngBytes(t, color.White))
	store := openTestStore(t)

	stages := vision.Stages{
		Recognizer: recognizeFunc(constStage(
			vision.Prediction{Label: "stop", Confidence: 0.9},
			vision.Prediction{Label: "ahead", Confidence: 0.7},
		)),
	}

	pipeline := NewPipeline(store, testConfig(4), stages, Options{})
	summary, err := pipeline.Run(context.Background(), planFor(root, "sign.png"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", summary.Processed)
	}

	rec, err := store.Fetch(context.Background(), "sign.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Record not written")
	}
	if rec.OCR != "stop ahead" || rec.OCRConfidence != 0.8 {
		t.Errorf("OCR = (%q, %v), want (\"stop ahead\", 0.8)", rec.OCR, rec.OCRConfidence)
	}
	if rec.Classification != "" || rec.Object != "" {
		t.Errorf("Disabled stages wrote data: classification=%q object=%q", rec.Classification, rec.Object)
	}
	if rec.Hash == "" {
		t.Error("Record has no fingerprint")
	}
}

func TestRunSlicesWorkIntoBatches(t *testing.T) {
	root := t.TempDir()
	rels := []string{"a.png", "b.png", "c.png", "d.png", "e.png"}
	for _, rel := range rels {
		writeFile(t, root, rel, pngBytes(t, color.White))
	}
	store := openTestStore(t)

	var mu sync.Mutex
	var batchSizes []int
	stages := vision.Stages{
		Recognizer: recognizeFunc(func(_ context.Context, images []image.Image) ([][]vision.Prediction, error) {
			mu.Lock()
			batchSizes = append(batchSizes, len(images))
			mu.Unlock()
			return make([][]vision.Prediction, len(images)), nil
		}),
	}

	pipeline := NewPipeline(store, testConfig(2), stages, Options{})
	summary, err := pipeline.Run(context.Background(), planFor(root, rels...))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 5 {
		t.Errorf("Processed = %d, want 5", summary.Processed)
	}
	want := []int{2, 2, 1}
	if fmt.Sprint(batchSizes) != fmt.Sprint(want) {
		t.Errorf("Stage batch sizes = %v, want %v", batchSizes, want)
	}
}

func TestRunDegradesFailedItemsWithoutAborting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good1.png", pngBytes(t, color.White))
	writeFile(t, root, "good2.png", pngBytes(t, color.Black))
	writeFile(t, root, "broken.png", []byte("not a real image"))
	store := openTestStore(t)

	var mu sync.Mutex
	var errs []error
	stages := vision.Stages{
		Recognizer: recognizeFunc(constStage(vision.Prediction{Label: "text", Confidence: 1})),
	}
	opts := Options{OnError: func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}}

	plan := planFor(root, "good1.png", "broken.png", "missing.png", "good2.png")
	pipeline := NewPipeline(store, testConfig(2), stages, opts)
	summary, err := pipeline.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want 2", summary.Processed)
	}
	if summary.Errored != 2 {
		t.Errorf("Errored = %d, want 2", summary.Errored)
	}
	if len(errs) != 2 {
		t.Errorf("OnError called %d times, want 2", len(errs))
	}

	for _, rel := range []string{"good1.png", "good2.png"} {
		rec, err := store.Fetch(context.Background(), rel)
		if err != nil || rec == nil {
			t.Errorf("Healthy item %s not written (err=%v)", rel, err)
		}
	}
	for _, rel := range []string{"broken.png", "missing.png"} {
		rec, err := store.Fetch(context.Background(), rel)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if rec != nil {
			t.Errorf("Degraded item %s was written", rel)
		}
	}
}

func TestRunStageFailureAbortsAfterCommittedBatches(t *testing.T) {
	root := t.TempDir()
	rels := []string{"a.png", "b.png", "c.png", "d.png"}
	for _, rel := range rels {
		writeFile(t, root, rel, pngBytes(t, color.White))
	}
	store := openTestStore(t)

	var calls int
	stages := vision.Stages{
		Recognizer: recognizeFunc(func(_ context.Context, images []image.Image) ([][]vision.Prediction, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("inference backend went away")
			}
			return make([][]vision.Prediction, len(images)), nil
		}),
	}

	pipeline := NewPipeline(store, testConfig(2), stages, Options{})
	summary, err := pipeline.Run(context.Background(), planFor(root, rels...))
	if err == nil {
		t.Fatal("Run succeeded despite stage failure")
	}
	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want the 2 items committed before the failure", summary.Processed)
	}

	rec, fetchErr := store.Fetch(context.Background(), "a.png")
	if fetchErr != nil || rec == nil {
		t.Error("First batch was not preserved after the abort")
	}
}

func TestRunMisalignedStageResultsAbort(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", pngBytes(t, color.White))
	writeFile(t, root, "b.png", pngBytes(t, color.Black))
	store := openTestStore(t)

	stages := vision.Stages{
		Recognizer: recognizeFunc(func(_ context.Context, images []image.Image) ([][]vision.Prediction, error) {
			return make([][]vision.Prediction, len(images)-1), nil
		}),
	}

	pipeline := NewPipeline(store, testConfig(4), stages, Options{})
	if _, err := pipeline.Run(context.Background(), planFor(root, "a.png", "b.png")); err == nil {
		t.Fatal("Run accepted a misaligned stage result list")
	}
}

func TestRunAppliesDeletionsBeforeBatches(t *testing.T) {
	t.TempDir()
	store := openTestStore(t)
	seedRecord(t, store, "gone.png", "old-fingerprint")

	plan := &Plan{Deletions: []string{"gone.png"}}
	pipeline := NewPipeline(store, testConfig(2), vision.Stages{
		Recognizer: recognizeFunc(constStage()),
	}, Options{})

	summary, err := pipeline.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", summary.Deleted)
	}

	rec, err := store.Fetch(context.Background(), "gone.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rec != nil {
		t.Error("Deleted file still present in catalog")
	}
}

func TestRunHonorsCancellationAtBatchBoundary(t *testing.T) {
	root := t.TempDir()
	rels := []string{"a.png", "b.png", "c.png", "d.png"}
	for _, rel := range rels {
		writeFile(t, root, rel, pngBytes(t, color.White))
	}
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	stages := vision.Stages{
		Recognizer: recognizeFunc(func(_ context.Context, images []image.Image) ([][]vision.Prediction, error) {
			cancel()
			return make([][]vision.Prediction, len(images)), nil
		}),
	}

	pipeline := NewPipeline(store, testConfig(2), stages, Options{})
	summary, err := pipeline.Run(ctx, planFor(root, rels...))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want the first batch only", summary.Processed)
	}
}

func TestRunUpdatesChangedRecordInPlace(t *testing.T) {
	root := t.TempDir()
	data := pngBytes(t, color.White)
	writeFile(t, root, "a.png", data)
	store := openTestStore(t)
	seedRecord(t, store, "a.png", "stale-fingerprint")

	stages := vision.Stages{
		Recognizer: recognizeFunc(constStage(vision.Prediction{Label: "fresh", Confidence: 1})),
	}
	pipeline := NewPipeline(store, testConfig(2), stages, Options{})
	if _, err := pipeline.Run(context.Background(), planFor(root, "a.png")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec, err := store.Fetch(context.Background(), "a.png")
	if err != nil || rec == nil {
		t.Fatalf("Fetch failed: rec=%v err=%v", rec, err)
	}
	if rec.Hash == "stale-fingerprint" {
		t.Error("Fingerprint was not refreshed on re-index")
	}
	if rec.OCR != "fresh" {
		t.Errorf("OCR = %q, want %q", rec.OCR, "fresh")
	}
}

func TestProgressMessageListsEnabledStages(t *testing.T) {
	store := openTestStore(t)
	stages := vision.Stages{
		Classifier: classifyFunc(constStage()),
		Recognizer: recognizeFunc(constStage()),
	}
	pipeline := NewPipeline(store, testConfig(2), stages, Options{})
	pipeline.totalItems = 10

	msg := pipeline.composeMessage(Progress{TotalItems: 10, Classified: 4, Recognized: 2})
	want := "Classification progress: 4/10, OCR progress: 2/10"
	if msg != want {
		t.Errorf("composeMessage = %q, want %q", msg, want)
	}
	if strings.Contains(msg, "Object detection") {
		t.Error("Progress message mentions a disabled stage")
	}
}

func TestRunRecordsHistory(t *testing.T) {
	store := openTestStore(t)
	cfg := vision.IndexConfig{
		Classification:          vision.YOLO11nCls,
		ClassificationThreshold: 0.5,
		Detection:               vision.YOLO11n,
		DetectionDatasets:       []vision.Dataset{vision.DatasetCOCO},
		DetectionConfidence:     0.25,
		DetectionIoU:            0.45,
		OCR:                     vision.OCRNone,
		BatchSize:               2,
	}
	stages := vision.Stages{
		Classifier: classifyFunc(constStage()),
		Detector:   detectFunc(constStage()),
	}

	pipeline := NewPipeline(store, cfg, stages, Options{})
	if _, err := pipeline.Run(context.Background(), &Plan{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := store.History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("History has %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.ClassificationModel != string(vision.YOLO11nCls) {
		t.Errorf("History classification model = %q", entry.ClassificationModel)
	}
	if entry.DetectionDatasets != string(vision.DatasetCOCO) {
		t.Errorf("History datasets = %q", entry.DetectionDatasets)
	}
}
