package indexer

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"picfinder/internal/aggregate"
	"picfinder/internal/database"
	"picfinder/internal/filesystem"
	"picfinder/internal/fingerprint"
	"picfinder/internal/imageio"
	"picfinder/internal/logging"
	"picfinder/internal/memory"
	"picfinder/internal/metrics"
	"picfinder/internal/vision"
	"picfinder/internal/workers"
)

// Progress is an advisory snapshot of a running indexing run. Consumers must
// not derive correctness from it.
type Progress struct {
	RunID      string    `json:"runId"`
	Running    bool      `json:"running"`
	TotalItems int       `json:"totalItems"`
	Read       int       `json:"read"`
	Classified int       `json:"classified"`
	Detected   int       `json:"detected"`
	Recognized int       `json:"recognized"`
	Written    int       `json:"written"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
	Errored    int       `json:"errored"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// Summary is the outcome of a completed (or aborted) run.
type Summary struct {
	RunID     string `json:"runId"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Deleted   int    `json:"deleted"`
	Errored   int    `json:"errored"`
}

// Options carries the optional hooks for a run. The callbacks may be
// invoked concurrently from pipeline goroutines and must not block.
type Options struct {
	// OnProgress receives advisory progress snapshots.
	OnProgress func(Progress)
	// OnError receives per-item errors as they are degraded. Run-level
	// errors are returned from Run, not reported here.
	OnError func(error)
	// Monitor, when set, pauses batch loading on memory pressure.
	Monitor *memory.Monitor
}

// Pipeline drains one plan through the enabled inference stages in batches
// and writes the aggregated results to the catalog. One Pipeline serves one
// run.
type Pipeline struct {
	store  *database.Store
	stages vision.Stages
	cfg    vision.IndexConfig
	opts   Options
	runID  string

	totalItems int
	startedAt  time.Time

	read       atomic.Int64
	classified atomic.Int64
	detected   atomic.Int64
	recognized atomic.Int64
	written    atomic.Int64
	deleted    atomic.Int64
	errored    atomic.Int64
	skipped    atomic.Int64
	running    atomic.Bool

	progress atomic.Value // Progress
}

// NewPipeline creates a pipeline for one run. cfg must already be validated.
func NewPipeline(store *database.Store, cfg vision.IndexConfig, stages vision.Stages, opts Options) *Pipeline {
	p := &Pipeline{
		store:  store,
		stages: stages,
		cfg:    cfg,
		opts:   opts,
		runID:  uuid.NewString(),
	}
	p.progress.Store(Progress{RunID: p.runID})
	return p
}

// RunID identifies this run in progress snapshots and logs.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Progress returns the latest advisory snapshot.
func (p *Pipeline) Progress() Progress {
	if progress, ok := p.progress.Load().(Progress); ok {
		return progress
	}
	return Progress{RunID: p.runID}
}

// batchItem is one work item read into memory, or its degradation record.
type batchItem struct {
	work WorkItem
	hash string
	img  image.Image
	err  error
}

// Run executes the plan: deletions first, then a history entry, then the
// work items in batches of the configured size. Per-item failures degrade
// the item; a stage or store failure aborts the run after the last
// committed batch. Cancellation is honored at batch boundaries only.
func (p *Pipeline) Run(ctx context.Context, plan *Plan) (*Summary, error) {
	metrics.IndexerRunsTotal.Inc()
	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)

	p.startedAt = time.Now()
	p.totalItems = len(plan.Items)
	p.skipped.Store(int64(plan.Skipped))
	p.running.Store(true)
	defer p.running.Store(false)
	defer func() {
		metrics.IndexerRunDuration.Observe(time.Since(p.startedAt).Seconds())
		p.updateProgress()
	}()

	logging.Info("Run %s: %d items in batches of %d, %d deletions",
		p.runID, p.totalItems, p.cfg.BatchSize, len(plan.Deletions))

	if err := p.applyDeletions(plan.Deletions); err != nil {
		metrics.IndexerErrors.Inc()
		return p.summary(), err
	}

	p.appendHistory(ctx)

	for start := 0; start < len(plan.Items); start += p.cfg.BatchSize {
		select {
		case <-ctx.Done():
			logging.Info("Run %s cancelled after %d items", p.runID, p.written.Load())
			return p.summary(), ctx.Err()
		default:
		}

		if p.opts.Monitor != nil && !p.opts.Monitor.WaitIfPaused() {
			metrics.IndexerErrors.Inc()
			return p.summary(), fmt.Errorf("run %s aborted: memory monitor stopped", p.runID)
		}

		end := min(start+p.cfg.BatchSize, len(plan.Items))
		if err := p.processBatch(ctx, plan.Items[start:end]); err != nil {
			metrics.IndexerErrors.Inc()
			return p.summary(), fmt.Errorf("run %s aborted: %w", p.runID, err)
		}
	}

	summary := p.summary()
	logging.Info("Run %s complete: %d processed, %d skipped, %d deleted, %d errored in %v",
		p.runID, summary.Processed, summary.Skipped, summary.Deleted, summary.Errored, time.Since(p.startedAt))

	return summary, nil
}

// applyDeletions removes catalog rows for files gone from disk, in one
// transaction, before any batch is processed.
func (p *Pipeline) applyDeletions(deletions []string) error {
	if len(deletions) == 0 {
		return nil
	}

	tx, err := p.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin deletion transaction: %w", err)
	}

	for _, relPath := range deletions {
		if err := p.store.Remove(tx, relPath); err != nil {
			if endErr := p.store.EndBatch(tx, err); endErr != nil {
				logging.Error("failed to roll back deletions: %v", endErr)
			}
			return fmt.Errorf("failed to delete %s: %w", relPath, err)
		}
		logging.Info("Removing %s from catalog", relPath)
	}

	if err := p.store.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit deletions: %w", err)
	}

	p.deleted.Store(int64(len(deletions)))
	metrics.IndexerItemsTotal.WithLabelValues("deleted").Add(float64(len(deletions)))
	p.updateProgress()
	return nil
}

// appendHistory records the run configuration. Audit data: a failure is
// logged and the run continues.
func (p *Pipeline) appendHistory(ctx context.Context) {
	datasets := make([]string, len(p.cfg.DetectionDatasets))
	for i, d := range p.cfg.DetectionDatasets {
		datasets[i] = string(d)
	}

	entry := &database.HistoryEntry{
		ClassificationModel:     string(p.cfg.Classification),
		ClassificationThreshold: p.cfg.ClassificationThreshold,
		DetectionModel:          string(p.cfg.Detection),
		DetectionDatasets:       strings.Join(datasets, ","),
		DetectionConfidence:     p.cfg.DetectionConfidence,
		DetectionIoU:            p.cfg.DetectionIoU,
		OCRModel:                string(p.cfg.OCR),
		FullUpdate:              p.cfg.FullRebuild,
	}

	if err := p.store.AppendHistory(ctx, entry); err != nil {
		logging.Warn("Run %s: history entry not recorded: %v", p.runID, err)
	}
}

// processBatch reads and hashes one batch, runs the enabled stages over its
// decoded images concurrently, merges per-image results by index and writes
// them in one transaction.
func (p *Pipeline) processBatch(ctx context.Context, batch []WorkItem) error {
	items := p.loadBatch(batch)

	// Only successfully decoded images go to the stages.
	images := make([]image.Image, 0, len(items))
	for i := range items {
		if items[i].err == nil {
			images = append(images, items[i].img)
		}
	}

	results, err := p.runStages(ctx, images)
	if err != nil {
		return err
	}

	return p.writeBatch(items, results)
}

// loadBatch reads every file of the batch into memory, fingerprinting and
// decoding it across a small worker pool. A failure degrades that item
// only.
func (p *Pipeline) loadBatch(batch []WorkItem) []batchItem {
	items := make([]batchItem, len(batch))
	indexes := make(chan int)
	retry := filesystem.DefaultRetryConfig()

	var wg sync.WaitGroup
	for range workers.ForMixed(len(batch)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				p.loadItem(&items[i], retry)
				p.read.Add(1)
				p.updateProgress()
			}
		}()
	}

	for i, work := range batch {
		items[i].work = work
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return items
}

// loadItem reads, fingerprints and decodes one work item in place.
func (p *Pipeline) loadItem(item *batchItem, retry filesystem.RetryConfig) {
	data, err := filesystem.ReadFileWithRetry(item.work.AbsPath, retry)
	if err != nil {
		item.err = fmt.Errorf("read %s: %w", item.work.RelPath, err)
		p.degrade(item.err)
		return
	}

	item.hash = fingerprint.Sum(data)

	img, err := imageio.Decode(data)
	if err != nil {
		item.err = fmt.Errorf("decode %s: %w", item.work.RelPath, err)
		p.degrade(item.err)
		return
	}

	item.img = img
}

// stageResults holds per-image prediction lists for each enabled stage,
// aligned to the stage input order.
type stageResults struct {
	classification [][]vision.Prediction
	objects        [][]vision.Prediction
	text           [][]vision.Prediction
}

// runStages executes the enabled stages concurrently over the batch's
// decoded images. The stages are read-only over the shared images and write
// disjoint result slots, so they need no locking. A stage error or a
// misaligned result list is fatal for the run.
func (p *Pipeline) runStages(ctx context.Context, images []image.Image) (*stageResults, error) {
	results := &stageResults{}
	var clsErr, objErr, ocrErr error
	var wg sync.WaitGroup

	if p.stages.Classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			results.classification, clsErr = p.stages.Classifier.Classify(ctx, images)
			metrics.IndexerStageDuration.WithLabelValues("classification").Observe(time.Since(start).Seconds())
			p.classified.Add(int64(len(images)))
			p.updateProgress()
		}()
	}

	if p.stages.Detector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			results.objects, objErr = p.stages.Detector.Detect(ctx, images)
			metrics.IndexerStageDuration.WithLabelValues("object_detection").Observe(time.Since(start).Seconds())
			p.detected.Add(int64(len(images)))
			p.updateProgress()
		}()
	}

	if p.stages.Recognizer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			results.text, ocrErr = p.stages.Recognizer.Recognize(ctx, images)
			metrics.IndexerStageDuration.WithLabelValues("ocr").Observe(time.Since(start).Seconds())
			p.recognized.Add(int64(len(images)))
			p.updateProgress()
		}()
	}

	wg.Wait()

	if clsErr != nil {
		return nil, fmt.Errorf("classification stage failed: %w", clsErr)
	}
	if objErr != nil {
		return nil, fmt.Errorf("object detection stage failed: %w", objErr)
	}
	if ocrErr != nil {
		return nil, fmt.Errorf("OCR stage failed: %w", ocrErr)
	}

	if p.stages.Classifier != nil && len(results.classification) != len(images) {
		return nil, fmt.Errorf("classification stage returned %d results for %d images", len(results.classification), len(images))
	}
	if p.stages.Detector != nil && len(results.objects) != len(images) {
		return nil, fmt.Errorf("object detection stage returned %d results for %d images", len(results.objects), len(images))
	}
	if p.stages.Recognizer != nil && len(results.text) != len(images) {
		return nil, fmt.Errorf("OCR stage returned %d results for %d images", len(results.text), len(images))
	}

	return results, nil
}

// writeBatch zips stage results back onto the batch items by index,
// aggregates each stage's pairs and upserts the merged records in one
// transaction. Degraded items are not written.
func (p *Pipeline) writeBatch(items []batchItem, results *stageResults) error {
	tx, err := p.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	imageIdx := 0
	written := 0
	for i := range items {
		if items[i].err != nil {
			continue
		}

		rec := &database.PictureRecord{
			Hash: items[i].hash,
			Path: items[i].work.RelPath,
		}
		if results.classification != nil {
			rec.Classification, rec.ClassificationConfidence = aggregate.Combine(results.classification[imageIdx])
		}
		if results.objects != nil {
			rec.Object, rec.ObjectConfidence = aggregate.Combine(results.objects[imageIdx])
		}
		if results.text != nil {
			rec.OCR, rec.OCRConfidence = aggregate.Combine(results.text[imageIdx])
		}
		imageIdx++

		if err := p.store.Upsert(tx, rec); err != nil {
			if endErr := p.store.EndBatch(tx, err); endErr != nil {
				logging.Error("failed to roll back batch: %v", endErr)
			}
			return fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
		}
		written++
	}

	if err := p.store.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	p.written.Add(int64(written))
	metrics.IndexerItemsTotal.WithLabelValues("processed").Add(float64(written))
	p.updateProgress()
	return nil
}

// degrade records a per-item failure without aborting anything.
func (p *Pipeline) degrade(err error) {
	p.errored.Add(1)
	metrics.IndexerItemsTotal.WithLabelValues("errored").Inc()
	logging.Warn("Run %s: %v", p.runID, err)
	if p.opts.OnError != nil {
		p.opts.OnError(err)
	}
}

func (p *Pipeline) summary() *Summary {
	return &Summary{
		RunID:     p.runID,
		Processed: int(p.written.Load()),
		Skipped:   int(p.skipped.Load()),
		Deleted:   int(p.deleted.Load()),
		Errored:   int(p.errored.Load()),
	}
}

// updateProgress publishes a fresh snapshot and notifies the caller.
func (p *Pipeline) updateProgress() {
	progress := Progress{
		RunID:      p.runID,
		Running:    p.running.Load(),
		TotalItems: p.totalItems,
		Read:       int(p.read.Load()),
		Classified: int(p.classified.Load()),
		Detected:   int(p.detected.Load()),
		Recognized: int(p.recognized.Load()),
		Written:    int(p.written.Load()),
		Deleted:    int(p.deleted.Load()),
		Skipped:    int(p.skipped.Load()),
		Errored:    int(p.errored.Load()),
		StartedAt:  p.startedAt,
	}
	progress.Message = p.composeMessage(progress)

	p.progress.Store(progress)
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(progress)
	}
}

// composeMessage builds the human-readable progress line from whichever
// stages are enabled.
func (p *Pipeline) composeMessage(progress Progress) string {
	var parts []string
	if p.stages.Classifier != nil {
		parts = append(parts, fmt.Sprintf("Classification progress: %d/%d", progress.Classified, progress.TotalItems))
	}
	if p.stages.Detector != nil {
		parts = append(parts, fmt.Sprintf("Object detection progress: %d/%d", progress.Detected, progress.TotalItems))
	}
	if p.stages.Recognizer != nil {
		parts = append(parts, fmt.Sprintf("OCR progress: %d/%d", progress.Recognized, progress.TotalItems))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Processed %d/%d files", progress.Written, progress.TotalItems)
	}
	return strings.Join(parts, ", ")
}
