package vision

import (
	"context"
	"image"
)

// Prediction is a single label (or recognized text fragment) with its
// confidence score in [0,1].
type Prediction struct {
	Label      string
	Confidence float64
}

// Classifier assigns whole-image classification labels.
//
// Implementations must return one prediction list per input image, in input
// order. The alignment is load-bearing: the pipeline merges stage results by
// index, so a shifted or truncated result list attaches labels to the wrong
// images.
type Classifier interface {
	Classify(ctx context.Context, images []image.Image) ([][]Prediction, error)
}

// Detector finds object instances in images. Same alignment contract as
// Classifier.
type Detector interface {
	Detect(ctx context.Context, images []image.Image) ([][]Prediction, error)
}

// Recognizer extracts text fragments from images. Same alignment contract as
// Classifier.
type Recognizer interface {
	Recognize(ctx context.Context, images []image.Image) ([][]Prediction, error)
}

// Stages bundles the enabled inference capabilities for one indexing run.
// A nil field means the stage is disabled ("None" model selection); the
// pipeline skips it and leaves the corresponding record fields empty.
type Stages struct {
	Classifier Classifier
	Detector   Detector
	Recognizer Recognizer
}

// Any reports whether at least one stage is enabled.
func (s Stages) Any() bool {
	return s.Classifier != nil || s.Detector != nil || s.Recognizer != nil
}
