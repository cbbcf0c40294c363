// Package aggregate folds the raw prediction list of one inference stage
// into the searchable text blob and confidence score stored per picture.
package aggregate

import (
	"strings"

	"picfinder/internal/vision"
)

// Combine joins the labels of preds with single spaces, preserving input
// order, and averages their confidences (unweighted arithmetic mean).
//
// An empty or nil input yields ("", 0): a disabled stage and a stage that
// found nothing are indistinguishable in the stored record, which is
// intentional. The same fold applies to classification labels, detection
// labels and OCR fragments.
func Combine(preds []vision.Prediction) (string, float64) {
	if len(preds) == 0 {
		return "", 0
	}

	labels := make([]string, len(preds))
	var sum float64
	for i, p := range preds {
		labels[i] = p.Label
		sum += p.Confidence
	}

	return strings.Join(labels, " "), sum / float64(len(preds))
}
