// Package vision defines the boundary to the inference backends and the
// closed registry of supported model identifiers.
//
// The actual ONNX inference is an external capability; the indexing core
// only depends on the Classifier, Detector and Recognizer interfaces, each
// returning label/confidence pairs aligned to its input. Model and dataset
// identifiers form closed enums: an identifier outside the registry is a
// configuration error, never a silent no-op.
package vision
