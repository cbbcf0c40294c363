package vision

import "fmt"

// ModelNone disables a stage. It is a valid selection for the classification
// and OCR model fields and for the detection model field.
const ModelNone = "None"

// ClassificationModel identifies a supported classification model.
type ClassificationModel string

// Supported classification models.
const (
	ClassificationNone ClassificationModel = ModelNone
	YOLO11nCls         ClassificationModel = "YOLO11n"
	YOLO11sCls         ClassificationModel = "YOLO11s"
	YOLO11mCls         ClassificationModel = "YOLO11m"
	YOLO11lCls         ClassificationModel = "YOLO11l"
	YOLO11xCls         ClassificationModel = "YOLO11x"
)

var classificationFiles = map[ClassificationModel]string{
	YOLO11nCls: "yolo11n-cls.onnx",
	YOLO11sCls: "yolo11s-cls.onnx",
	YOLO11mCls: "yolo11m-cls.onnx",
	YOLO11lCls: "yolo11l-cls.onnx",
	YOLO11xCls: "yolo11x-cls.onnx",
}

// Enabled reports whether the selection names an actual model.
func (m ClassificationModel) Enabled() bool { return m != ClassificationNone && m != "" }

// ModelFile returns the ONNX file name for the model.
func (m ClassificationModel) ModelFile() (string, error) {
	if file, ok := classificationFiles[m]; ok {
		return file, nil
	}
	return "", fmt.Errorf("unknown classification model %q", string(m))
}

// Validate returns a configuration error for identifiers outside the registry.
func (m ClassificationModel) Validate() error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.ModelFile()
	return err
}

// DetectionModel identifies a supported object-detection model.
type DetectionModel string

// Supported object-detection models.
const (
	DetectionNone DetectionModel = ModelNone
	YOLO11n       DetectionModel = "YOLO11n"
	YOLO11s       DetectionModel = "YOLO11s"
	YOLO11m       DetectionModel = "YOLO11m"
	YOLO11l       DetectionModel = "YOLO11l"
	YOLO11x       DetectionModel = "YOLO11x"
)

var detectionFiles = map[DetectionModel]string{
	YOLO11n: "yolo11n.onnx",
	YOLO11s: "yolo11s.onnx",
	YOLO11m: "yolo11m.onnx",
	YOLO11l: "yolo11l.onnx",
	YOLO11x: "yolo11x.onnx",
}

// Enabled reports whether the selection names an actual model.
func (m DetectionModel) Enabled() bool { return m != DetectionNone && m != "" }

// ModelFile returns the ONNX file name for the model.
func (m DetectionModel) ModelFile() (string, error) {
	if file, ok := detectionFiles[m]; ok {
		return file, nil
	}
	return "", fmt.Errorf("unknown object detection model %q", string(m))
}

// Validate returns a configuration error for identifiers outside the registry.
func (m DetectionModel) Validate() error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.ModelFile()
	return err
}

// Dataset identifies a label table a detection model was trained against.
type Dataset string

// Supported detection datasets.
const (
	DatasetCOCO Dataset = "COCO"
)

// Labels returns the class-id ordered label table for the dataset.
func (d Dataset) Labels() ([]string, error) {
	switch d {
	case DatasetCOCO:
		return cocoLabels, nil
	default:
		return nil, fmt.Errorf("unknown detection dataset %q", string(d))
	}
}

// Validate returns a configuration error for identifiers outside the registry.
func (d Dataset) Validate() error {
	_, err := d.Labels()
	return err
}

// OCRModel identifies a supported text-recognition model.
type OCRModel string

// Supported OCR models.
const (
	OCRNone     OCRModel = ModelNone
	OCRRapidOCR OCRModel = "RapidOCR"
)

// Enabled reports whether the selection names an actual model.
func (m OCRModel) Enabled() bool { return m != OCRNone && m != "" }

// Validate returns a configuration error for identifiers outside the registry.
func (m OCRModel) Validate() error {
	switch m {
	case OCRNone, OCRRapidOCR, "":
		return nil
	default:
		return fmt.Errorf("unknown OCR model %q", string(m))
	}
}

// IndexConfig carries the read-only configuration for one indexing run, as
// supplied by the settings layer.
type IndexConfig struct {
	Classification          ClassificationModel
	ClassificationThreshold float64

	Detection           DetectionModel
	DetectionDatasets   []Dataset
	DetectionConfidence float64
	DetectionIoU        float64

	OCR OCRModel

	FullRebuild bool
	BatchSize   int
}

// Validate checks model identifiers and numeric ranges. It is the single
// gate between the settings layer and the pipeline; the pipeline assumes a
// validated config.
func (c IndexConfig) Validate() error {
	if err := c.Classification.Validate(); err != nil {
		return err
	}
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.OCR.Validate(); err != nil {
		return err
	}
	for _, dataset := range c.DetectionDatasets {
		if err := dataset.Validate(); err != nil {
			return err
		}
	}
	if c.Classification.Enabled() && (c.ClassificationThreshold < 0 || c.ClassificationThreshold > 1) {
		return fmt.Errorf("classification threshold %v outside [0,1]", c.ClassificationThreshold)
	}
	if c.Detection.Enabled() {
		if c.DetectionConfidence < 0 || c.DetectionConfidence > 1 {
			return fmt.Errorf("detection confidence threshold %v outside [0,1]", c.DetectionConfidence)
		}
		if c.DetectionIoU < 0 || c.DetectionIoU > 1 {
			return fmt.Errorf("detection IoU threshold %v outside [0,1]", c.DetectionIoU)
		}
		if len(c.DetectionDatasets) == 0 {
			return fmt.Errorf("object detection enabled without a dataset selection")
		}
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}
