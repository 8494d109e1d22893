package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"

	// NormalizeMobileNet scales pixels to [-1, 1] like MobileNetV2's
	// preprocess_input; NormalizeUnit scales to [0, 1].
	NormalizeMobileNet = "mobilenet"
	NormalizeUnit      = "unit"

	DefaultImageSize = 224
)

// Metadata is the label index persisted next to the model. Classes[i] is
// the label of output position i.
type Metadata struct {
	InputShape    []int64  `json:"input_shape"`
	OutputShape   []int64  `json:"output_shape"`
	Classes       []string `json:"classes"`
	ImageSize     int      `json:"image_size"`
	InputName     string   `json:"input_name,omitempty"`
	OutputName    string   `json:"output_name,omitempty"`
	Layout        string   `json:"layout,omitempty"`
	Normalization string   `json:"normalization,omitempty"`
}

// NewMetadata describes a single-image NHWC MobileNet-style classifier over
// classes.
func NewMetadata(classes []string, imageSize int) *Metadata {
	if imageSize <= 0 {
		imageSize = DefaultImageSize
	}
	s := int64(imageSize)
	return &Metadata{
		InputShape:    []int64{1, s, s, 3},
		OutputShape:   []int64{1, int64(len(classes))},
		Classes:       append([]string(nil), classes...),
		ImageSize:     imageSize,
		InputName:     "input",
		OutputName:    "output",
		Layout:        LayoutNHWC,
		Normalization: NormalizeMobileNet,
	}
}

// LoadMetadata reads and validates a label index document.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the metadata document, creating parent directories.
func (m *Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.Layout == "" {
		m.Layout = LayoutNCHW
	}
	if m.Normalization == "" {
		m.Normalization = NormalizeUnit
	}
	if m.ImageSize <= 0 {
		m.ImageSize = DefaultImageSize
	}
}

func (m *Metadata) Validate() error {
	if len(m.Classes) == 0 {
		return errors.New("metadata has no classes")
	}
	if len(m.InputShape) == 0 || len(m.OutputShape) == 0 {
		return errors.New("metadata is missing tensor shapes")
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("unsupported layout %q", m.Layout)
	}
	if m.Normalization != NormalizeMobileNet && m.Normalization != NormalizeUnit {
		return fmt.Errorf("unsupported normalization %q", m.Normalization)
	}
	return nil
}

// Label returns the label at output position i.
func (m *Metadata) Label(i int) (string, bool) {
	if i < 0 || i >= len(m.Classes) {
		return "", false
	}
	return m.Classes[i], true
}

// Prediction is the arg-max result of one inference.
type Prediction struct {
	Label       string             `json:"label"`
	Index       int                `json:"index"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions,omitempty"`
}
