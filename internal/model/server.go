package model

import (
	"errors"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrUnavailable is returned when the model or its label index cannot be
// loaded. Callers choose their own fallback.
var ErrUnavailable = errors.New("model not available")

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initializes ONNX Runtime once per process. libPath
// overrides the shared library location when set.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return envErr
}

// DestroyEnvironment releases ONNX Runtime. Call once at process exit.
func DestroyEnvironment() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// Server runs a single ONNX session. The input and output tensors are
// reused across calls, so Predict is serialized.
type Server struct {
	mu           sync.Mutex
	closed       bool
	session      *ort.AdvancedSession
	Metadata     *Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewServer(modelPath string, metadata *Metadata, libPath string) (*Server, error) {
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (s *Server) Predict(img image.Image) (*Prediction, error) {
	inputData := Preprocess(img, s.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: session closed", ErrUnavailable)
	}

	dst := s.inputTensor.GetData()
	if len(dst) != len(inputData) {
		return nil, fmt.Errorf("input size mismatch: tensor %d, image %d", len(dst), len(inputData))
	}
	copy(dst, inputData)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return topPrediction(s.Metadata, s.outputTensor.GetData())
}

// topPrediction picks the arg-max class among the positions that have a
// label.
func topPrediction(meta *Metadata, output []float32) (*Prediction, error) {
	maxIdx := -1
	predictions := make(map[string]float32, len(meta.Classes))
	for i, p := range output {
		label, ok := meta.Label(i)
		if !ok {
			break
		}
		predictions[label] = p
		if maxIdx < 0 || p > output[maxIdx] {
			maxIdx = i
		}
	}
	if maxIdx < 0 {
		return nil, errors.New("empty model output")
	}

	label, _ := meta.Label(maxIdx)
	return &Prediction{
		Label:       label,
		Index:       maxIdx,
		Confidence:  output[maxIdx],
		Predictions: predictions,
	}, nil
}

// Close releases the session. Later Predict calls return ErrUnavailable.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}
