package classifier

import (
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures an ONNX classifier.
type ONNXConfig struct {
	// ModelPath is the .onnx file. It takes one [1, dimension] float32 input.
	ModelPath string

	// SharedLibraryPath overrides the onnxruntime library location.
	SharedLibraryPath string

	InputName  string
	OutputName string

	// Dimension is the embedding length fed to the model.
	Dimension int

	// Threshold is the positive class probability at or above which a
	// prompt is malicious.
	Threshold float64

	// Output is OutputProbabilities or OutputLogits. Empty means
	// probabilities.
	Output string
}

// Model output forms.
const (
	OutputProbabilities = "probabilities"
	OutputLogits        = "logits"
)

// ONNX scores embeddings with an onnxruntime session. The session reuses
// its input and output tensors, so Predict is serialized.
type ONNX struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	threshold float64
	logits    bool

	mu sync.Mutex
}

var _ Classifier = (*ONNX)(nil)

// LoadONNX initializes the runtime and opens the model.
func LoadONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	switch cfg.Output {
	case "", OutputProbabilities, OutputLogits:
	default:
		return nil, fmt.Errorf("unknown model output %q", cfg.Output)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", cfg.ModelPath, err)
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	width, err := outputWidth(cfg.ModelPath, cfg.OutputName)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Dimension)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, width))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNX{
		session:   session,
		input:     input,
		output:    output,
		threshold: cfg.Threshold,
		logits:    cfg.Output == OutputLogits,
	}, nil
}

// outputWidth reads the class count of the named output. Dynamic or
// missing dimensions count as a single probability.
func outputWidth(modelPath, name string) (int64, error) {
	_, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return 0, fmt.Errorf("inspect model: %w", err)
	}
	for _, o := range outputs {
		if o.Name != name {
			continue
		}
		if len(o.Dimensions) >= 2 && o.Dimensions[len(o.Dimensions)-1] > 0 {
			return o.Dimensions[len(o.Dimensions)-1], nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("model has no output named %q", name)
}

// Predict implements Classifier.
func (m *ONNX) Predict(vector []float32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.input.GetData()
	if len(vector) != len(in) {
		return false, fmt.Errorf("vector has %d dimensions, model expects %d", len(vector), len(in))
	}
	copy(in, vector)

	if err := m.session.Run(); err != nil {
		return false, fmt.Errorf("onnx run: %w", err)
	}
	return positiveScore(m.output.GetData(), m.logits) >= m.threshold, nil
}

// Close releases the session and its tensors.
func (m *ONNX) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, destroy := range []func() error{m.session.Destroy, m.input.Destroy, m.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// positiveScore returns the probability of the malicious class: the single
// output value for one-column models, otherwise column 1, passed through
// softmax when the model emits logits.
func positiveScore(out []float32, logits bool) float64 {
	switch {
	case len(out) == 0:
		return 0
	case len(out) == 1:
		return float64(out[0])
	case !logits:
		return float64(out[1])
	}

	var sum float64
	maxLogit := float64(out[0])
	for _, v := range out[1:] {
		maxLogit = math.Max(maxLogit, float64(v))
	}
	for _, v := range out {
		sum += math.Exp(float64(v) - maxLogit)
	}
	return math.Exp(float64(out[1])-maxLogit) / sum
}
