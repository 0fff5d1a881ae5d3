package classifier

import (
	"context"
	"fmt"

	"lungscan-server-go/src/core/imaging"
	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
)

// Engine is the black-box inference runtime behind the classification
// service. Implementations must be safe for concurrent use; the service
// issues parallel Predict calls without locking.
type Engine interface {
	Predict(ctx context.Context, tensor [][][][]float32) ([]float32, error)
}

// Result of one classification.
type Result struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Service wraps the engine with the fixed preprocessing pipeline and the
// index-to-label mapping.
type Service struct {
	engine    Engine
	labels    []string
	inputSize int
	logger    *utils.Logger
}

// NewService creates the classification service.
func NewService(engine Engine, labels []string, inputSize int, logger *utils.Logger) *Service {
	return &Service{
		engine:    engine,
		labels:    labels,
		inputSize: inputSize,
		logger:    logger,
	}
}

// VerifyLabels probes the engine once and checks that the score vector
// width matches the configured label list. A mismatch would otherwise be a
// silent correctness bug: every response would carry a wrong label.
func (s *Service) VerifyLabels(ctx context.Context) error {
	probe := make([][][]float32, s.inputSize)
	for y := range probe {
		probe[y] = make([][]float32, s.inputSize)
		for x := range probe[y] {
			probe[y][x] = []float32{0, 0, 0}
		}
	}

	scores, err := s.engine.Predict(ctx, [][][][]float32{probe})
	if err != nil {
		return fmt.Errorf("%w: probe predict: %v", types.ErrModelUnavailable, err)
	}
	if len(scores) != len(s.labels) {
		return fmt.Errorf("%w: model emits %d scores but %d labels are configured",
			types.ErrModelUnavailable, len(scores), len(s.labels))
	}

	s.logger.Info(fmt.Sprintf("classifier ready, %d classes", len(s.labels)))
	return nil
}

// Classify decodes the upload, runs the forward pass and picks the class
// with the maximum score.
func (s *Service) Classify(ctx context.Context, imageBytes []byte) (*Result, error) {
	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return nil, err
	}

	tensor := imaging.ToTensor(img, s.inputSize)

	scores, err := s.engine.Predict(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrModelUnavailable, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: empty score vector", types.ErrModelUnavailable)
	}

	best := 0
	for i, score := range scores {
		if score > scores[best] {
			best = i
		}
	}
	if best >= len(s.labels) {
		return nil, fmt.Errorf("%w: score index %d outside label set", types.ErrModelUnavailable, best)
	}

	return &Result{
		Label:      s.labels[best],
		Confidence: scores[best],
	}, nil
}
