package analysis

import (
	"context"
	"fmt"

	"lungscan-server-go/src/core/imaging"
	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
)

// DefaultDescription is used when the client sends no description field.
const DefaultDescription = "Lung X-ray or CT scan image"

const promptTemplate = `You are a medical imaging expert. Given a lung cancer image, provide:

1. Stage of abnormality (early/late/none).
2. Signs of benign or malignant features.
3. Reasoning for your diagnosis.

Image Description: %s`

// Outcome is the tagged result of one analysis: exactly one of Analysis or
// Error is set. Failures travel as data so the endpoint can stay 200.
type Outcome struct {
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Analyzer sends lung images to a vision-capable LLM for free-text
// assessment.
type Analyzer struct {
	provider types.VisionProvider
	logger   *utils.Logger
}

// NewAnalyzer creates the analyzer.
func NewAnalyzer(provider types.VisionProvider, logger *utils.Logger) *Analyzer {
	return &Analyzer{
		provider: provider,
		logger:   logger,
	}
}

// Analyze builds the instructional prompt, re-encodes the image as a base64
// PNG data URI and sends both to the vision provider. It never returns a Go
// error: decode, encode and upstream failures all come back inside the
// Outcome.
func (a *Analyzer) Analyze(ctx context.Context, imageBytes []byte, description string) Outcome {
	if description == "" {
		description = DefaultDescription
	}

	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return Outcome{Error: err.Error()}
	}

	dataURI, err := imaging.ToPNGDataURI(img)
	if err != nil {
		return Outcome{Error: err.Error()}
	}

	prompt := fmt.Sprintf(promptTemplate, description)

	text, err := a.provider.ChatWithImage(ctx, nil, dataURI, prompt)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("vision analysis failed: %v", err))
		return Outcome{Error: err.Error()}
	}

	return Outcome{Analysis: text}
}
