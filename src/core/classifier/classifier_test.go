package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"lungscan-server-go/src/configs"
	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
)

var testLabels = []string{"Bengin cases", "Malignant cases", "Normal cases"}

// fakeEngine returns a fixed score vector.
type fakeEngine struct {
	scores []float32
	err    error
	calls  int
}

func (e *fakeEngine) Predict(ctx context.Context, tensor [][][][]float32) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.scores, nil
}

func newTestLogger(t *testing.T) *utils.Logger {
	t.Helper()

	config := &configs.Config{}
	config.Log.LogDir = t.TempDir()
	config.Log.LogFile = "test.log"

	logger, err := utils.NewLogger(config)
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return logger
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		scores        []float32
		expectedLabel string
	}{
		{name: "normal wins", scores: []float32{0.1, 0.2, 0.7}, expectedLabel: "Normal cases"},
		{name: "malignant wins", scores: []float32{0.05, 0.9, 0.05}, expectedLabel: "Malignant cases"},
		{name: "first label on tie", scores: []float32{0.4, 0.4, 0.2}, expectedLabel: "Bengin cases"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&fakeEngine{scores: tt.scores}, testLabels, 224, newTestLogger(t))

			result, err := service.Classify(context.Background(), testPNG(t))
			if err != nil {
				t.Fatalf("Classify returned error: %v", err)
			}

			if result.Label != tt.expectedLabel {
				t.Errorf("label = %q, want %q", result.Label, tt.expectedLabel)
			}
			if result.Confidence < 0 || result.Confidence > 1 {
				t.Errorf("confidence = %f outside [0,1]", result.Confidence)
			}
		})
	}
}

func TestClassify_InvalidImage(t *testing.T) {
	engine := &fakeEngine{scores: []float32{1, 0, 0}}
	service := NewService(engine, testLabels, 224, newTestLogger(t))

	_, err := service.Classify(context.Background(), []byte("not an image"))
	if !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("error = %v, want ErrInvalidImage", err)
	}
	if engine.calls != 0 {
		t.Error("engine must not be called for undecodable input")
	}
}

func TestClassify_EngineFailure(t *testing.T) {
	service := NewService(&fakeEngine{err: fmt.Errorf("runtime down")}, testLabels, 224, newTestLogger(t))

	_, err := service.Classify(context.Background(), testPNG(t))
	if !errors.Is(err, types.ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
}

func TestVerifyLabels(t *testing.T) {
	t.Run("matching width", func(t *testing.T) {
		service := NewService(&fakeEngine{scores: []float32{0.3, 0.3, 0.4}}, testLabels, 8, newTestLogger(t))
		if err := service.VerifyLabels(context.Background()); err != nil {
			t.Errorf("VerifyLabels returned error: %v", err)
		}
	})

	t.Run("width mismatch", func(t *testing.T) {
		service := NewService(&fakeEngine{scores: []float32{0.5, 0.5}}, testLabels, 8, newTestLogger(t))
		err := service.VerifyLabels(context.Background())
		if !errors.Is(err, types.ErrModelUnavailable) {
			t.Errorf("error = %v, want ErrModelUnavailable", err)
		}
	})

	t.Run("engine unreachable", func(t *testing.T) {
		service := NewService(&fakeEngine{err: fmt.Errorf("connection refused")}, testLabels, 8, newTestLogger(t))
		err := service.VerifyLabels(context.Background())
		if !errors.Is(err, types.ErrModelUnavailable) {
			t.Errorf("error = %v, want ErrModelUnavailable", err)
		}
	})
}
