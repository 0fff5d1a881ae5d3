package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"lungscan-server-go/src/core/types"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WEBP decoder
)

// Decode parses uploaded bytes into an image. Undecodable input wraps
// types.ErrInvalidImage.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", types.ErrInvalidImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidImage, err)
	}

	return img, nil
}

// ToTensor scales the image to size x size, converts it to 3-channel RGB,
// normalizes pixel values into [0,1] and adds a leading batch dimension of
// one. Pure and deterministic.
func ToTensor(img image.Image, size int) [][][][]float32 {
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	pixels := make([][][]float32, size)
	for y := 0; y < size; y++ {
		row := make([][]float32, size)
		for x := 0; x < size; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			row[x] = []float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(b>>8) / 255.0,
			}
		}
		pixels[y] = row
	}

	return [][][][]float32{pixels}
}

// ToPNGDataURI re-encodes the image as PNG and wraps it in a base64 data
// URI for multimodal chat messages.
func ToPNGDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %v", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DetectFormat reports the image format from the file header.
func DetectFormat(data []byte) string {
	switch {
	case hasJPEGHeader(data):
		return "jpeg"
	case hasPNGHeader(data):
		return "png"
	case hasGIFHeader(data):
		return "gif"
	case hasBMPHeader(data):
		return "bmp"
	case hasWebPHeader(data):
		return "webp"
	default:
		return ""
	}
}

func hasJPEGHeader(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

func hasPNGHeader(data []byte) bool {
	return len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A
}

func hasGIFHeader(data []byte) bool {
	return len(data) >= 6 &&
		data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 &&
		(data[4] == 0x37 || data[4] == 0x39) && data[5] == 0x61
}

func hasBMPHeader(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x42 && data[1] == 0x4D
}

func hasWebPHeader(data []byte) bool {
	return len(data) >= 12 &&
		data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50
}
