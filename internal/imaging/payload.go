package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
)

// jpegQuality is used when an embedded payload has to be re-encoded as JPEG.
const jpegQuality = 95

// DecodePayload decodes a base64 image payload as stored in a labelme
// "imageData" field. A data URI prefix ("data:image/png;base64,") is accepted
// and stripped.
func DecodePayload(data string) ([]byte, error) {
	if i := strings.Index(data, ","); i >= 0 {
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return raw, nil
}

// PayloadDimensions reads the size of an embedded image without decoding
// the pixels.
func PayloadDimensions(data string) (Dimensions, error) {
	raw, err := DecodePayload(data)
	if err != nil {
		return Dimensions{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Dimensions{}, fmt.Errorf("failed to decode embedded image header: %w", err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// WritePayload writes an embedded base64 image to destPath.
//
// The payload bytes are written unchanged when their format already matches
// the destination extension (or when either side cannot be identified). When
// the formats differ, for example a PNG payload for an image named "frame.jpg",
// the payload is decoded and re-encoded so the file content agrees with its
// extension. Re-encoding is available for PNG, JPEG and BMP destinations.
//
// Returns the format name of the written file, or "" if it is unknown.
func WritePayload(data, destPath string) (string, error) {
	raw, err := DecodePayload(data)
	if err != nil {
		return "", err
	}

	want := formatForExtension(destPath)
	_, got, sniffErr := image.DecodeConfig(bytes.NewReader(raw))

	enc := encoderFor(want)
	if sniffErr != nil || want == "" || got == want || enc == nil {
		if err := os.WriteFile(destPath, raw, 0o644); err != nil {
			return "", fmt.Errorf("failed to write image: %w", err)
		}
		if sniffErr != nil {
			return "", nil
		}
		return got, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode embedded %s image: %w", got, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create image: %w", err)
	}
	if err := enc(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode %s image: %w", want, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	return want, nil
}

func encoderFor(format string) imgio.Encoder {
	switch format {
	case "png":
		return imgio.PNGEncoder()
	case "jpeg":
		return imgio.JPEGEncoder(jpegQuality)
	case "bmp":
		return imgio.BMPEncoder()
	default:
		return nil
	}
}
