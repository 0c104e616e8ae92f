package delivery

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Level is a retrieval code error-correction level.
type Level int

// Error-correction levels, by share of the symbol that may be damaged.
const (
	LevelLow      Level = iota // ~7%
	LevelMedium                // ~15%
	LevelQuartile              // ~25%
	LevelHigh                  // ~30%
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelQuartile:
		return "quartile"
	case LevelHigh:
		return "high"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses "low", "medium", "quartile" or "high".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "quartile":
		return LevelQuartile, nil
	case "high":
		return LevelHigh, nil
	}
	return LevelHigh, fmt.Errorf("delivery: unknown code level %q", s)
}

// CodeGenerator renders a scannable code for a URL.
type CodeGenerator interface {
	Encode(url string, level Level) ([]byte, error)
}

// QRGenerator renders PNG QR codes.
type QRGenerator struct {
	// Size is the image edge in pixels. Too small a size for the content
	// yields a larger image rather than an error.
	Size int
}

// NewQRGenerator returns a generator producing size x size PNGs.
func NewQRGenerator(size int) *QRGenerator {
	return &QRGenerator{Size: size}
}

// Encode renders url as a PNG QR code.
func (g *QRGenerator) Encode(url string, level Level) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("delivery: empty code content")
	}
	png, err := qrcode.Encode(url, recovery(level), g.Size)
	if err != nil {
		return nil, fmt.Errorf("delivery: qr encode: %w", err)
	}
	return png, nil
}

// recovery maps Level onto go-qrcode, whose "High" is the 25% level and
// "Highest" the 30% one.
func recovery(l Level) qrcode.RecoveryLevel {
	switch l {
	case LevelLow:
		return qrcode.Low
	case LevelMedium:
		return qrcode.Medium
	case LevelQuartile:
		return qrcode.High
	default:
		return qrcode.Highest
	}
}

var _ CodeGenerator = (*QRGenerator)(nil)
