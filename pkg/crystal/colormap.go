package crystal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"microtexture/internal/models"
)

// ReferenceFrame selects the channel convention of the acquisition software.
type ReferenceFrame string

const (
	FrameHKL ReferenceFrame = "HKL"
	FrameTSL ReferenceFrame = "TSL"
)

// ErrInvalidFrame is returned for reference frames other than HKL and TSL.
var ErrInvalidFrame = errors.New("invalid reference frame")

// ParseFrame accepts HKL or TSL in any case. An empty string selects HKL.
func ParseFrame(s string) (ReferenceFrame, error) {
	switch f := ReferenceFrame(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return FrameHKL, nil
	case FrameHKL, FrameTSL:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (must be HKL or TSL)", ErrInvalidFrame, s)
}

// channelOrder returns which c-axis component feeds the R, G and B channels.
// HKL and TSL swap the 100 and 010 permutations.
func channelOrder(frame ReferenceFrame, direction string) ([3]int, error) {
	var perm map[string][3]int
	switch frame {
	case FrameHKL:
		perm = map[string][3]int{"001": {2, 0, 1}, "100": {1, 2, 0}, "010": {0, 1, 2}}
	case FrameTSL:
		perm = map[string][3]int{"001": {2, 0, 1}, "010": {1, 2, 0}, "100": {0, 1, 2}}
	default:
		return [3]int{}, fmt.Errorf("%w: %q", ErrInvalidFrame, frame)
	}
	order, ok := perm[direction]
	if !ok {
		return [3]int{}, fmt.Errorf("%w: %q", ErrInvalidStressAxis, direction)
	}
	return order, nil
}

// CAxisColorMap paints each pixel with the absolute c-axis components mapped
// to RGB. Pixels outside the mask are black.
func CAxisColorMap(caxes models.VectorRaster, mask models.Mask, frame ReferenceFrame, direction string) (models.RGBRaster, error) {
	order, err := channelOrder(frame, direction)
	if err != nil {
		return models.RGBRaster{}, err
	}

	out := models.NewRGBRaster(caxes.Width, caxes.Height)
	n := caxes.Width * caxes.Height
	for i := 0; i < n; i++ {
		if i < len(mask.Valid) && !mask.Valid[i] {
			continue
		}
		for ch := 0; ch < 3; ch++ {
			out.Pix[3*i+ch] = toByte(math.Abs(caxes.Data[3*i+order[ch]]))
		}
	}
	return out, nil
}

// toByte truncates a [0,1] value to a byte the way a uint8 cast of v*255 does.
func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}
