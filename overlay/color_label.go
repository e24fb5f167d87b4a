package overlay

import (
	"fmt"
	"image/color"
	"math"
)

// LabeledPixelToID converts the label-encoded pixel (e.g., #010101) which is
// alpha-premultiplied into an ID in the range of 0-255. Fully transparent
// pixels are background.
func LabeledPixelToID(c color.Color) (uint32, error) {

	// Find the color channel values for this pixel
	pr, pg, pb, a := c.RGBA()

	// Confirm that we're mapping ID 1 => #010101, etc
	if pr != pg || pg != pb || pr != pb {
		return 0, fmt.Errorf("Encoding expected to have equal values for R, G, and B. Instead, found %d, %d, %d", pr, pg, pb)
	}

	if a == 0 {
		return 0, nil
	}

	// Since each color channel is "alpha-premultiplied"
	// (https://golang.org/pkg/image/color/#RGBA), we need to divide by alpha
	// (scaling 0-1), then multiplying by 255, to get what we're actually
	// looking for
	pixelID := uint32(math.Round(255 * float64(pr) / float64(a)))

	return pixelID, nil
}
