package assertion

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/png"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

// pixelAlpha reads the alpha channel (0-255) of one pixel of an image response.
func (ev *evaluation) pixelAlpha(exp scenariodef.Expectation) (bool, string) {
	img, format, err := image.Decode(bytes.NewReader(ev.capture.Body))
	if err != nil {
		return false, fmt.Sprintf("response body is not a decodable image: %s", err)
	}
	pt := image.Pt(exp.X, exp.Y).Add(img.Bounds().Min)
	if !pt.In(img.Bounds()) {
		return false, fmt.Sprintf("pixel (%d,%d) is outside the %dx%d %s image",
			exp.X, exp.Y, img.Bounds().Dx(), img.Bounds().Dy(), format)
	}
	alpha := color.NRGBAModel.Convert(img.At(pt.X, pt.Y)).(color.NRGBA).A
	if exp.Bound.Contains(float64(alpha)) {
		return true, fmt.Sprintf("alpha at (%d,%d) = %d is within %s", exp.X, exp.Y, alpha, exp.Bound)
	}
	return false, fmt.Sprintf("alpha at (%d,%d) = %d is outside %s", exp.X, exp.Y, alpha, exp.Bound)
}
