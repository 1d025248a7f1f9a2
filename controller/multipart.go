package controller

import (
	"image"
	"image/png"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
)

// readImageFields validates that each named multipart field is present and
// decodes as PNG (§5.9: "basic PNG validation on image endpoints"), and that
// an optional mask matches the source image's dimensions, which the OpenAI
// image-edit contract requires. The image bytes themselves carry no token
// cost in this design (adapt's image request variants have no binary field)
// so nothing is folded into fields; this exists purely to reject malformed
// uploads before they reach the worker queue.
func readImageFields(names ...string) func(*gin.Context, map[string]any) error {
	return func(c *gin.Context, _ map[string]any) error {
		var sourceBounds image.Rectangle
		haveSource := false

		for _, name := range names {
			file, header, err := c.Request.FormFile(name)
			if err != nil {
				if name == "mask" {
					continue // mask is optional on /v1/images/edits
				}
				return errors.Wrapf(err, "read multipart field %q", name)
			}
			defer file.Close()

			cfg, err := png.DecodeConfig(file)
			if err != nil {
				return errors.Wrapf(err, "field %q (%s) is not a valid PNG", name, header.Filename)
			}
			bounds := image.Rect(0, 0, cfg.Width, cfg.Height)

			switch name {
			case "image":
				sourceBounds, haveSource = bounds, true
			case "mask":
				if haveSource && bounds != sourceBounds {
					return errors.Errorf("mask dimensions %v do not match image dimensions %v", bounds, sourceBounds)
				}
			}
		}
		return nil
	}
}

// readAudioField validates that the named multipart field is present,
// without attempting to decode its (non-PNG) contents.
func readAudioField(name string) func(*gin.Context, map[string]any) error {
	return func(c *gin.Context, _ map[string]any) error {
		file, _, err := c.Request.FormFile(name)
		if err != nil {
			return errors.Wrapf(err, "read multipart field %q", name)
		}
		defer file.Close()
		return nil
	}
}
