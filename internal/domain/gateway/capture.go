package gateway

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

const pngDataURLPrefix = "data:image/png;base64,"

// SerializeImage converts a capture into its transport form. An empty
// capture yields no representations.
func SerializeImage(c *surface.Capture) (types.SerializedImage, error) {
	out := types.SerializedImage{Representations: []types.ImageRepresentation{}}
	if c == nil || c.Image == nil || c.Image.Bounds().Empty() {
		return out, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image); err != nil {
		return out, fmt.Errorf("encode capture: %w", err)
	}
	scale := c.ScaleFactor
	if scale <= 0 {
		scale = 1
	}
	bounds := c.Image.Bounds()
	out.Representations = append(out.Representations, types.ImageRepresentation{
		ScaleFactor: scale,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		DataURL:     pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	return out, nil
}

// rectFromArgs reads an optional {x,y,width,height} object from the first
// call argument.
func rectFromArgs(args []any) (*surface.Rect, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	obj, ok := args[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: capture rect must be an object", ErrInvalidOperation)
	}
	var rect surface.Rect
	fields := []struct {
		key string
		dst *int
	}{
		{"x", &rect.X},
		{"y", &rect.Y},
		{"width", &rect.Width},
		{"height", &rect.Height},
	}
	for _, f := range fields {
		raw, present := obj[f.key]
		if !present {
			continue
		}
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: capture rect field %q must be a number", ErrInvalidOperation, f.key)
		}
		*f.dst = int(n)
	}
	if rect.Width == 0 && rect.Height == 0 {
		return nil, nil
	}
	return &rect, nil
}
