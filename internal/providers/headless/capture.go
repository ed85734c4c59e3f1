package headless

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// CapturePage renders the viewport as a blank page, cropped to rect when
// given. A rect outside the viewport yields an empty image.
func (s *Surface) CapturePage(ctx context.Context, rect *surface.Rect) (*surface.Capture, error) {
	if s.IsDestroyed() {
		return nil, surface.ErrDestroyed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	viewport := image.Rect(0, 0, s.cfg.CaptureWidth, s.cfg.CaptureHeight)
	region := viewport
	if rect != nil {
		region = image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height).Intersect(viewport)
	}
	if region.Empty() {
		return &surface.Capture{Image: image.NewRGBA(image.Rectangle{}), ScaleFactor: 1}, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return &surface.Capture{Image: img, ScaleFactor: 1}, nil
}
