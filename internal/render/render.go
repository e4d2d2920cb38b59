// Package render rasterizes the evaluated scene state for one video frame
// into an RGBA image.
package render

import (
	"context"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/bpeel/flootay-sub000/internal/geomap"
	"github.com/bpeel/flootay-sub000/internal/scene"
	"github.com/bpeel/flootay-sub000/internal/tilecache"
	"github.com/bpeel/flootay-sub000/internal/timeline"
)

const (
	scoreFontSize = 72.0
	trackFontSize = 48.0

	// Size of the square map viewport drawn for map overlays.
	mapViewSize = 512

	// Zoom level used for map overlays.
	mapZoom = 17

	markerRadius = 8.0
)

// Renderer draws evaluated frames. Tiles may be nil when the scene has no
// map overlays.
type Renderer struct {
	scene *scene.Scene
	eval  *timeline.Evaluator
	tiles *tilecache.Cache

	scoreFace font.Face
	trackFace font.Face
}

func New(s *scene.Scene, tiles *tilecache.Cache) (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("font parse error: %w", err)
	}

	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("font parse error: %w", err)
	}

	return &Renderer{
		scene: s,
		eval:  timeline.NewEvaluator(s),
		tiles: tiles,
		scoreFace: truetype.NewFace(bold,
			&truetype.Options{Size: scoreFontSize}),
		trackFace: truetype.NewFace(regular,
			&truetype.Options{Size: trackFontSize}),
	}, nil
}

// RenderFrame draws every object visible at frameNum, in scene order, onto
// a transparent canvas.
func (r *Renderer) RenderFrame(ctx context.Context, frameNum float64) (image.Image, error) {
	dc := gg.NewContext(r.scene.VideoWidth, r.scene.VideoHeight)

	for _, obj := range r.scene.Objects {
		state, visible := r.eval.Evaluate(obj, frameNum)
		if !visible {
			continue
		}

		switch f := state.(type) {
		case timeline.RectangleFrame:
			r.drawRectangle(dc, f)
		case timeline.ImageFrame:
			r.drawImage(dc, f)
		case timeline.ScoreFrame:
			r.drawScore(dc, f)
		case timeline.CurveFrame:
			r.drawCurve(dc, f)
		case timeline.TrackFrame:
			if err := r.drawTrack(ctx, dc, f); err != nil {
				return nil, err
			}
		}
	}

	return dc.Image(), nil
}

func (r *Renderer) drawRectangle(dc *gg.Context, f timeline.RectangleFrame) {
	dc.SetRGB(f.Color.R, f.Color.G, f.Color.B)
	dc.DrawRectangle(float64(f.X1), float64(f.Y1),
		float64(f.X2-f.X1), float64(f.Y2-f.Y1))
	dc.Fill()
}

func (r *Renderer) drawImage(dc *gg.Context, f timeline.ImageFrame) {
	dc.DrawImage(f.Image.Raster(), f.X, f.Y)
}

// drawScore draws the counter at its baseline position. During a slide the
// old value moves up out of a clipped band while the new one rises in from
// below.
func (r *Renderer) drawScore(dc *gg.Context, f timeline.ScoreFrame) {
	dc.SetFontFace(r.scoreFace)
	dc.SetRGB(1, 1, 1)

	x, y := float64(f.X), float64(f.Y)

	if !f.Sliding {
		dc.DrawString(fmt.Sprintf("%d", f.Value), x, y)
		return
	}

	band := scoreFontSize * 1.2

	dc.Push()
	dc.DrawRectangle(x-band*4, y-band, band*8, band*1.25)
	dc.Clip()

	shift := f.SlideOffset * band

	dc.DrawString(fmt.Sprintf("%d", f.Value), x, y-shift)
	dc.DrawString(fmt.Sprintf("%d", f.NextValue), x, y+band-shift)

	dc.Pop()
}

func (r *Renderer) drawCurve(dc *gg.Context, f timeline.CurveFrame) {
	p := f.Points

	dc.SetRGB(f.Color.R, f.Color.G, f.Color.B)
	dc.SetLineWidth(f.StrokeWidth)
	dc.MoveTo(p[0].X, p[0].Y)
	dc.CubicTo(p[1].X, p[1].Y, p[2].X, p[2].Y, p[3].X, p[3].Y)
	dc.Stroke()
}

func (r *Renderer) drawTrack(ctx context.Context, dc *gg.Context, f timeline.TrackFrame) error {
	x, y := float64(f.X), float64(f.Y)

	if f.ShowMap {
		if err := r.drawMap(ctx, dc, f); err != nil {
			return err
		}
		y += mapViewSize + trackFontSize
	}

	dc.SetFontFace(r.trackFace)
	dc.SetRGB(1, 1, 1)

	if f.ShowSpeed {
		kmh := f.Point.Speed * 3.6
		dc.DrawString(fmt.Sprintf("%.1f km/h", kmh), x, y)
		y += trackFontSize * 1.2
	}

	if f.ShowElevation {
		dc.DrawString(fmt.Sprintf("%.0f m", f.Point.Elevation), x, y)
	}

	return nil
}

// drawMap fills a square viewport with map tiles centred on the current
// position and marks the position with a dot.
func (r *Renderer) drawMap(ctx context.Context, dc *gg.Context, f timeline.TrackFrame) error {
	if r.tiles == nil {
		return fmt.Errorf("map overlay used without a tile cache")
	}

	x, y := float64(f.X), float64(f.Y)
	centerX := x + mapViewSize/2
	centerY := y + mapViewSize/2

	dc.Push()
	dc.DrawRectangle(x, y, mapViewSize, mapViewSize)
	dc.Clip()

	placements := geomap.Layout(mapZoom,
		f.Point.Lat, f.Point.Lon,
		centerX-x, centerY-y,
		mapViewSize, mapViewSize)

	for _, placement := range placements {
		tile, err := r.tiles.Get(ctx, placement.Key)
		if err != nil {
			dc.Pop()
			return err
		}

		dc.DrawImage(tile,
			int(x+placement.X), int(y+placement.Y))
	}

	dc.Pop()

	dc.SetRGB(0, 0, 1)
	dc.DrawPoint(centerX, centerY, markerRadius)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(2)
	dc.DrawPoint(centerX, centerY, markerRadius)
	dc.Stroke()

	return nil
}
