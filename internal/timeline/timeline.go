// Package timeline evaluates scene objects at a video frame number,
// producing the concrete values a renderer needs for that frame.
package timeline

import (
	"math"

	"github.com/bpeel/flootay-sub000/internal/gpx"
	"github.com/bpeel/flootay-sub000/internal/scene"
	"github.com/bpeel/flootay-sub000/internal/svg"
)

// ScoreSlideFrames is how many frames before a score keyframe the digit
// slide animation runs for.
const ScoreSlideFrames = 15

// Frame is the evaluated state of one object for one video frame.
type Frame interface {
	isFrame()
}

type RectangleFrame struct {
	X1, Y1, X2, Y2 int
	Color          scene.RGB
}

type ImageFrame struct {
	Image *svg.Image
	X, Y  int
}

// ScoreFrame is a score readout. When Sliding is set the renderer draws
// Value and NextValue sliding vertically past each other inside a clipped
// band, with SlideOffset in [0, 1) giving how far the slide has run.
type ScoreFrame struct {
	X, Y        int
	Value       int
	Sliding     bool
	NextValue   int
	SlideOffset float64
}

// CurveFrame is a cubic Bézier stroke. The control points have already
// been clipped to the visible portion of the curve.
type CurveFrame struct {
	Points      [4]scene.CurvePoint
	StrokeWidth float64
	Color       scene.RGB
}

// TrackFrame carries the GPS sample for the track time the video shows at
// this frame, plus which readouts to draw.
type TrackFrame struct {
	X, Y          int
	ShowSpeed     bool
	ShowElevation bool
	ShowMap       bool
	Point         gpx.Point
}

func (RectangleFrame) isFrame() {}
func (ImageFrame) isFrame()     {}
func (ScoreFrame) isFrame()     {}
func (CurveFrame) isFrame()     {}
func (TrackFrame) isFrame()     {}

// Evaluator computes per-frame object state. It only reads the scene.
type Evaluator struct {
	scene *scene.Scene
}

func NewEvaluator(s *scene.Scene) *Evaluator {
	return &Evaluator{scene: s}
}

// bracket finds the keyframe pair around the query frame. An object is
// invisible before its first keyframe and from its last keyframe onwards.
func bracket(obj scene.Object, frameNum float64) (start int, frac float64, ok bool) {
	n := obj.NumKeyFrames()

	// At or before the first keyframe there is no bracketing pair.
	if n == 0 || frameNum <= obj.KeyFrameNum(0) {
		return 0, 0, false
	}

	end := n
	for i := 1; i < n; i++ {
		if obj.KeyFrameNum(i) > frameNum {
			end = i
			break
		}
	}

	if end >= n {
		return 0, 0, false
	}

	startNum := obj.KeyFrameNum(end - 1)
	endNum := obj.KeyFrameNum(end)

	return end - 1, (frameNum - startNum) / (endNum - startNum), true
}

func lerp(frac, a, b float64) float64 {
	return frac*(b-a) + a
}

func lerpInt(frac float64, a, b int) int {
	return int(math.Round(lerp(frac, float64(a), float64(b))))
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Evaluate produces the frame state for one object, or reports false when
// the object is not visible at this frame.
func (e *Evaluator) Evaluate(obj scene.Object, frameNum float64) (Frame, bool) {
	start, frac, ok := bracket(obj, frameNum)
	if !ok {
		return nil, false
	}

	switch o := obj.(type) {
	case *scene.Rectangle:
		return e.evaluateRectangle(o, start, frac), true
	case *scene.SVG:
		return e.evaluateSVG(o, start, frac), true
	case *scene.Score:
		return e.evaluateScore(o, start, frameNum), true
	case *scene.Curve:
		return e.evaluateCurve(o, start, frac)
	case *scene.Track:
		return e.evaluateTrack(o, start, frameNum)
	}

	return nil, false
}

func (e *Evaluator) evaluateRectangle(o *scene.Rectangle,
	start int,
	frac float64) RectangleFrame {
	a, b := o.KeyFrames[start], o.KeyFrames[start+1]

	x1 := clampInt(lerpInt(frac, a.X1, b.X1), 0, e.scene.VideoWidth)
	y1 := clampInt(lerpInt(frac, a.Y1, b.Y1), 0, e.scene.VideoHeight)

	// Clamp the far corner to the near one as well so the rectangle
	// never inverts.
	x2 := clampInt(lerpInt(frac, a.X2, b.X2), x1, e.scene.VideoWidth)
	y2 := clampInt(lerpInt(frac, a.Y2, b.Y2), y1, e.scene.VideoHeight)

	return RectangleFrame{X1: x1, Y1: y1, X2: x2, Y2: y2, Color: o.Color}
}

func (e *Evaluator) evaluateSVG(o *scene.SVG,
	start int,
	frac float64) ImageFrame {
	a, b := o.KeyFrames[start], o.KeyFrames[start+1]

	return ImageFrame{
		Image: o.Image,
		X:     lerpInt(frac, a.X, b.X),
		Y:     lerpInt(frac, a.Y, b.Y),
	}
}

// evaluateScore snaps the value at keyframe boundaries instead of
// interpolating it. During the last ScoreSlideFrames frames before a value
// change the old and new values slide past each other.
func (e *Evaluator) evaluateScore(o *scene.Score,
	start int,
	frameNum float64) ScoreFrame {
	a, b := o.KeyFrames[start], o.KeyFrames[start+1]

	frame := ScoreFrame{X: o.X, Y: o.Y, Value: a.Value}

	framesLeft := b.Num - frameNum

	if a.Value != b.Value && framesLeft <= ScoreSlideFrames {
		frame.Sliding = true
		frame.NextValue = b.Value
		frame.SlideOffset = (ScoreSlideFrames - framesLeft) /
			ScoreSlideFrames
	}

	return frame
}

// clipCurve cuts a cubic Bézier down to its [0, t] portion by de Casteljau
// subdivision at t.
func clipCurve(points [4]scene.CurvePoint, t float64) [4]scene.CurvePoint {
	clipAxis := func(p0, p1, p2, p3 float64) [4]float64 {
		q01 := lerp(t, p0, p1)
		q12 := lerp(t, p1, p2)
		q23 := lerp(t, p2, p3)

		q02 := lerp(t, q01, q12)
		q13 := lerp(t, q12, q23)

		return [4]float64{p0, q01, q02, lerp(t, q02, q13)}
	}

	xs := clipAxis(points[0].X, points[1].X, points[2].X, points[3].X)
	ys := clipAxis(points[0].Y, points[1].Y, points[2].Y, points[3].Y)

	var out [4]scene.CurvePoint
	for i := range out {
		out[i] = scene.CurvePoint{X: xs[i], Y: ys[i]}
	}

	return out
}

func (e *Evaluator) evaluateCurve(o *scene.Curve,
	start int,
	frac float64) (Frame, bool) {
	a, b := o.KeyFrames[start], o.KeyFrames[start+1]

	var points [4]scene.CurvePoint
	for i := range points {
		points[i] = scene.CurvePoint{
			X: lerp(frac, a.Points[i].X, b.Points[i].X),
			Y: lerp(frac, a.Points[i].Y, b.Points[i].Y),
		}
	}

	t := lerp(frac, a.T, b.T)
	if t <= 0.0 {
		return nil, false
	}
	if t < 1.0 {
		points = clipCurve(points, t)
	}

	return CurveFrame{
		Points:      points,
		StrokeWidth: lerp(frac, a.StrokeWidth, b.StrokeWidth),
		Color:       o.Color,
	}, true
}

// evaluateTrack maps the frame number to an absolute track time through the
// starting keyframe's timestamp and rate, then asks the track store for the
// sample at that time. No sample within the gap limit means nothing is
// drawn for this frame.
func (e *Evaluator) evaluateTrack(o *scene.Track,
	start int,
	frameNum float64) (Frame, bool) {
	kf := o.KeyFrames[start]

	trackTime := (frameNum-kf.Num)/kf.FPS + kf.Timestamp

	point, ok := o.File.Store.Lookup(trackTime)
	if !ok {
		return nil, false
	}

	return TrackFrame{
		X:             o.X,
		Y:             o.Y,
		ShowSpeed:     o.ShowSpeed,
		ShowElevation: o.ShowElevation,
		ShowMap:       o.ShowMap,
		Point:         point,
	}, true
}
