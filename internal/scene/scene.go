// Package scene holds the data model that a parsed overlay script is built
// into. A Scene is constructed once by the parser and treated as read-only
// afterwards.
package scene

import (
	"github.com/bpeel/flootay-sub000/internal/gpx"
	"github.com/bpeel/flootay-sub000/internal/svg"
)

// Default output dimensions used when the script doesn't set them.
const (
	DefaultVideoWidth  = 1920
	DefaultVideoHeight = 1080
)

// RGB is a color with each channel in [0, 1].
type RGB struct {
	R, G, B float64
}

// TrackFile pairs a GPS log with the path it was loaded from. Track
// overlays that name the same file share one TrackFile.
type TrackFile struct {
	Path  string
	Store *gpx.Store
}

// Object is an animated overlay element. Every object carries a non-empty
// list of keyframes whose frame numbers strictly increase.
type Object interface {
	NumKeyFrames() int
	// KeyFrameNum returns the frame number of the i'th keyframe.
	KeyFrameNum(i int) float64
}

// Scene is the root of the overlay graph.
type Scene struct {
	VideoWidth  int
	VideoHeight int
	MapURLBase  string
	MapAPIKey   string

	Objects []Object
	Tracks  []*TrackFile
}

func New() *Scene {
	return &Scene{
		VideoWidth:  DefaultVideoWidth,
		VideoHeight: DefaultVideoHeight,
	}
}

// NFrames returns the number of video frames needed to reach the last
// keyframe of every object.
func (s *Scene) NFrames() int {
	last := 0.0

	for _, obj := range s.Objects {
		n := obj.NumKeyFrames()
		if n == 0 {
			continue
		}
		if num := obj.KeyFrameNum(n - 1); num > last {
			last = num
		}
	}

	return int(last) + 1
}

type RectangleKeyFrame struct {
	Num            float64
	X1, Y1, X2, Y2 int
}

// Rectangle is a solid rectangle interpolated between keyframes.
type Rectangle struct {
	Color     RGB
	KeyFrames []RectangleKeyFrame
}

func (r *Rectangle) NumKeyFrames() int         { return len(r.KeyFrames) }
func (r *Rectangle) KeyFrameNum(i int) float64 { return r.KeyFrames[i].Num }

type SVGKeyFrame struct {
	Num  float64
	X, Y int
}

// SVG is a vector image drawn verbatim at an interpolated translation.
type SVG struct {
	Image     *svg.Image
	KeyFrames []SVGKeyFrame
}

func (s *SVG) NumKeyFrames() int         { return len(s.KeyFrames) }
func (s *SVG) KeyFrameNum(i int) float64 { return s.KeyFrames[i].Num }

type ScoreKeyFrame struct {
	Num   float64
	Value int
}

// Score is a counter that snaps between values at keyframe boundaries,
// animated with a short digit slide just before each change.
type Score struct {
	X, Y      int
	KeyFrames []ScoreKeyFrame
}

func (s *Score) NumKeyFrames() int         { return len(s.KeyFrames) }
func (s *Score) KeyFrameNum(i int) float64 { return s.KeyFrames[i].Num }

// CurvePoint is one cubic Bézier control point.
type CurvePoint struct {
	X, Y float64
}

// Defaults for the first keyframe of a curve.
const (
	DefaultStrokeWidth = 10.0
	DefaultCurveT      = 1.0
)

type CurveKeyFrame struct {
	Num         float64
	Points      [4]CurvePoint
	StrokeWidth float64
	// T is how much of the curve is drawn, 0 for none up to 1 for all
	// of it. It is interpolated between keyframes like the points.
	T float64
}

// Curve is a cubic Bézier stroke that can grow along its length.
type Curve struct {
	Color     RGB
	KeyFrames []CurveKeyFrame
}

func (c *Curve) NumKeyFrames() int         { return len(c.KeyFrames) }
func (c *Curve) KeyFrameNum(i int) float64 { return c.KeyFrames[i].Num }

type TrackKeyFrame struct {
	Num float64
	// Timestamp is the track time, in Unix seconds, that the video
	// shows at frame Num. FPS is the video rate used to advance it.
	Timestamp float64
	FPS       float64
}

// Track is an overlay backed by a GPS log. The display flags pick which of
// the speed readout, elevation readout and map view are drawn.
type Track struct {
	File *TrackFile

	ShowSpeed     bool
	ShowElevation bool
	ShowMap       bool

	X, Y int

	KeyFrames []TrackKeyFrame
}

func (t *Track) NumKeyFrames() int         { return len(t.KeyFrames) }
func (t *Track) KeyFrameNum(i int) float64 { return t.KeyFrames[i].Num }
