// Package parser turns an overlay script into a scene graph. Parsing is a
// single recursive-descent pass organized as ordered alternatives: each
// construct tries its candidate productions in turn and the first one whose
// leading keyword matches wins.
package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/bpeel/flootay-sub000/internal/fileerror"
	"github.com/bpeel/flootay-sub000/internal/gpx"
	"github.com/bpeel/flootay-sub000/internal/lexer"
	"github.com/bpeel/flootay-sub000/internal/scene"
	"github.com/bpeel/flootay-sub000/internal/svg"
)

const (
	coordMin = math.MinInt32
	coordMax = math.MaxInt32

	maxVideoSize = 65535

	defaultFPS = 30.0
)

// Error is a syntactic or semantic script error. Errors that invalidate a
// whole construct carry the line of the construct's opening keyword rather
// than the line where parsing stopped.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type parser struct {
	lexer   *lexer.Lexer
	scene   *scene.Scene
	baseDir string
}

// itemFunc tries one production. It reports false with a nil error when the
// leading token doesn't match, leaving the token in the lexer queue.
type itemFunc func() (bool, error)

// Parse reads a script and builds the scene it describes. File references in
// the script are resolved relative to baseDir.
func Parse(r io.Reader, baseDir string) (*scene.Scene, error) {
	p := &parser{
		lexer:   lexer.New(r),
		scene:   scene.New(),
		baseDir: baseDir,
	}

	if err := p.parseFile(); err != nil {
		return nil, err
	}

	return p.scene, nil
}

// ParseFile parses the script at path, resolving file references relative
// to the script's directory.
func ParseFile(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileerror.Classify(path, err)
	}
	defer f.Close()

	return Parse(f, filepath.Dir(path))
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &Error{
		Line: p.lexer.LineNum(),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) errorAt(line int, format string, args ...interface{}) error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// checkItemKeyword consumes the next token if it is the given keyword,
// otherwise it puts the token back so another production can try it.
func (p *parser) checkItemKeyword(keyword lexer.Symbol) (bool, error) {
	token, err := p.lexer.GetToken()
	if err != nil {
		return false, err
	}

	if token.Type != lexer.TokenSymbol || token.Symbol != keyword {
		p.lexer.PutToken()
		return false, nil
	}

	return true, nil
}

func (p *parser) requireToken(tokenType lexer.TokenType, msg string) (*lexer.Token, error) {
	token, err := p.lexer.GetToken()
	if err != nil {
		return nil, err
	}

	if token.Type != tokenType {
		return nil, p.errorf("%s", msg)
	}

	return token, nil
}

func (p *parser) requireOpenBracket() error {
	_, err := p.requireToken(lexer.TokenOpenBracket, "expected ‘{’")
	return err
}

func (p *parser) multiplePropertyValuesError(keyword lexer.Symbol) error {
	return p.errorf("The property “%s” is set more than once",
		p.lexer.SymbolName(keyword))
}

func (p *parser) stringProp(keyword lexer.Symbol,
	seen map[lexer.Symbol]bool,
	set func(string) error) itemFunc {
	return func() (bool, error) {
		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		token, err := p.requireToken(lexer.TokenString,
			"String expected")
		if err != nil {
			return false, err
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		if err := set(token.String); err != nil {
			return false, err
		}

		return true, nil
	}
}

func (p *parser) intProp(keyword lexer.Symbol,
	seen map[lexer.Symbol]bool,
	min, max int64,
	set func(int64)) itemFunc {
	return func() (bool, error) {
		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		token, err := p.requireToken(lexer.TokenNumber,
			"Expected number")
		if err != nil {
			return false, err
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		if token.Number < min || token.Number > max {
			return false, p.errorf("Number is out of range")
		}

		set(token.Number)

		return true, nil
	}
}

func (p *parser) floatProp(keyword lexer.Symbol,
	seen map[lexer.Symbol]bool,
	min, max float64,
	set func(float64)) itemFunc {
	return func() (bool, error) {
		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		value, err := p.requireNumber()
		if err != nil {
			return false, err
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		if value < min || value > max {
			return false, p.errorf("Number is out of range")
		}

		set(value)

		return true, nil
	}
}

func (p *parser) boolProp(keyword lexer.Symbol,
	seen map[lexer.Symbol]bool,
	set func()) itemFunc {
	return func() (bool, error) {
		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		set()

		return true, nil
	}
}

// colorProp parses "color <r> <g> <b>" with each channel in [0, 1].
func (p *parser) colorProp(seen map[lexer.Symbol]bool,
	dst *scene.RGB) itemFunc {
	return func() (bool, error) {
		keyword := lexer.KeywordColor

		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		channels := [3]*float64{&dst.R, &dst.G, &dst.B}

		for _, channel := range channels {
			value, err := p.requireNumber()
			if err != nil {
				return false, err
			}
			if value < 0.0 || value > 1.0 {
				return false, p.errorf("Number is out of range")
			}
			*channel = value
		}

		return true, nil
	}
}

// requireNumber accepts an integer or fractional literal.
func (p *parser) requireNumber() (float64, error) {
	token, err := p.lexer.GetToken()
	if err != nil {
		return 0, err
	}

	if token.Type != lexer.TokenNumber && token.Type != lexer.TokenFloat {
		return 0, p.errorf("Expected number")
	}

	return token.Float64(), nil
}

// parseItems tries each production in order and reports whether one of them
// matched.
func (p *parser) parseItems(items []itemFunc) (bool, error) {
	for _, item := range items {
		matched, err := item()
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}

	return false, nil
}

// parseBlockBody consumes items until the closing bracket. The opening
// bracket has already been consumed by the caller.
func (p *parser) parseBlockBody(unmatchedMsg string, items ...itemFunc) error {
	for {
		token, err := p.lexer.GetToken()
		if err != nil {
			return err
		}

		if token.Type == lexer.TokenCloseBracket {
			return nil
		}

		p.lexer.PutToken()

		matched, err := p.parseItems(items)
		if err != nil {
			return err
		}
		if !matched {
			return p.errorf("%s", unmatchedMsg)
		}
	}
}

// parseKeyFrameHeader consumes "key_frame <frame_num> {" and verifies the
// frame number against the previous keyframe in the same object. It reports
// notMatched when the next token isn't the key_frame keyword.
func (p *parser) parseKeyFrameHeader(prevNum float64, hasPrev bool) (float64, bool, error) {
	if ok, err := p.checkItemKeyword(lexer.KeywordKeyFrame); !ok {
		return 0, false, err
	}

	line := p.lexer.LineNum()

	num, err := p.requireNumber()
	if err != nil {
		return 0, false, err
	}

	if hasPrev && num <= prevNum {
		return 0, false, p.errorAt(line, "frame numbers out of order")
	}

	if err := p.requireOpenBracket(); err != nil {
		return 0, false, err
	}

	return num, true, nil
}

func (p *parser) resolvePath(name string) string {
	if p.baseDir == "" || p.baseDir == "." || filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(p.baseDir, name)
}

func (p *parser) parseRectangleKeyFrame(rect *scene.Rectangle) itemFunc {
	return func() (bool, error) {
		var kf scene.RectangleKeyFrame

		n := len(rect.KeyFrames)
		if n > 0 {
			kf = rect.KeyFrames[n-1]
		}

		num, matched, err := p.parseKeyFrameHeader(kf.Num, n > 0)
		if !matched {
			return false, err
		}
		kf.Num = num

		seen := map[lexer.Symbol]bool{}

		err = p.parseBlockBody(
			"Expected key frame item (like x1, y1 etc)",
			p.intProp(lexer.KeywordX1, seen, coordMin, coordMax,
				func(v int64) { kf.X1 = int(v) }),
			p.intProp(lexer.KeywordY1, seen, coordMin, coordMax,
				func(v int64) { kf.Y1 = int(v) }),
			p.intProp(lexer.KeywordX2, seen, coordMin, coordMax,
				func(v int64) { kf.X2 = int(v) }),
			p.intProp(lexer.KeywordY2, seen, coordMin, coordMax,
				func(v int64) { kf.Y2 = int(v) }),
		)
		if err != nil {
			return false, err
		}

		rect.KeyFrames = append(rect.KeyFrames, kf)

		return true, nil
	}
}

func (p *parser) parseRectangle() (bool, error) {
	if ok, err := p.checkItemKeyword(lexer.KeywordRectangle); !ok {
		return false, err
	}

	line := p.lexer.LineNum()

	if err := p.requireOpenBracket(); err != nil {
		return false, err
	}

	rect := &scene.Rectangle{}
	seen := map[lexer.Symbol]bool{}

	err := p.parseBlockBody(
		"Expected rectangle item (like a key_frame)",
		p.parseRectangleKeyFrame(rect),
		p.colorProp(seen, &rect.Color),
	)
	if err != nil {
		return false, err
	}

	if len(rect.KeyFrames) == 0 {
		return false, p.errorAt(line, "rectangle has no key frames")
	}

	p.scene.Objects = append(p.scene.Objects, rect)

	return true, nil
}

func (p *parser) parseSVGKeyFrame(obj *scene.SVG) itemFunc {
	return func() (bool, error) {
		var kf scene.SVGKeyFrame

		n := len(obj.KeyFrames)
		if n > 0 {
			kf = obj.KeyFrames[n-1]
		}

		num, matched, err := p.parseKeyFrameHeader(kf.Num, n > 0)
		if !matched {
			return false, err
		}
		kf.Num = num

		seen := map[lexer.Symbol]bool{}

		err = p.parseBlockBody(
			"Expected key frame item (like x, y etc)",
			p.intProp(lexer.KeywordX, seen, coordMin, coordMax,
				func(v int64) { kf.X = int(v) }),
			p.intProp(lexer.KeywordY, seen, coordMin, coordMax,
				func(v int64) { kf.Y = int(v) }),
		)
		if err != nil {
			return false, err
		}

		obj.KeyFrames = append(obj.KeyFrames, kf)

		return true, nil
	}
}

func (p *parser) parseSVG() (bool, error) {
	if ok, err := p.checkItemKeyword(lexer.KeywordSVG); !ok {
		return false, err
	}

	line := p.lexer.LineNum()

	if err := p.requireOpenBracket(); err != nil {
		return false, err
	}

	obj := &scene.SVG{}
	seen := map[lexer.Symbol]bool{}

	err := p.parseBlockBody(
		"Expected svg item (like a key_frame or file)",
		p.parseSVGKeyFrame(obj),
		p.stringProp(lexer.KeywordFile, seen, func(name string) error {
			image, err := svg.Load(p.resolvePath(name))
			if err != nil {
				return err
			}
			obj.Image = image
			return nil
		}),
	)
	if err != nil {
		return false, err
	}

	if obj.Image == nil {
		return false, p.errorAt(line, "svg has no file")
	}

	if len(obj.KeyFrames) == 0 {
		return false, p.errorAt(line, "svg has no key frames")
	}

	p.scene.Objects = append(p.scene.Objects, obj)

	return true, nil
}

func (p *parser) parseScoreKeyFrame(obj *scene.Score) itemFunc {
	return func() (bool, error) {
		var kf scene.ScoreKeyFrame

		n := len(obj.KeyFrames)
		if n > 0 {
			kf = obj.KeyFrames[n-1]
		}

		num, matched, err := p.parseKeyFrameHeader(kf.Num, n > 0)
		if !matched {
			return false, err
		}
		kf.Num = num

		seen := map[lexer.Symbol]bool{}

		err = p.parseBlockBody(
			"Expected key frame item (like v)",
			p.intProp(lexer.KeywordV, seen, coordMin, coordMax,
				func(v int64) { kf.Value = int(v) }),
		)
		if err != nil {
			return false, err
		}

		obj.KeyFrames = append(obj.KeyFrames, kf)

		return true, nil
	}
}

func (p *parser) parseScore() (bool, error) {
	if ok, err := p.checkItemKeyword(lexer.KeywordScore); !ok {
		return false, err
	}

	line := p.lexer.LineNum()

	if err := p.requireOpenBracket(); err != nil {
		return false, err
	}

	obj := &scene.Score{}
	seen := map[lexer.Symbol]bool{}

	err := p.parseBlockBody(
		"Expected score item (like a key_frame)",
		p.parseScoreKeyFrame(obj),
		p.intProp(lexer.KeywordX, seen, coordMin, coordMax,
			func(v int64) { obj.X = int(v) }),
		p.intProp(lexer.KeywordY, seen, coordMin, coordMax,
			func(v int64) { obj.Y = int(v) }),
	)
	if err != nil {
		return false, err
	}

	if len(obj.KeyFrames) == 0 {
		return false, p.errorAt(line, "score has no key frames")
	}

	p.scene.Objects = append(p.scene.Objects, obj)

	return true, nil
}

func (p *parser) parseCurveKeyFrame(obj *scene.Curve) itemFunc {
	return func() (bool, error) {
		kf := scene.CurveKeyFrame{
			StrokeWidth: scene.DefaultStrokeWidth,
			T:           scene.DefaultCurveT,
		}

		n := len(obj.KeyFrames)
		if n > 0 {
			kf = obj.KeyFrames[n-1]
		}

		num, matched, err := p.parseKeyFrameHeader(kf.Num, n > 0)
		if !matched {
			return false, err
		}
		kf.Num = num

		seen := map[lexer.Symbol]bool{}

		pointProps := make([]itemFunc, 0, 8)
		coordKeywords := [4][2]lexer.Symbol{
			{lexer.KeywordX1, lexer.KeywordY1},
			{lexer.KeywordX2, lexer.KeywordY2},
			{lexer.KeywordX3, lexer.KeywordY3},
			{lexer.KeywordX4, lexer.KeywordY4},
		}

		for i, keywords := range coordKeywords {
			point := &kf.Points[i]
			pointProps = append(pointProps,
				p.floatProp(keywords[0], seen,
					coordMin, coordMax,
					func(v float64) { point.X = v }),
				p.floatProp(keywords[1], seen,
					coordMin, coordMax,
					func(v float64) { point.Y = v }))
		}

		items := append(pointProps,
			p.floatProp(lexer.KeywordStrokeWidth, seen,
				0.0, coordMax,
				func(v float64) { kf.StrokeWidth = v }),
			p.floatProp(lexer.KeywordT, seen,
				0.0, 1.0,
				func(v float64) { kf.T = v }))

		err = p.parseBlockBody(
			"Expected key frame item (like x1, y1 etc)",
			items...)
		if err != nil {
			return false, err
		}

		obj.KeyFrames = append(obj.KeyFrames, kf)

		return true, nil
	}
}

func (p *parser) parseCurve() (bool, error) {
	if ok, err := p.checkItemKeyword(lexer.KeywordCurve); !ok {
		return false, err
	}

	line := p.lexer.LineNum()

	if err := p.requireOpenBracket(); err != nil {
		return false, err
	}

	obj := &scene.Curve{}
	seen := map[lexer.Symbol]bool{}

	err := p.parseBlockBody(
		"Expected curve item (like a key_frame)",
		p.parseCurveKeyFrame(obj),
		p.colorProp(seen, &obj.Color),
	)
	if err != nil {
		return false, err
	}

	if len(obj.KeyFrames) == 0 {
		return false, p.errorAt(line, "curve has no key frames")
	}

	p.scene.Objects = append(p.scene.Objects, obj)

	return true, nil
}

// loadTrack loads a GPS log, reusing the already-parsed store if another
// track overlay named the same file.
func (p *parser) loadTrack(name string) (*scene.TrackFile, error) {
	path := p.resolvePath(name)

	for _, track := range p.scene.Tracks {
		if track.Path == path {
			return track, nil
		}
	}

	store, err := gpx.LoadFile(path)
	if err != nil {
		return nil, err
	}

	track := &scene.TrackFile{Path: path, Store: store}
	p.scene.Tracks = append(p.scene.Tracks, track)

	return track, nil
}

// timestampProp accepts either a numeric Unix time or a quoted UTC time
// like "2023-04-29T12:30:00Z".
func (p *parser) timestampProp(seen map[lexer.Symbol]bool,
	set func(float64)) itemFunc {
	return func() (bool, error) {
		keyword := lexer.KeywordTimestamp

		if ok, err := p.checkItemKeyword(keyword); !ok {
			return false, err
		}

		token, err := p.lexer.GetToken()
		if err != nil {
			return false, err
		}

		var value float64

		switch token.Type {
		case lexer.TokenNumber, lexer.TokenFloat:
			value = token.Float64()
		case lexer.TokenString:
			value, err = gpx.ParseTime(token.String)
			if err != nil {
				return false, p.errorf("%v", err)
			}
		default:
			return false, p.errorf("Expected timestamp")
		}

		if seen[keyword] {
			return false, p.multiplePropertyValuesError(keyword)
		}
		seen[keyword] = true

		set(value)

		return true, nil
	}
}

func (p *parser) parseTrackKeyFrame(obj *scene.Track) itemFunc {
	return func() (bool, error) {
		kf := scene.TrackKeyFrame{FPS: defaultFPS}

		n := len(obj.KeyFrames)
		if n > 0 {
			kf = obj.KeyFrames[n-1]
		}

		num, matched, err := p.parseKeyFrameHeader(kf.Num, n > 0)
		if !matched {
			return false, err
		}
		kf.Num = num

		seen := map[lexer.Symbol]bool{}

		err = p.parseBlockBody(
			"Expected key frame item (like timestamp or fps)",
			p.timestampProp(seen,
				func(v float64) { kf.Timestamp = v }),
			p.floatProp(lexer.KeywordFPS, seen, 0.001, 1000.0,
				func(v float64) { kf.FPS = v }),
		)
		if err != nil {
			return false, err
		}

		obj.KeyFrames = append(obj.KeyFrames, kf)

		return true, nil
	}
}

// parseTrack handles the gpx, speed, elevation and map objects. They share
// one grammar and differ only in which display flags the keyword presets.
func (p *parser) parseTrack(keyword lexer.Symbol,
	preset func(*scene.Track)) (bool, error) {
	if ok, err := p.checkItemKeyword(keyword); !ok {
		return false, err
	}

	line := p.lexer.LineNum()
	name := p.lexer.SymbolName(keyword)

	if err := p.requireOpenBracket(); err != nil {
		return false, err
	}

	obj := &scene.Track{}
	preset(obj)

	seen := map[lexer.Symbol]bool{}

	err := p.parseBlockBody(
		fmt.Sprintf("Expected %s item (like a key_frame or file)",
			name),
		p.parseTrackKeyFrame(obj),
		p.stringProp(lexer.KeywordFile, seen,
			func(fileName string) error {
				track, err := p.loadTrack(fileName)
				if err != nil {
					return err
				}
				obj.File = track
				return nil
			}),
		p.intProp(lexer.KeywordX, seen, coordMin, coordMax,
			func(v int64) { obj.X = int(v) }),
		p.intProp(lexer.KeywordY, seen, coordMin, coordMax,
			func(v int64) { obj.Y = int(v) }),
		p.boolProp(lexer.KeywordSpeed, seen,
			func() { obj.ShowSpeed = true }),
		p.boolProp(lexer.KeywordElevation, seen,
			func() { obj.ShowElevation = true }),
		p.boolProp(lexer.KeywordMap, seen,
			func() { obj.ShowMap = true }),
	)
	if err != nil {
		return false, err
	}

	if obj.File == nil {
		return false, p.errorAt(line, "%s has no file", name)
	}

	if len(obj.KeyFrames) == 0 {
		return false, p.errorAt(line, "%s has no key frames", name)
	}

	p.scene.Objects = append(p.scene.Objects, obj)

	return true, nil
}

func (p *parser) parseFile() error {
	seen := map[lexer.Symbol]bool{}

	items := []itemFunc{
		p.parseRectangle,
		p.parseSVG,
		p.parseScore,
		p.parseCurve,
		func() (bool, error) {
			return p.parseTrack(lexer.KeywordGPX,
				func(*scene.Track) {})
		},
		func() (bool, error) {
			return p.parseTrack(lexer.KeywordSpeed,
				func(t *scene.Track) { t.ShowSpeed = true })
		},
		func() (bool, error) {
			return p.parseTrack(lexer.KeywordElevation,
				func(t *scene.Track) {
					t.ShowElevation = true
				})
		},
		func() (bool, error) {
			return p.parseTrack(lexer.KeywordMap,
				func(t *scene.Track) { t.ShowMap = true })
		},
		p.intProp(lexer.KeywordVideoWidth, seen, 1, maxVideoSize,
			func(v int64) { p.scene.VideoWidth = int(v) }),
		p.intProp(lexer.KeywordVideoHeight, seen, 1, maxVideoSize,
			func(v int64) { p.scene.VideoHeight = int(v) }),
		p.stringProp(lexer.KeywordMapURLBase, seen,
			func(s string) error {
				p.scene.MapURLBase = s
				return nil
			}),
		p.stringProp(lexer.KeywordMapAPIKey, seen,
			func(s string) error {
				p.scene.MapAPIKey = s
				return nil
			}),
	}

	for {
		token, err := p.lexer.GetToken()
		if err != nil {
			return err
		}

		if token.Type == lexer.TokenEOF {
			return nil
		}

		p.lexer.PutToken()

		matched, err := p.parseItems(items)
		if err != nil {
			return err
		}
		if !matched {
			return p.errorf("Expected file-level item " +
				"(like a rectangle etc)")
		}
	}
}
