package lexer

// FractionRange is the denominator of the fixed-point fraction carried by
// float tokens. The fractional digits of a literal are scaled to this range
// so that the literal never goes through floating-point parsing.
const FractionRange = 1000000000

type TokenType int

const (
	TokenOpenBracket TokenType = iota
	TokenCloseBracket
	TokenSymbol
	TokenString
	TokenNumber
	TokenFloat
	TokenEOF
)

// Token is the tagged value produced by the lexer. Number holds the integer
// part for both TokenNumber and TokenFloat; Fraction is the fractional part
// multiplied by FractionRange and shares the sign of the integer part.
type Token struct {
	Type     TokenType
	Number   int64
	Fraction int64
	Symbol   Symbol
	String   string
}

// Float64 converts a number or float token to a float64 value.
func (t *Token) Float64() float64 {
	return float64(t.Number) + float64(t.Fraction)/FractionRange
}

// Symbol identifies an interned identifier. Values below numKeywords are
// reserved keywords; higher values are assigned in first-seen order for the
// lifetime of one lexer.
type Symbol int

const (
	symbolNone Symbol = iota

	KeywordRectangle
	KeywordSVG
	KeywordScore
	KeywordGPX
	KeywordSpeed
	KeywordElevation
	KeywordMap
	KeywordCurve
	KeywordKeyFrame
	KeywordVideoWidth
	KeywordVideoHeight
	KeywordMapURLBase
	KeywordMapAPIKey
	KeywordFile
	KeywordColor
	KeywordStrokeWidth
	KeywordT
	KeywordTimestamp
	KeywordFPS
	KeywordV
	KeywordX
	KeywordY
	KeywordX1
	KeywordY1
	KeywordX2
	KeywordY2
	KeywordX3
	KeywordY3
	KeywordX4
	KeywordY4

	numKeywords
)

var keywordNames = [numKeywords]string{
	KeywordRectangle:   "rectangle",
	KeywordSVG:         "svg",
	KeywordScore:       "score",
	KeywordGPX:         "gpx",
	KeywordSpeed:       "speed",
	KeywordElevation:   "elevation",
	KeywordMap:         "map",
	KeywordCurve:       "curve",
	KeywordKeyFrame:    "key_frame",
	KeywordVideoWidth:  "video_width",
	KeywordVideoHeight: "video_height",
	KeywordMapURLBase:  "map_url_base",
	KeywordMapAPIKey:   "map_api_key",
	KeywordFile:        "file",
	KeywordColor:       "color",
	KeywordStrokeWidth: "stroke_width",
	KeywordT:           "t",
	KeywordTimestamp:   "timestamp",
	KeywordFPS:         "fps",
	KeywordV:           "v",
	KeywordX:           "x",
	KeywordY:           "y",
	KeywordX1:          "x1",
	KeywordY1:          "y1",
	KeywordX2:          "x2",
	KeywordY2:          "y2",
	KeywordX3:          "x3",
	KeywordY3:          "y3",
	KeywordX4:          "x4",
	KeywordY4:          "y4",
}
