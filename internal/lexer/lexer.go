// Package lexer turns a byte stream into overlay-script tokens. It has no
// knowledge of the grammar; the parser drives it and can push recently read
// tokens back to try alternative productions.
package lexer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// tokenQueueSize is how many consecutive reads PutToken can undo.
const tokenQueueSize = 3

type ErrorCode int

const (
	ErrInvalidString ErrorCode = iota
	ErrInvalidSymbol
	ErrInvalidNumber
	ErrInvalidFloat
	ErrUnexpectedChar
)

// Error is a lexical error tagged with the 1-based line it was detected on.
type Error struct {
	Code ErrorCode
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type tokenData struct {
	token Token
	// Line the token was produced at, so that putting it back can also
	// rewind the lexer's line counter.
	line int
}

type Lexer struct {
	source  io.Reader
	lineNum int

	// The last few produced tokens stay resident in a circular queue so
	// that callers can look ahead one token and put it back.
	queue      [tokenQueueSize]tokenData
	queueStart int
	nPutTokens int

	hadEOF  bool
	buf     [128]byte
	bufPos  int
	bufSize int

	symbols   []string
	symbolIDs map[string]Symbol

	stringStartLine int
}

func New(source io.Reader) *Lexer {
	return &Lexer{
		source:    source,
		lineNum:   1,
		symbolIDs: make(map[string]Symbol),
	}
}

// LineNum reports the current 1-based line number.
func (l *Lexer) LineNum() int {
	return l.lineNum
}

// SymbolName returns the text a symbol id was interned from.
func (l *Lexer) SymbolName(sym Symbol) string {
	if sym < numKeywords {
		return keywordNames[sym]
	}
	return l.symbols[int(sym)-int(numKeywords)]
}

// PutToken pushes the most recently read token back onto the queue. Undoing
// more than the retained number of reads is a bug in the caller, not a
// recoverable condition.
func (l *Lexer) PutToken() {
	if l.nPutTokens >= tokenQueueSize {
		panic("lexer: too many tokens put back")
	}
	l.nPutTokens++
}

func (l *Lexer) errorf(code ErrorCode, format string, args ...any) *Error {
	return l.errorfAtLine(code, l.lineNum, format, args...)
}

func (l *Lexer) errorfAtLine(code ErrorCode, line int, format string, args ...any) *Error {
	return &Error{Code: code, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// getByte returns the next input byte, or -1 at end of input, and keeps the
// line counter in step. putByte undoes both.
func (l *Lexer) getByte() (int, error) {
	if l.bufPos >= l.bufSize {
		if l.hadEOF {
			return -1, nil
		}

		// io.Reader permits short reads mid-stream, so only a
		// reported io.EOF or an empty read ends the input.
		n, err := l.source.Read(l.buf[:])
		if err != nil && err != io.EOF {
			return 0, err
		}

		l.hadEOF = err == io.EOF || n == 0
		l.bufSize = n
		l.bufPos = 0

		if n <= 0 {
			return -1, nil
		}
	}

	ch := int(l.buf[l.bufPos])
	l.bufPos++
	if ch == '\n' {
		l.lineNum++
	}
	return ch, nil
}

func (l *Lexer) putByte(ch int) {
	if ch == -1 {
		return
	}
	if ch == '\n' {
		l.lineNum--
	}
	l.bufPos--
	l.buf[l.bufPos] = byte(ch)
}

func isSpace(ch int) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func isSymbolStart(ch int) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch >= 0x80 ||
		ch == '_'
}

func isSymbolCont(ch int) bool {
	return isSymbolStart(ch) || (ch >= '0' && ch <= '9')
}

// GetToken produces the next token, serving put-back tokens first.
func (l *Lexer) GetToken() (*Token, error) {
	if l.nPutTokens > 0 {
		td := &l.queue[(l.queueStart+tokenQueueSize-l.nPutTokens)%tokenQueueSize]
		l.lineNum = td.line
		l.nPutTokens--
		return &td.token, nil
	}

	td := &l.queue[l.queueStart]
	l.queueStart = (l.queueStart + 1) % tokenQueueSize

	for {
		ch, err := l.getByte()
		if err != nil {
			return nil, err
		}

		switch {
		case isSpace(ch):
			continue

		case ch == '#':
			if err := l.skipComment(); err != nil {
				return nil, err
			}

		case (ch >= '0' && ch <= '9') || ch == '-':
			td.line = l.lineNum
			l.putByte(ch)
			if err := l.readNumber(&td.token); err != nil {
				return nil, err
			}
			return &td.token, nil

		case isSymbolStart(ch):
			td.line = l.lineNum
			l.putByte(ch)
			if err := l.readSymbol(&td.token); err != nil {
				return nil, err
			}
			return &td.token, nil

		case ch == '"':
			td.line = l.lineNum
			l.stringStartLine = l.lineNum
			if err := l.readString(&td.token); err != nil {
				return nil, err
			}
			td.line = l.lineNum
			return &td.token, nil

		case ch == '{':
			td.line = l.lineNum
			td.token = Token{Type: TokenOpenBracket}
			return &td.token, nil

		case ch == '}':
			td.line = l.lineNum
			td.token = Token{Type: TokenCloseBracket}
			return &td.token, nil

		case ch == -1:
			td.line = l.lineNum
			td.token = Token{Type: TokenEOF}
			return &td.token, nil

		default:
			return nil, l.errorf(ErrUnexpectedChar,
				"unexpected character %q", rune(ch))
		}
	}
}

func (l *Lexer) skipComment() error {
	for {
		ch, err := l.getByte()
		if err != nil {
			return err
		}
		if ch == '\n' || ch == -1 {
			return nil
		}
	}
}

func (l *Lexer) readNumber(token *Token) error {
	var sb strings.Builder

	for {
		ch, err := l.getByte()
		if err != nil {
			return err
		}

		if (ch >= '0' && ch <= '9') ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			ch == '.' ||
			ch == '_' ||
			ch >= 0x80 ||
			(sb.Len() == 0 && ch == '-') {
			sb.WriteByte(byte(ch))
			continue
		}

		l.putByte(ch)
		break
	}

	return l.parseNumber(sb.String(), token)
}

// parseNumber splits a numeric literal into an integer part, parsed with
// standard integer-literal conventions (0x/0o/leading-0 prefixes included),
// and an optional fractional digit run converted to a fixed-point numerator
// over FractionRange. The fraction shares the sign of the integer part.
func (l *Lexer) parseNumber(str string, token *Token) error {
	intPart, fracPart, hasFrac := strings.Cut(str, ".")

	number, err := strconv.ParseInt(intPart, 0, 64)
	if err != nil {
		return l.errorf(ErrInvalidNumber, "invalid number %q", str)
	}

	if !hasFrac {
		*token = Token{Type: TokenNumber, Number: number}
		return nil
	}

	multiplier := int64(FractionRange)
	var fraction int64

	for i := 0; i < len(fracPart); i++ {
		ch := fracPart[i]
		if ch < '0' || ch > '9' {
			return l.errorf(ErrInvalidFloat, "invalid float %q", str)
		}
		multiplier /= 10
		fraction += int64(ch-'0') * multiplier
	}

	if strings.HasPrefix(str, "-") {
		fraction = -fraction
	}

	*token = Token{Type: TokenFloat, Number: number, Fraction: fraction}
	return nil
}

func (l *Lexer) readSymbol(token *Token) error {
	var sb strings.Builder

	for {
		ch, err := l.getByte()
		if err != nil {
			return err
		}
		if isSymbolCont(ch) {
			sb.WriteByte(byte(ch))
			continue
		}
		l.putByte(ch)
		break
	}

	str := sb.String()

	if !utf8.ValidString(str) {
		return l.errorf(ErrInvalidSymbol, "invalid UTF-8 encountered")
	}

	for i := symbolNone + 1; i < numKeywords; i++ {
		if keywordNames[i] == str {
			*token = Token{Type: TokenSymbol, Symbol: i}
			return nil
		}
	}

	sym, ok := l.symbolIDs[str]
	if !ok {
		// First use gets the next id so that repeated uses of the
		// same identifier compare as integers within one parse.
		sym = numKeywords + Symbol(len(l.symbols))
		l.symbols = append(l.symbols, str)
		l.symbolIDs[str] = sym
	}

	*token = Token{Type: TokenSymbol, Symbol: sym}
	return nil
}

func (l *Lexer) readString(token *Token) error {
	var sb strings.Builder

	for {
		ch, err := l.getByte()
		if err != nil {
			return err
		}

		switch ch {
		case '\\':
			esc, err := l.getByte()
			if err != nil {
				return err
			}
			if esc != '"' && esc != '\\' {
				return l.errorf(ErrInvalidString,
					"invalid escape sequence")
			}
			sb.WriteByte(byte(esc))

		case -1:
			// Report the error where the string began rather than
			// wherever the input ran out.
			return l.errorfAtLine(ErrInvalidString,
				l.stringStartLine,
				"unterminated string")

		case '"':
			str, err := l.normalizeString(sb.String())
			if err != nil {
				return err
			}
			*token = Token{Type: TokenString, String: str}
			return nil

		default:
			sb.WriteByte(byte(ch))
		}
	}
}

// normalizeString collapses whitespace runs to a single space, except that a
// run containing two or more newlines keeps one newline per newline seen, so
// paragraph breaks in the script survive while line wrapping does not.
func (l *Lexer) normalizeString(str string) (string, error) {
	var sb strings.Builder

	const (
		start = iota
		hadSpace
		hadNewline
		hadOther
	)

	state := start
	newlineCount := 0

	for i := 0; i < len(str); i++ {
		ch := int(str[i])

		switch state {
		case start:
			if !isSpace(ch) {
				sb.WriteByte(byte(ch))
				state = hadOther
			}

		case hadSpace:
			if ch == '\n' {
				state = hadNewline
				newlineCount = 1
			} else if !isSpace(ch) {
				sb.WriteByte(' ')
				sb.WriteByte(byte(ch))
				state = hadOther
			}

		case hadNewline:
			if ch == '\n' {
				newlineCount++
			} else if !isSpace(ch) {
				if newlineCount == 1 {
					sb.WriteByte(' ')
				} else {
					for i := 0; i < newlineCount; i++ {
						sb.WriteByte('\n')
					}
				}
				sb.WriteByte(byte(ch))
				state = hadOther
			}

		case hadOther:
			if ch == '\n' {
				state = hadNewline
				newlineCount = 1
			} else if isSpace(ch) {
				state = hadSpace
			} else {
				sb.WriteByte(byte(ch))
			}
		}
	}

	out := sb.String()

	if !utf8.ValidString(out) {
		return "", l.errorf(ErrInvalidString,
			"string contains invalid UTF-8")
	}

	return out, nil
}
