package lexer

import (
	"errors"
	"math"
	"strings"
	"testing"
	"testing/iotest"
)

func getToken(t *testing.T, l *Lexer) Token {
	t.Helper()

	token, err := l.GetToken()
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}

	return *token
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		source string
		number int64
	}{
		{"42", 42},
		{"-7", -7},
		{"0", 0},
		{"0x10", 16},
		{"0x7fffffffffffffff", math.MaxInt64},
		{"1_000", 1000},
	}

	for _, tt := range tests {
		l := New(strings.NewReader(tt.source))

		token := getToken(t, l)

		if token.Type != TokenNumber {
			t.Errorf("%q: expected number token, got type %d",
				tt.source, token.Type)
			continue
		}
		if token.Number != tt.number {
			t.Errorf("%q: expected %d, got %d",
				tt.source, tt.number, token.Number)
		}
	}
}

func TestShortReads(t *testing.T) {
	// io.Reader may return fewer bytes than asked for without being at
	// the end of the stream; the whole script must still be read.
	l := New(iotest.OneByteReader(strings.NewReader("video_width 640")))

	token := getToken(t, l)
	if token.Type != TokenSymbol || token.Symbol != KeywordVideoWidth {
		t.Fatalf("expected the video_width keyword, got %+v", token)
	}

	token = getToken(t, l)
	if token.Type != TokenNumber || token.Number != 640 {
		t.Errorf("expected the number 640, got %+v", token)
	}

	token = getToken(t, l)
	if token.Type != TokenEOF {
		t.Errorf("expected EOF, got %+v", token)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	l := New(strings.NewReader("-128.123456789"))

	token := getToken(t, l)

	if token.Type != TokenFloat {
		t.Fatalf("expected float token, got type %d", token.Type)
	}
	if token.Number != -128 {
		t.Errorf("expected integer part -128, got %d", token.Number)
	}
	if token.Fraction != -123456789 {
		t.Errorf("expected fraction -123456789, got %d",
			token.Fraction)
	}

	if got := token.Float64(); math.Abs(got-(-128.123456789)) > 1e-12 {
		t.Errorf("Float64() = %v", got)
	}
}

func TestNegativeFractionOnly(t *testing.T) {
	l := New(strings.NewReader("-0.5"))

	token := getToken(t, l)

	if got := token.Float64(); got != -0.5 {
		t.Errorf("Float64() = %v, expected -0.5", got)
	}
}

func TestInvalidNumbers(t *testing.T) {
	tests := []struct {
		source string
		code   ErrorCode
	}{
		{"12abc", ErrInvalidNumber},
		{"1.2x", ErrInvalidFloat},
		{"-", ErrInvalidNumber},
		{"1_", ErrInvalidNumber},
		{"1.2_3", ErrInvalidFloat},
	}

	for _, tt := range tests {
		l := New(strings.NewReader(tt.source))

		_, err := l.GetToken()
		if err == nil {
			t.Errorf("%q: expected an error", tt.source)
			continue
		}

		var lexErr *Error
		if !errors.As(err, &lexErr) {
			t.Errorf("%q: unexpected error type %T", tt.source, err)
			continue
		}
		if lexErr.Code != tt.code {
			t.Errorf("%q: expected code %d, got %d (%v)",
				tt.source, tt.code, lexErr.Code, lexErr)
		}
	}
}

func TestKeywordsAndInterning(t *testing.T) {
	l := New(strings.NewReader("rectangle wheel spoke wheel"))

	token := getToken(t, l)
	if token.Type != TokenSymbol || token.Symbol != KeywordRectangle {
		t.Fatalf("expected rectangle keyword, got %+v", token)
	}

	wheel1 := getToken(t, l)
	spoke := getToken(t, l)
	wheel2 := getToken(t, l)

	if wheel1.Symbol != wheel2.Symbol {
		t.Errorf("same identifier interned to %d and %d",
			wheel1.Symbol, wheel2.Symbol)
	}
	if wheel1.Symbol == spoke.Symbol {
		t.Errorf("different identifiers share id %d", wheel1.Symbol)
	}

	if name := l.SymbolName(spoke.Symbol); name != "spoke" {
		t.Errorf("SymbolName = %q", name)
	}
}

func TestPutToken(t *testing.T) {
	l := New(strings.NewReader("{ 1 two"))

	first := getToken(t, l)
	second := getToken(t, l)
	third := getToken(t, l)

	l.PutToken()
	l.PutToken()
	l.PutToken()

	if again := getToken(t, l); again != first {
		t.Errorf("first replay mismatch: %+v vs %+v", again, first)
	}
	if again := getToken(t, l); again != second {
		t.Errorf("second replay mismatch: %+v vs %+v", again, second)
	}
	if again := getToken(t, l); again != third {
		t.Errorf("third replay mismatch: %+v vs %+v", again, third)
	}
}

func TestPutTokenOverflow(t *testing.T) {
	l := New(strings.NewReader("a b c d"))

	for i := 0; i < 3; i++ {
		getToken(t, l)
		l.PutToken()
		getToken(t, l)
	}
	l.PutToken()
	l.PutToken()
	l.PutToken()

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on fourth PutToken")
		}
	}()

	l.PutToken()
}

func TestPutTokenRestoresLine(t *testing.T) {
	l := New(strings.NewReader("one\ntwo"))

	getToken(t, l) // one
	getToken(t, l) // two, line 2

	if l.LineNum() != 2 {
		t.Fatalf("expected line 2, got %d", l.LineNum())
	}

	l.PutToken()
	l.PutToken()

	getToken(t, l)
	if l.LineNum() != 1 {
		t.Errorf("expected line 1 after replay, got %d", l.LineNum())
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(strings.NewReader(`"a \"quoted\" \\ thing"`))

	token := getToken(t, l)
	if token.Type != TokenString {
		t.Fatalf("expected string token, got type %d", token.Type)
	}

	expected := `a "quoted" \ thing`
	if token.String != expected {
		t.Errorf("got %q, expected %q", token.String, expected)
	}
}

func TestInvalidEscape(t *testing.T) {
	l := New(strings.NewReader(`"a\nb"`))

	_, err := l.GetToken()

	var lexErr *Error
	if !errors.As(err, &lexErr) || lexErr.Code != ErrInvalidString {
		t.Errorf("expected invalid string error, got %v", err)
	}
}

func TestStringNormalization(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		// Wrapped lines join with one space.
		{"\"one\n  two\"", "one two"},
		// A blank line is a paragraph break and survives.
		{"\"one\n\n  two\"", "one\n\ntwo"},
		// Leading and trailing whitespace goes away.
		{"\"  padded \"", "padded"},
		// Runs of spaces collapse.
		{"\"a   b\tc\"", "a b c"},
	}

	for _, tt := range tests {
		l := New(strings.NewReader(tt.source))

		token := getToken(t, l)
		if token.String != tt.expected {
			t.Errorf("%q: got %q, expected %q",
				tt.source, token.String, tt.expected)
		}
	}
}

func TestUnterminatedStringLine(t *testing.T) {
	// The string opens on line 2 and the input runs out on line 3. The
	// error should name the line the string started on.
	l := New(strings.NewReader("video_width 10\n\"abc\ndef"))

	getToken(t, l)
	getToken(t, l)

	_, err := l.GetToken()

	var lexErr *Error
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected a lexer error, got %v", err)
	}
	if lexErr.Code != ErrInvalidString {
		t.Errorf("expected invalid string code, got %d", lexErr.Code)
	}
	if lexErr.Line != 2 {
		t.Errorf("expected error at line 2, got %d", lexErr.Line)
	}
}

func TestCommentsAndEOF(t *testing.T) {
	l := New(strings.NewReader("# leading comment\n42 # trailing\n"))

	token := getToken(t, l)
	if token.Type != TokenNumber || token.Number != 42 {
		t.Fatalf("expected 42, got %+v", token)
	}

	token = getToken(t, l)
	if token.Type != TokenEOF {
		t.Errorf("expected EOF, got type %d", token.Type)
	}

	// EOF repeats.
	token = getToken(t, l)
	if token.Type != TokenEOF {
		t.Errorf("expected EOF again, got type %d", token.Type)
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	l := New(strings.NewReader("@"))

	_, err := l.GetToken()

	var lexErr *Error
	if !errors.As(err, &lexErr) || lexErr.Code != ErrUnexpectedChar {
		t.Errorf("expected unexpected character error, got %v", err)
	}
}
