package lexer

import (
	"lox/internal/token"
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `var five = 5
var ten = 10.5

fun add(x, y) {
  return x + y
}

var result = add(five, ten)
!-/*5
5 < 10 > 5

if (5 < 10) {
  return true
} else {
  return false
}

10 == 10
10 != 9
"foobar"
"foo bar"
class Foo < Bar {}
this.x = super.y
// a comment
and or nil print
`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.VAR, "var"},
		{token.IDENTIFIER, "five"},
		{token.EQUAL, "="},
		{token.NUMBER, "5"},
		{token.VAR, "var"},
		{token.IDENTIFIER, "ten"},
		{token.EQUAL, "="},
		{token.NUMBER, "10.5"},
		{token.FUN, "fun"},
		{token.IDENTIFIER, "add"},
		{token.LEFT_PAREN, "("},
		{token.IDENTIFIER, "x"},
		{token.COMMA, ","},
		{token.IDENTIFIER, "y"},
		{token.RIGHT_PAREN, ")"},
		{token.LEFT_BRACE, "{"},
		{token.RETURN, "return"},
		{token.IDENTIFIER, "x"},
		{token.PLUS, "+"},
		{token.IDENTIFIER, "y"},
		{token.RIGHT_BRACE, "}"},
		{token.VAR, "var"},
		{token.IDENTIFIER, "result"},
		{token.EQUAL, "="},
		{token.IDENTIFIER, "add"},
		{token.LEFT_PAREN, "("},
		{token.IDENTIFIER, "five"},
		{token.COMMA, ","},
		{token.IDENTIFIER, "ten"},
		{token.RIGHT_PAREN, ")"},
		{token.BANG, "!"},
		{token.MINUS, "-"},
		{token.SLASH, "/"},
		{token.STAR, "*"},
		{token.NUMBER, "5"},
		{token.NUMBER, "5"},
		{token.LESS, "<"},
		{token.NUMBER, "10"},
		{token.GREATER, ">"},
		{token.NUMBER, "5"},
		{token.IF, "if"},
		{token.LEFT_PAREN, "("},
		{token.NUMBER, "5"},
		{token.LESS, "<"},
		{token.NUMBER, "10"},
		{token.RIGHT_PAREN, ")"},
		{token.LEFT_BRACE, "{"},
		{token.RETURN, "return"},
		{token.TRUE, "true"},
		{token.RIGHT_BRACE, "}"},
		{token.ELSE, "else"},
		{token.LEFT_BRACE, "{"},
		{token.RETURN, "return"},
		{token.FALSE, "false"},
		{token.RIGHT_BRACE, "}"},
		{token.NUMBER, "10"},
		{token.EQUAL_EQUAL, "=="},
		{token.NUMBER, "10"},
		{token.NUMBER, "10"},
		{token.BANG_EQUAL, "!="},
		{token.NUMBER, "9"},
		{token.STRING, "foobar"},
		{token.STRING, "foo bar"},
		{token.CLASS, "class"},
		{token.IDENTIFIER, "Foo"},
		{token.LESS, "<"},
		{token.IDENTIFIER, "Bar"},
		{token.LEFT_BRACE, "{"},
		{token.RIGHT_BRACE, "}"},
		{token.THIS, "this"},
		{token.DOT, "."},
		{token.IDENTIFIER, "x"},
		{token.EQUAL, "="},
		{token.SUPER, "super"},
		{token.DOT, "."},
		{token.IDENTIFIER, "y"},
		{token.AND, "and"},
		{token.OR, "or"},
		{token.NIL, "nil"},
		{token.PRINT, "print"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"abc`)
	tok := l.NextToken()
	if tok.Type != token.ERROR || tok.Literal != "Unterminated string." {
		t.Fatalf("expected unterminated-string error, got %v", tok)
	}
}

func TestLineTracking(t *testing.T) {
	l := New("1\n2\n3")
	for want := 1; want <= 3; want++ {
		tok := l.NextToken()
		if tok.Line != want {
			t.Fatalf("expected line %d, got %d for %v", want, tok.Line, tok)
		}
	}
}
