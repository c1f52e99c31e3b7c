package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexEmpty(t *testing.T) {
	toks, errs := Lex("")
	require.Empty(t, errs)
	require.Empty(t, toks)
}

func TestLexMultiByteCommentBeforeIdentifier(t *testing.T) {
	// A block comment containing a multi-byte character must not throw off
	// byte offsets of the token that follows: "/* " is 3 bytes, the emoji 4,
	// " */ " another 4, so "foo" starts at byte 11 (not at character 9).
	src := "/* \U0001F60A */ foo"
	toks, errs := Lex(src)
	require.Empty(t, errs)
	require.Len(t, toks, 1)
	require.Equal(t, Id, toks[0].Kind)
	require.Equal(t, "foo", toks[0].Text)
	require.Equal(t, strings.Index(src, "foo"), toks[0].Span.Start)
	require.Equal(t, 11, toks[0].Span.Start)
}

func TestLexOverloadStatement(t *testing.T) {
	toks, errs := Lex("overload foo = { bar, baz }")
	require.Empty(t, errs)
	kinds := make([]Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	require.Equal(t, []Kind{
		KwOverload, Id, Equal, LeftCurlyBracket, Id, Comma, Id, RightCurlyBracket,
	}, kinds)
	require.Equal(t, "foo", toks[1].Text)
	require.Equal(t, 9, toks[1].Span.Start)
}

func TestLexNumericForms(t *testing.T) {
	toks, errs := Lex("-123 -034.432 0xDEAD32 0b0101")
	require.Empty(t, errs)
	require.Len(t, toks, 4)
	require.Equal(t, Num, toks[0].Kind)
	require.Equal(t, "-123", toks[0].Text)
	require.Equal(t, Real, toks[1].Kind)
	require.Equal(t, "-034.432", toks[1].Text)
	require.Equal(t, Hex, toks[2].Kind)
	require.Equal(t, "DEAD32", toks[2].Text)
	require.Equal(t, Bin, toks[3].Kind)
	require.Equal(t, "0101", toks[3].Text)
}

func TestLexStringEscapes(t *testing.T) {
	toks, errs := Lex(`"hi\n\t\d065\x41"`)
	require.Empty(t, errs)
	require.Len(t, toks, 1)
	require.Equal(t, String, toks[0].Kind)
}

func TestLexInvalidEscape(t *testing.T) {
	_, errs := Lex(`"\q"`)
	require.Len(t, errs, 1)
}

func TestLexHexErrorDiagnosticSpan(t *testing.T) {
	toks, errs := Lex("0xGG")
	require.Empty(t, toks)
	require.Len(t, errs, 1)
	require.Equal(t, Span{Start: 0, End: 4}, errs[0].Span)
}

func TestMultiCharOperatorPrecedence(t *testing.T) {
	toks, _ := Lex("<-> <- <= < >= > == = != |} |] {| [| () ::")
	kinds := make([]Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	require.Equal(t, []Kind{
		DoubleArrow, LeftArrow, LessThanOrEqualTo, LessThan, GreaterThanOrEqualTo,
		GreaterThan, EqualTo, Equal, NotEqualTo, RightCurlyBar, RightSquareBar,
		LeftCurlyBar, LeftSquareBar, Unit, Scope,
	}, kinds)
}

func TestLexUnexpectedByteRecovers(t *testing.T) {
	toks, errs := Lex("foo # bar")
	require.Len(t, errs, 1)
	require.Len(t, toks, 2)
	require.Equal(t, "foo", toks[0].Text)
	require.Equal(t, "bar", toks[1].Text)
}

func TestLexTyVarAndSpecialIdentifier(t *testing.T) {
	toks, errs := Lex("'n ~")
	require.Empty(t, errs)
	require.Equal(t, TyVar, toks[0].Kind)
	require.Equal(t, "n", toks[0].Text)
	require.Equal(t, Id, toks[1].Kind)
	require.Equal(t, "~", toks[1].Text)
}
