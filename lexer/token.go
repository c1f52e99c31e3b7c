// Package lexer converts Sail source text into a span-tagged token stream.
package lexer

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	// Identifiers and literals carry their own text via Token.Text.
	Id    Kind = iota
	TyVar      // 'identifier, leading apostrophe discarded

	Bin  // 0b... prefix discarded
	Hex  // 0x... prefix discarded
	Num  // optional leading '-', digits
	Real // optional leading '-', digits '.' digits

	String

	// Punctuation and operators.
	Dollar
	LeftBracket
	RightBracket
	LeftSquareBracket
	RightSquareBracket
	LeftCurlyBracket
	RightCurlyBracket
	RightArrow
	LeftArrow
	FatRightArrow
	DoubleArrow
	Comma
	Colon
	Semicolon
	Dot
	Caret
	At
	LessThan
	GreaterThan
	LessThanOrEqualTo
	GreaterThanOrEqualTo
	Modulus
	Multiply
	Divide
	Equal
	EqualTo
	NotEqualTo
	And
	Or
	Scope
	Plus
	Minus
	LeftCurlyBar
	RightCurlyBar
	LeftSquareBar
	RightSquareBar
	Underscore
	Unit

	// Keywords.
	KwAnd
	KwAs
	KwAssert
	KwBackwards
	KwBarr
	KwBitfield
	KwBitone
	KwBitzero
	KwBool
	KwBy
	KwCast
	KwCatch
	KwClause
	KwConfiguration
	KwConstant
	KwConstraint
	KwDec
	KwDefault
	KwDepend
	KwDo
	KwEamem
	KwEffect
	KwElse
	KwEnd
	KwEnum
	KwEscape
	KwExit
	KwExmem
	KwFalse
	KwForall
	KwForeach
	KwForwards
	KwFunction
	KwIf
	KwImpl
	KwIn
	KwInc
	KwInfix
	KwInfixl
	KwInfixr
	KwInstantiation
	KwInt
	KwLet
	KwMapping
	KwMatch
	KwMonadic
	KwMutual
	KwMwv
	KwNewtype
	KwNondet
	KwOrder
	KwOutcome
	KwOverload
	KwPure
	KwRef
	KwRegister
	KwRepeat
	KwReturn
	KwRmem
	KwRreg
	KwScattered
	KwSizeof
	KwStruct
	KwTerminationMeasure
	KwThen
	KwThrow
	KwTrue
	KwTry
	KwType
	KwTypeUpper
	KwUndef
	KwUndefined
	KwUnion
	KwUnspec
	KwUntil
	KwVal
	KwVar
	KwWhile
	KwWith
	KwWmem
	KwWreg
)

// keywords maps the lexeme text to its keyword Kind. Checked after generic
// identifier recognition.
var keywords = map[string]Kind{
	"and": KwAnd, "as": KwAs, "assert": KwAssert, "backwards": KwBackwards,
	"barr": KwBarr, "bitfield": KwBitfield, "bitone": KwBitone, "bitzero": KwBitzero,
	"Bool": KwBool, "by": KwBy, "cast": KwCast, "catch": KwCatch, "clause": KwClause,
	"configuration": KwConfiguration, "constant": KwConstant, "constraint": KwConstraint,
	"dec": KwDec, "default": KwDefault, "depend": KwDepend, "do": KwDo,
	"eamem": KwEamem, "effect": KwEffect, "else": KwElse, "end": KwEnd, "enum": KwEnum,
	"escape": KwEscape, "exit": KwExit, "exmem": KwExmem, "false": KwFalse,
	"forall": KwForall, "foreach": KwForeach, "forwards": KwForwards, "function": KwFunction,
	"if": KwIf, "impl": KwImpl, "in": KwIn, "inc": KwInc, "infix": KwInfix,
	"infixl": KwInfixl, "infixr": KwInfixr, "instantiation": KwInstantiation, "Int": KwInt,
	"let": KwLet, "mapping": KwMapping, "match": KwMatch, "monadic": KwMonadic,
	"mutual": KwMutual, "mwv": KwMwv, "newtype": KwNewtype, "nondet": KwNondet,
	"Order": KwOrder, "outcome": KwOutcome, "overload": KwOverload, "pure": KwPure,
	"ref": KwRef, "register": KwRegister, "repeat": KwRepeat, "return": KwReturn,
	"rmem": KwRmem, "rreg": KwRreg, "scattered": KwScattered, "sizeof": KwSizeof,
	"struct": KwStruct, "termination_measure": KwTerminationMeasure, "then": KwThen,
	"throw": KwThrow, "true": KwTrue, "try": KwTry, "type": KwType, "Type": KwTypeUpper,
	"undef": KwUndef, "undefined": KwUndefined, "union": KwUnion, "unspec": KwUnspec,
	"until": KwUntil, "val": KwVal, "var": KwVar, "while": KwWhile, "with": KwWith,
	"wmem": KwWmem, "wreg": KwWreg,
}

// Span is a half-open byte range [Start, End) into the source buffer.
type Span struct {
	Start int
	End   int
}

// Contains reports whether offset lies within the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Union returns the smallest span covering both s and other.
func (s Span) Union(other Span) Span {
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{Start: start, End: end}
}

// Token is a single lexical unit together with its source span.
type Token struct {
	Kind Kind
	// Text holds the lexeme for Id, TyVar, Bin, Hex, Num, Real and String
	// tokens. Prefixes are stripped for Hex/Bin; the apostrophe is stripped
	// for TyVar; quotes are stripped for String. It is empty for punctuation
	// and keyword tokens.
	Text string
	Span Span
}

// IsDefinitionKeyword reports whether the token is one of the keywords the
// parser resynchronises at after an error. "struct" and the "end" of a
// scattered block also start definitions the parser accepts, but are not
// in this set.
func (t Token) IsDefinitionKeyword() bool {
	switch t.Kind {
	case KwOverload, KwVal, KwLet, KwRegister, KwDefault, KwScattered,
		KwFunction, KwMapping, KwType, KwUnion, KwEnum, KwBitfield,
		KwInstantiation, KwTerminationMeasure:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	if s, ok := displayText[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// displayText gives the canonical source text for tokens whose text is
// fixed by their kind (punctuation and keywords).
var displayText = map[Kind]string{
	Dollar: "$", LeftBracket: "(", RightBracket: ")", LeftSquareBracket: "[",
	RightSquareBracket: "]", LeftCurlyBracket: "{", RightCurlyBracket: "}",
	RightArrow: "->", LeftArrow: "<-", FatRightArrow: "=>", DoubleArrow: "<->",
	Comma: ",", Colon: ":", Semicolon: ";", Dot: ".", Caret: "^", At: "@",
	LessThan: "<", GreaterThan: ">", LessThanOrEqualTo: "<=", GreaterThanOrEqualTo: ">=",
	Modulus: "%", Multiply: "*", Divide: "/", Equal: "=", EqualTo: "==",
	NotEqualTo: "!=", And: "&", Or: "|", Scope: "::", Plus: "+", Minus: "-",
	LeftCurlyBar: "{|", RightCurlyBar: "|}", LeftSquareBar: "[|", RightSquareBar: "|]",
	Underscore: "_", Unit: "()",

	KwAnd: "and", KwAs: "as", KwAssert: "assert", KwBackwards: "backwards",
	KwBarr: "barr", KwBitfield: "bitfield", KwBitone: "bitone", KwBitzero: "bitzero",
	KwBool: "Bool", KwBy: "by", KwCast: "cast", KwCatch: "catch", KwClause: "clause",
	KwConfiguration: "configuration", KwConstant: "constant", KwConstraint: "constraint",
	KwDec: "dec", KwDefault: "default", KwDepend: "depend", KwDo: "do",
	KwEamem: "eamem", KwEffect: "effect", KwElse: "else", KwEnd: "end", KwEnum: "enum",
	KwEscape: "escape", KwExit: "exit", KwExmem: "exmem", KwFalse: "false",
	KwForall: "forall", KwForeach: "foreach", KwForwards: "forwards", KwFunction: "function",
	KwIf: "if", KwImpl: "impl", KwIn: "in", KwInc: "inc", KwInfix: "infix",
	KwInfixl: "infixl", KwInfixr: "infixr", KwInstantiation: "instantiation", KwInt: "Int",
	KwLet: "let", KwMapping: "mapping", KwMatch: "match", KwMonadic: "monadic",
	KwMutual: "mutual", KwMwv: "mwv", KwNewtype: "newtype", KwNondet: "nondet",
	KwOrder: "Order", KwOutcome: "outcome", KwOverload: "overload", KwPure: "pure",
	KwRef: "ref", KwRegister: "register", KwRepeat: "repeat", KwReturn: "return",
	KwRmem: "rmem", KwRreg: "rreg", KwScattered: "scattered", KwSizeof: "sizeof",
	KwStruct: "struct", KwTerminationMeasure: "termination_measure", KwThen: "then",
	KwThrow: "throw", KwTrue: "true", KwTry: "try", KwType: "type", KwTypeUpper: "Type",
	KwUndef: "undef", KwUndefined: "undefined", KwUnion: "union", KwUnspec: "unspec",
	KwUntil: "until", KwVal: "val", KwVar: "var", KwWhile: "while", KwWith: "with",
	KwWmem: "wmem", KwWreg: "wreg",
}

// String returns the token's canonical source text.
func (t Token) String() string {
	switch t.Kind {
	case Id, TyVar, Bin, Hex, Num, Real, String:
		return t.Text
	default:
		return t.Kind.String()
	}
}
