// Package cst defines the partial concrete syntax tree produced by the
// parser. Every node carries a Span so diagnostics and go-to-definition can
// point back into source text.
package cst

import "github.com/sailhdl/sail-ls/lexer"

// Span is re-exported from lexer so callers of this package never need to
// import lexer just to read a node's location.
type Span = lexer.Span

// Id is an identifier occurring in definition position: an ordinary name, an
// infix operator spelled as a name, or one of the handful of reserved
// operator-identifiers the grammar singles out.
type Id struct {
	Name string
	Span Span
}

// Lit is a literal value.
type Lit struct {
	Kind LitKind
	Text string
	Span Span
}

// LitKind enumerates the literal forms the grammar recognises.
type LitKind int

const (
	LitTrue LitKind = iota
	LitFalse
	LitUnit
	LitNumber
	LitUndefined
	LitBitZero
	LitBitOne
	LitBin
	LitHex
	LitString
)

// Kind is a kind-expression: Int, Type, Order or Bool.
type Kind struct {
	Variant KindVariant
	Span    Span
}

type KindVariant int

const (
	KindInt KindVariant = iota
	KindType
	KindOrder
	KindBool
)

// Kopt is a kinded type-quantifier parameter, optionally marked constant.
type Kopt struct {
	Constant bool
	Vars     []Id
	Kind     Kind
	Span     Span
}

// TypVar is a type-level variable reference, '<ident>' with the apostrophe
// discarded (mirroring lexer.TyVar).
type TypVar struct {
	Name string
	Span Span
}

// AtomicTyp is the smallest unit of a type expression.
type AtomicTyp struct {
	Kind AtomicTypKind
	// Id is set when Kind == AtomicTypId.
	Id Id
	// TypVar is set when Kind == AtomicTypVar.
	TypVar TypVar
	// Lit is set when Kind == AtomicTypLit.
	Lit Lit
	// Typs is set when Kind == AtomicTypTyps (a parenthesised type list), or
	// non-nil when Kind == AtomicTypId and the identifier is immediately
	// applied to a parenthesised argument list (e.g. "bits(64)").
	Typs []Typ
	Span Span
}

type AtomicTypKind int

const (
	AtomicTypId AtomicTypKind = iota
	AtomicTypUnderscore
	AtomicTypVar
	AtomicTypLit
	AtomicTypDec
	AtomicTypInc
	AtomicTypRegister
	AtomicTypTyps
)

// Typ is a flat operator chain over atomic types: prefix-op, first atom, then
// zero or more (infix-op, atom) pairs. No precedence-climbing binary tree is
// built at parse time; Sail's operator fixity table is dynamically extensible,
// so resolving precedence requires information this server does not compute.
type Typ struct {
	Prefix *Id
	First  AtomicTyp
	Next   []TypOpAtom
	Span   Span
}

// TypOpAtom is one (operator, atom) link in a Typ's operator chain.
type TypOpAtom struct {
	Op   Id
	Atom AtomicTyp
}

// Quantifier is one parameter of a forall-quantifier list: a kinded
// parameter optionally constrained by a type.
type Quantifier struct {
	Kopt Kopt
	Typ  *Typ
	Span Span
}

// AtomicPat is the smallest unit of a pattern.
type AtomicPat struct {
	Kind   AtomicPatKind
	Id     Id
	TypVar TypVar
	Lit    Lit
	Span   Span
}

type AtomicPatKind int

const (
	AtomicPatUnderscore AtomicPatKind = iota
	AtomicPatLit
	AtomicPatId
	AtomicPatTypVar
	AtomicPatIdUnit
)

// Pat1 is an atomic pattern followed by zero or more (operator, atom) links,
// mirroring Typ's flat operator-chain shape.
type Pat1 struct {
	First AtomicPat
	Next  []PatOpAtom
	Span  Span
}

// PatOpAtom is one (operator, atom) link in a Pat1's operator chain.
type PatOpAtom struct {
	Op   Id
	Atom AtomicPat
}

// Pat is a pattern, optionally type-annotated.
type Pat struct {
	Pat1 Pat1
	Typ  *Typ
	Span Span
}

// RegisterDef declares a mutable register of a given type with an optional
// initialiser expression. Expressions are not parsed into trees; Init, when
// present, is recorded as an opaque token span.
type RegisterDef struct {
	Id       Id
	Typ      Typ
	InitSpan *Span
	Span     Span
}

// DefaultDef sets the default order of a kind (Inc or Dec), e.g. "default
// Order dec".
type DefaultDef struct {
	Direction DefaultDirection
	Kind      Kind
	Span      Span
}

type DefaultDirection int

const (
	DefaultInc DefaultDirection = iota
	DefaultDec
)

// Subst is one substitution in an "instantiation ... with ..." clause.
type Subst struct {
	Id   Id
	Typ  Typ
	Span Span
}

// InstantiationDef instantiates an outcome with a list of substitutions.
type InstantiationDef struct {
	Id     Id
	Substs []Subst
	Span   Span
}

// OverloadDef declares an overload set: a name standing for an ordered list
// of concrete identifiers. Both surface syntaxes, "overload foo = {a, b}"
// and "overload foo = a|b", parse to this same shape; which one was written
// is not retained.
type OverloadDef struct {
	Id       Id
	Overload []Id
	Span     Span
}

// LetDef is a top-level "let <pat> = <exp>" binding. Like RegisterDef, the
// bound expression is recorded only as a token span.
type LetDef struct {
	Pat     Pat
	ExpSpan Span
	Span    Span
}

// ValSpecDef declares the type signature of a function or mapping, e.g.
// "val foo : (int, int) -> bool". Only the declared name is retained; the
// signature itself is skipped, which is enough to resynchronise and to
// register foo as a definition.
type ValSpecDef struct {
	Id   Id
	Span Span
}

// ScatteredDef is one clause of a definition that is spread across multiple
// "scattered" blocks in the file (scattered union, scattered function,
// enum/union clause additions, or the "end" terminator).
type ScatteredDef struct {
	Kind ScatteredKind
	Id   Id
	Span Span
}

type ScatteredKind int

const (
	ScatteredEnum ScatteredKind = iota
	ScatteredUnion
	ScatteredFunction
	ScatteredEnumClause
	ScatteredUnionClause
	ScatteredEnd
)

// StructField is one "<id> : <typ>" member of a struct or a union
// constructor's inline record payload.
type StructField struct {
	Id   Id
	Typ  Typ
	Span Span
}

// TypeDefKind discriminates which surface form of "type ... = ..." /
// "struct ... = ..." / "enum ... = ..." / "union ... = ..." /
// "bitfield ... : ... = ..." a TypeDef holds.
type TypeDefKind int

const (
	TypeDefAlias TypeDefKind = iota
	TypeDefStruct
	TypeDefEnum
	TypeDefUnion
	TypeDefBitfield
)

// EnumMember is one constructor of an enum, optionally given an explicit
// value via "=> <exp>" (recorded only as an opaque span; see RegisterDef).
type EnumMember struct {
	Id      Id
	ExpSpan *Span
	Span    Span
}

// UnionMember is one constructor of a union: either a plain "<id> : <typ>"
// or an inline-record "<id> : { <fields> }" form.
type UnionMember struct {
	Id     Id
	Typ    *Typ
	Fields []StructField
	Span   Span
}

// BitfieldEntry is one "<id> : <index-range>" clause inside a bitfield's
// body; the index range itself is recorded as an opaque span.
type BitfieldEntry struct {
	Id        Id
	RangeSpan Span
	Span      Span
}

// TypeDef is a "type"/"struct"/"enum"/"union"/"bitfield" definition. Only
// Kind-appropriate fields are populated; the rest are the zero value.
type TypeDef struct {
	Kind    TypeDefKind
	Id      Id
	Typ     *Typ            // TypeDefAlias
	Fields  []StructField   // TypeDefStruct
	Members []EnumMember    // TypeDefEnum
	Unions  []UnionMember   // TypeDefUnion
	BitTyp  *Typ            // TypeDefBitfield: the underlying bit-vector type
	Entries []BitfieldEntry // TypeDefBitfield
	Span    Span
}

// FunClause is one "<id> <pat> [-> <typ>] = <exp>" clause of a function
// definition; multiple clauses (pattern-matching overloads of the same
// function, or "and"-joined mutual clauses) share one FunDef.
type FunClause struct {
	Id       Id
	Pat      Pat
	RetTyp   *Typ
	BodySpan Span
	Span     Span
}

// FunDef is a "function <funcls>" definition: one or more clauses, each
// introducing (or re-clausing) the same function name. The clause bodies
// are recorded only as opaque token spans, matching RegisterDef/LetDef's
// treatment of expressions.
type FunDef struct {
	Clauses []FunClause
	Span    Span
}

// MapClause is one clause of a mapping: "<mpat> <-> <mpat>" (bidirectional),
// "<mpat> => <exp>" (forwards-only), or an explicit "forwards"/"backwards"
// direction. Both sides are recorded only as opaque spans, mirroring how
// RegisterDef/LetDef stop short of full expression parsing; no identifier
// is extracted from a clause.
type MapClause struct {
	LeftSpan  Span
	RightSpan Span
	Span      Span
}

// MapDef is a "mapping <id> [: <typschm>] = { <mapcls> }" definition.
type MapDef struct {
	Id      Id
	Typ     *Typ
	Clauses []MapClause
	Span    Span
}

// DefAuxKind discriminates which variant a DefAux node holds.
type DefAuxKind int

const (
	DefAuxValSpec DefAuxKind = iota
	DefAuxInstantiation
	DefAuxLet
	DefAuxRegister
	DefAuxOverload
	DefAuxScattered
	DefAuxDefault
	DefAuxType
	DefAuxFunction
	DefAuxMapping
)

// DefAux is the tagged union of definition bodies this parser supports.
// Fixity declarations and $line directives are not represented: neither
// introduces a name a definition query could resolve to.
type DefAux struct {
	Kind          DefAuxKind
	ValSpec       *ValSpecDef
	Instantiation *InstantiationDef
	Let           *LetDef
	Register      *RegisterDef
	Overload      *OverloadDef
	Scattered     *ScatteredDef
	Default       *DefaultDef
	Type          *TypeDef
	Function      *FunDef
	Mapping       *MapDef
}

// Def is one top-level definition: an optional attribute list plus a
// definition body.
type Def struct {
	Attributes []string
	DefAux     DefAux
	Span       Span
}

// File is a parsed source file: an ordered list of top-level definitions.
type File struct {
	Defs []Def
}
