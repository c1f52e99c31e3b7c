// Package parser implements a hand-written recursive-descent parser that
// turns a lexer.Token stream into a partial cst.File. It never aborts: a
// definition that cannot be parsed is recorded as an error and the parser
// resynchronises at the next token that begins a new top-level definition.
package parser

import (
	"fmt"

	"github.com/sailhdl/sail-ls/cst"
	"github.com/sailhdl/sail-ls/lexer"
)

// Error is a parse-time diagnostic, localised to a span.
type Error struct {
	Span    lexer.Span
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d..%d: %s", e.Span.Start, e.Span.End, e.Message)
}

type parser struct {
	toks []lexer.Token
	pos  int
	errs []Error
}

// ParseFile parses a complete token stream into a partial CST. Like Lex, it
// never returns a fatal error: an unparseable definition is recorded as an
// error spanning everything up to the resynchronisation point, then skipped.
func ParseFile(toks []lexer.Token) (cst.File, []Error) {
	p := &parser{toks: toks}
	var defs []cst.Def
	for !p.atEnd() {
		startTok := p.cur()
		def, ok := p.parseDef()
		if ok {
			defs = append(defs, def)
			continue
		}
		p.resync()
		end := p.prevEnd()
		if end < startTok.Span.End {
			end = startTok.Span.End
		}
		if startTok.IsDefinitionKeyword() {
			p.errorf(lexer.Span{Start: startTok.Span.Start, End: end},
				"malformed %s definition", startTok.String())
		} else {
			p.errorf(lexer.Span{Start: startTok.Span.Start, End: end},
				"expected a definition, found %q", startTok.String())
		}
	}
	return cst.File{Defs: defs}, p.errs
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

// eofKind is the Kind of the sentinel token cur returns past the end of
// input. It must not collide with any real lexer.Kind: the zero Kind is
// lexer.Id, and an Id-kinded sentinel would satisfy "case lexer.Id" arms.
const eofKind lexer.Kind = -1

func (p *parser) cur() lexer.Token {
	if p.atEnd() {
		end := 0
		if len(p.toks) > 0 {
			end = p.toks[len(p.toks)-1].Span.End
		}
		return lexer.Token{Kind: eofKind, Span: lexer.Span{Start: end, End: end}}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() lexer.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *parser) check(kind lexer.Kind) bool {
	return !p.atEnd() && p.cur().Kind == kind
}

func (p *parser) errorf(span lexer.Span, format string, args ...any) {
	p.errs = append(p.errs, Error{Span: span, Message: fmt.Sprintf(format, args...)})
}

// resync advances until the next token that can start a top-level
// definition (or end of input), discarding everything in between.
func (p *parser) resync() {
	if !p.atEnd() {
		p.advance()
	}
	for !p.atEnd() && !p.cur().IsDefinitionKeyword() {
		p.advance()
	}
}

// parseDef parses one top-level definition: an optional attribute list
// followed by a definition body. Only the bodies cst.DefAux supports are
// attempted; anything else fails so the caller resynchronises.
func (p *parser) parseDef() (cst.Def, bool) {
	start := p.cur().Span.Start
	var attrs []string
	for p.check(lexer.Dollar) {
		attr, ok := p.parseAttribute()
		if !ok {
			return cst.Def{}, false
		}
		attrs = append(attrs, attr)
	}

	aux, ok := p.parseDefAux()
	if !ok {
		return cst.Def{}, false
	}
	end := p.prevEnd()
	return cst.Def{
		Attributes: attrs,
		DefAux:     aux,
		Span:       lexer.Span{Start: start, End: end},
	}, true
}

// consumeOpaqueSpan advances past a run of tokens that this parser does
// not build a structured Exp for (register/let initialisers, function and
// mapping clause bodies), stopping at the first depth-0 token that begins a
// new top-level definition or matches one of stopAt. Bracket nesting
// ([, (, {) is tracked so a stop keyword used inside the expression itself
// (e.g. "let" in a block expression, "and" inside a nested match) does not
// truncate the span early. Returns the consumed span.
func (p *parser) consumeOpaqueSpan(stopAt ...lexer.Kind) lexer.Span {
	start := p.cur().Span.Start
	consumed := false
	depth := 0
loop:
	for !p.atEnd() {
		k := p.cur().Kind
		if depth == 0 {
			if p.cur().IsDefinitionKeyword() {
				break
			}
			for _, s := range stopAt {
				if k == s {
					break loop
				}
			}
		}
		switch k {
		case lexer.LeftBracket, lexer.LeftCurlyBracket, lexer.LeftSquareBracket, lexer.LeftCurlyBar, lexer.LeftSquareBar:
			depth++
		case lexer.RightBracket, lexer.RightCurlyBracket, lexer.RightSquareBracket, lexer.RightCurlyBar, lexer.RightSquareBar:
			// A closer with no matching opener inside the span belongs to
			// the enclosing construct; stop before it.
			if depth == 0 {
				break loop
			}
			depth--
		}
		p.advance()
		consumed = true
	}
	if !consumed {
		return lexer.Span{Start: start, End: start}
	}
	return lexer.Span{Start: start, End: p.prevEnd()}
}

func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].Span.End
}

// parseAttribute parses "$[name ...]"-style attributes that may precede a
// definition. The attribute's name is its first identifier; any payload
// tokens up to the matching ']' are accepted and discarded. An attribute
// with no name or no closing bracket fails the whole def so
// resynchronisation kicks in, rather than silently dropping the attribute.
func (p *parser) parseAttribute() (string, bool) {
	p.advance() // '$'
	if !p.check(lexer.LeftSquareBracket) {
		return "", false
	}
	p.advance()
	if !p.check(lexer.Id) {
		return "", false
	}
	name := p.advance().Text
	depth := 0
	for !p.atEnd() {
		switch p.cur().Kind {
		case lexer.LeftSquareBracket:
			depth++
		case lexer.RightSquareBracket:
			if depth == 0 {
				p.advance()
				return name, true
			}
			depth--
		}
		p.advance()
	}
	return "", false
}

func (p *parser) parseDefAux() (cst.DefAux, bool) {
	switch p.cur().Kind {
	case lexer.KwOverload:
		return p.parseOverload()
	case lexer.KwRegister:
		return p.parseRegister()
	case lexer.KwDefault:
		return p.parseDefault()
	case lexer.KwInstantiation:
		return p.parseInstantiation()
	case lexer.KwLet:
		return p.parseLetDef()
	case lexer.KwVal:
		return p.parseValSpec()
	case lexer.KwScattered, lexer.KwEnd:
		return p.parseScattered()
	case lexer.KwType, lexer.KwStruct, lexer.KwEnum, lexer.KwUnion, lexer.KwBitfield:
		return p.parseTypeDef()
	case lexer.KwFunction:
		return p.parseFunction()
	case lexer.KwMapping:
		return p.parseMapping()
	default:
		return cst.DefAux{}, false
	}
}

func (p *parser) parseIdentifier() (cst.Id, bool) {
	if !p.check(lexer.Id) {
		return cst.Id{}, false
	}
	t := p.advance()
	return cst.Id{Name: t.Text, Span: t.Span}, true
}

// parseOverload implements both surface syntaxes the grammar accepts:
// "overload foo = {a, b, c}" and "overload foo = a|b|c".
func (p *parser) parseOverload() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'overload'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()

	var members []cst.Id
	if p.check(lexer.LeftCurlyBracket) {
		p.advance()
		for {
			m, ok := p.parseIdentifier()
			if !ok {
				return cst.DefAux{}, false
			}
			members = append(members, m)
			if p.check(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if !p.check(lexer.RightCurlyBracket) {
			return cst.DefAux{}, false
		}
		p.advance()
	} else {
		for {
			m, ok := p.parseIdentifier()
			if !ok {
				return cst.DefAux{}, false
			}
			members = append(members, m)
			if p.check(lexer.Or) {
				p.advance()
				continue
			}
			break
		}
	}

	return cst.DefAux{
		Kind: cst.DefAuxOverload,
		Overload: &cst.OverloadDef{
			Id:       id,
			Overload: members,
			Span:     lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseRegister parses "register <id> : <typ>" with an optional "=
// <expr>" initialiser.
func (p *parser) parseRegister() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'register'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.Colon) {
		return cst.DefAux{}, false
	}
	p.advance()
	typ, ok := p.parseTyp()
	if !ok {
		return cst.DefAux{}, false
	}
	var initSpan *lexer.Span
	if p.check(lexer.Equal) {
		p.advance()
		span := p.consumeOpaqueSpan()
		initSpan = &span
	}
	return cst.DefAux{
		Kind: cst.DefAuxRegister,
		Register: &cst.RegisterDef{
			Id:       id,
			Typ:      typ,
			InitSpan: initSpan,
			Span:     lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseDefault parses "default Order inc|dec".
func (p *parser) parseDefault() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'default'
	kindStart := p.cur().Span
	var kindVariant cst.KindVariant
	switch p.cur().Kind {
	case lexer.KwInt:
		kindVariant = cst.KindInt
	case lexer.KwTypeUpper:
		kindVariant = cst.KindType
	case lexer.KwOrder:
		kindVariant = cst.KindOrder
	case lexer.KwBool:
		kindVariant = cst.KindBool
	default:
		return cst.DefAux{}, false
	}
	p.advance()
	kind := cst.Kind{Variant: kindVariant, Span: kindStart}

	var dir cst.DefaultDirection
	switch p.cur().Kind {
	case lexer.KwInc:
		dir = cst.DefaultInc
	case lexer.KwDec:
		dir = cst.DefaultDec
	default:
		return cst.DefAux{}, false
	}
	p.advance()

	return cst.DefAux{
		Kind: cst.DefAuxDefault,
		Default: &cst.DefaultDef{
			Direction: dir,
			Kind:      kind,
			Span:      lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseInstantiation parses "instantiation <id> with <id> = <typ>, ...".
func (p *parser) parseInstantiation() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'instantiation'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	var substs []cst.Subst
	if p.cur().Kind == lexer.KwWith {
		p.advance()
		for {
			substStart := p.cur().Span.Start
			// A substitution binds either an ordinary identifier or a type
			// variable ("with 'n = 64").
			var substId cst.Id
			switch p.cur().Kind {
			case lexer.Id, lexer.TyVar:
				t := p.advance()
				substId = cst.Id{Name: t.Text, Span: t.Span}
			default:
				return cst.DefAux{}, false
			}
			if !p.check(lexer.Equal) {
				return cst.DefAux{}, false
			}
			p.advance()
			typ, ok := p.parseTyp()
			if !ok {
				return cst.DefAux{}, false
			}
			substs = append(substs, cst.Subst{
				Id:   substId,
				Typ:  typ,
				Span: lexer.Span{Start: substStart, End: p.prevEnd()},
			})
			if p.check(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	return cst.DefAux{
		Kind: cst.DefAuxInstantiation,
		Instantiation: &cst.InstantiationDef{
			Id:     id,
			Substs: substs,
			Span:   lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseLetDef parses "let <pat> = <expr>". The bound expression is recorded
// only as a token span; see cst.LetDef's doc comment.
func (p *parser) parseLetDef() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'let'
	pat, ok := p.parsePat()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	expSpan := p.consumeOpaqueSpan()
	return cst.DefAux{
		Kind: cst.DefAuxLet,
		Let: &cst.LetDef{
			Pat:     pat,
			ExpSpan: expSpan,
			Span:    lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseValSpec parses a simplified "val <id> : <typ>" signature, skipping
// over any "pure"/"monadic" qualifier. Operator-fixity variants are not
// recognised.
func (p *parser) parseValSpec() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'val'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	if p.check(lexer.Colon) {
		p.advance()
		p.consumeOpaqueSpan()
	}
	return cst.DefAux{
		Kind:    cst.DefAuxValSpec,
		ValSpec: &cst.ValSpecDef{Id: id, Span: lexer.Span{Start: start, End: p.prevEnd()}},
	}, true
}

// parseScattered parses a scattered-definition clause: "scattered union
// <id>", "scattered function <id>", "union clause <id> = ...", "enum
// clause <id> = ...", or the bare "end <id>" terminator.
func (p *parser) parseScattered() (cst.DefAux, bool) {
	start := p.cur().Span.Start
	if p.cur().Kind == lexer.KwEnd {
		p.advance()
		id, ok := p.parseIdentifier()
		if !ok {
			return cst.DefAux{}, false
		}
		return cst.DefAux{
			Kind: cst.DefAuxScattered,
			Scattered: &cst.ScatteredDef{
				Kind: cst.ScatteredEnd,
				Id:   id,
				Span: lexer.Span{Start: start, End: p.prevEnd()},
			},
		}, true
	}

	p.advance() // 'scattered'
	var kind cst.ScatteredKind
	switch p.cur().Kind {
	case lexer.KwUnion:
		kind = cst.ScatteredUnion
	case lexer.KwEnum:
		kind = cst.ScatteredEnum
	case lexer.KwFunction:
		kind = cst.ScatteredFunction
	default:
		return cst.DefAux{}, false
	}
	p.advance()
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	return cst.DefAux{
		Kind: cst.DefAuxScattered,
		Scattered: &cst.ScatteredDef{
			Kind: kind,
			Id:   id,
			Span: lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseTypeDef parses the "type"/"struct"/"enum"/"union"/"bitfield" family
// of definitions. Type parameters
// ("<typaram>") are accepted and discarded (consumed as an opaque span)
// since nothing downstream needs them. Every surface form here carries
// exactly one top-level identifier; enum members and union constructors
// are kept as well, and the definition analyser registers them too (along
// with an "Mk_<name>" constructor for each bitfield).
func (p *parser) parseTypeDef() (cst.DefAux, bool) {
	start := p.cur().Span.Start
	switch p.cur().Kind {
	case lexer.KwType:
		return p.parseTypeAlias(start)
	case lexer.KwStruct:
		return p.parseStructDef(start)
	case lexer.KwEnum:
		return p.parseEnumDef(start)
	case lexer.KwUnion:
		return p.parseUnionDef(start)
	case lexer.KwBitfield:
		return p.parseBitfieldDef(start)
	default:
		return cst.DefAux{}, false
	}
}

// skipTypeParams consumes an optional "<typaram>" parameter list: either a
// parenthesised, comma-separated list of kinded type variables (optionally
// followed by ", <typ>" or "-> <kind>"), discarding its contents.
func (p *parser) skipTypeParams() {
	if !p.check(lexer.LeftBracket) {
		return
	}
	depth := 0
	for !p.atEnd() {
		switch p.cur().Kind {
		case lexer.LeftBracket:
			depth++
		case lexer.RightBracket:
			depth--
			p.advance()
			if depth == 0 {
				return
			}
			continue
		}
		p.advance()
	}
}

func (p *parser) parseTypeAlias(start int) (cst.DefAux, bool) {
	p.advance() // 'type'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	p.skipTypeParams()
	if p.check(lexer.RightArrow) {
		p.advance()
		p.consumeOpaqueSpan(lexer.Equal)
	}
	if p.check(lexer.Colon) {
		p.advance()
		p.consumeOpaqueSpan(lexer.Equal)
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	typ, ok := p.parseTyp()
	if !ok {
		return cst.DefAux{}, false
	}
	return cst.DefAux{
		Kind: cst.DefAuxType,
		Type: &cst.TypeDef{
			Kind: cst.TypeDefAlias,
			Id:   id,
			Typ:  &typ,
			Span: lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

func (p *parser) parseStructDef(start int) (cst.DefAux, bool) {
	p.advance() // 'struct'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	p.skipTypeParams()
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	if !p.check(lexer.LeftCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()
	fields, ok := p.parseStructFields()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.RightCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()
	return cst.DefAux{
		Kind: cst.DefAuxType,
		Type: &cst.TypeDef{
			Kind:   cst.TypeDefStruct,
			Id:     id,
			Fields: fields,
			Span:   lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseStructFields parses a comma-separated, optionally trailing-comma
// list of "<id> : <typ>" fields, stopping before the closing '}'.
func (p *parser) parseStructFields() ([]cst.StructField, bool) {
	var fields []cst.StructField
	for !p.check(lexer.RightCurlyBracket) {
		fstart := p.cur().Span.Start
		id, ok := p.parseIdentifier()
		if !ok {
			return nil, false
		}
		if !p.check(lexer.Colon) {
			return nil, false
		}
		p.advance()
		typ, ok := p.parseTyp()
		if !ok {
			return nil, false
		}
		fields = append(fields, cst.StructField{Id: id, Typ: typ, Span: lexer.Span{Start: fstart, End: p.prevEnd()}})
		if p.check(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	return fields, true
}

func (p *parser) parseEnumDef(start int) (cst.DefAux, bool) {
	p.advance() // 'enum'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	// "enum <id> with <enum_functions> = ...": the function-type clauses
	// aren't retained; skip to '='.
	if p.cur().Kind == lexer.KwWith {
		p.consumeOpaqueSpan(lexer.Equal)
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()

	var members []cst.EnumMember
	if p.check(lexer.LeftCurlyBracket) {
		p.advance()
		for !p.check(lexer.RightCurlyBracket) {
			mstart := p.cur().Span.Start
			mid, ok := p.parseIdentifier()
			if !ok {
				return cst.DefAux{}, false
			}
			var expSpan *lexer.Span
			if p.check(lexer.FatRightArrow) {
				p.advance()
				span := p.consumeOpaqueSpan(lexer.Comma)
				expSpan = &span
			}
			members = append(members, cst.EnumMember{Id: mid, ExpSpan: expSpan, Span: lexer.Span{Start: mstart, End: p.prevEnd()}})
			if p.check(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if !p.check(lexer.RightCurlyBracket) {
			return cst.DefAux{}, false
		}
		p.advance()
	} else {
		// "enum <id> = <id> (| <id>)*"
		for {
			mstart := p.cur().Span.Start
			mid, ok := p.parseIdentifier()
			if !ok {
				return cst.DefAux{}, false
			}
			members = append(members, cst.EnumMember{Id: mid, Span: lexer.Span{Start: mstart, End: p.prevEnd()}})
			if p.check(lexer.Or) {
				p.advance()
				continue
			}
			break
		}
	}

	return cst.DefAux{
		Kind: cst.DefAuxType,
		Type: &cst.TypeDef{
			Kind:    cst.TypeDefEnum,
			Id:      id,
			Members: members,
			Span:    lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

func (p *parser) parseUnionDef(start int) (cst.DefAux, bool) {
	p.advance() // 'union'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	p.skipTypeParams()
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	if !p.check(lexer.LeftCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	var unions []cst.UnionMember
	for !p.check(lexer.RightCurlyBracket) {
		u, ok := p.parseTypeUnion()
		if !ok {
			return cst.DefAux{}, false
		}
		unions = append(unions, u)
		if p.check(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if !p.check(lexer.RightCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	return cst.DefAux{
		Kind: cst.DefAuxType,
		Type: &cst.TypeDef{
			Kind:   cst.TypeDefUnion,
			Id:     id,
			Unions: unions,
			Span:   lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseTypeUnion parses one "<id> : <typ>" or "<id> : { <struct_fields> }"
// union constructor. Attribute prefixes ("$[...] <type_union>") are
// accepted and discarded, same as a Def's own attribute list.
func (p *parser) parseTypeUnion() (cst.UnionMember, bool) {
	start := p.cur().Span.Start
	for p.check(lexer.Dollar) {
		if _, ok := p.parseAttribute(); !ok {
			return cst.UnionMember{}, false
		}
	}
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.UnionMember{}, false
	}
	if !p.check(lexer.Colon) {
		return cst.UnionMember{}, false
	}
	p.advance()
	if p.check(lexer.LeftCurlyBracket) {
		p.advance()
		fields, ok := p.parseStructFields()
		if !ok {
			return cst.UnionMember{}, false
		}
		if !p.check(lexer.RightCurlyBracket) {
			return cst.UnionMember{}, false
		}
		p.advance()
		return cst.UnionMember{Id: id, Fields: fields, Span: lexer.Span{Start: start, End: p.prevEnd()}}, true
	}
	typ, ok := p.parseTyp()
	if !ok {
		return cst.UnionMember{}, false
	}
	return cst.UnionMember{Id: id, Typ: &typ, Span: lexer.Span{Start: start, End: p.prevEnd()}}, true
}

// parseBitfieldDef parses "bitfield <id> : <typ> = { <fields> }". Each
// field's index range is kept as an opaque span.
func (p *parser) parseBitfieldDef(start int) (cst.DefAux, bool) {
	p.advance() // 'bitfield'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.Colon) {
		return cst.DefAux{}, false
	}
	p.advance()
	bitTyp, ok := p.parseTyp()
	if !ok {
		return cst.DefAux{}, false
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	if !p.check(lexer.LeftCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	var entries []cst.BitfieldEntry
	for !p.check(lexer.RightCurlyBracket) {
		estart := p.cur().Span.Start
		eid, ok := p.parseIdentifier()
		if !ok {
			return cst.DefAux{}, false
		}
		if !p.check(lexer.Colon) {
			return cst.DefAux{}, false
		}
		p.advance()
		rangeSpan := p.consumeOpaqueSpan(lexer.Comma, lexer.RightCurlyBracket)
		entries = append(entries, cst.BitfieldEntry{Id: eid, RangeSpan: rangeSpan, Span: lexer.Span{Start: estart, End: p.prevEnd()}})
		if p.check(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if !p.check(lexer.RightCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	return cst.DefAux{
		Kind: cst.DefAuxType,
		Type: &cst.TypeDef{
			Kind:    cst.TypeDefBitfield,
			Id:      id,
			BitTyp:  &bitTyp,
			Entries: entries,
			Span:    lexer.Span{Start: start, End: p.prevEnd()},
		},
	}, true
}

// parseFunction parses "function [termination_measure {...}] <funcls>":
// one or more "and"-joined clauses, each "<id> <pat> [-> <typ>] = <exp>".
// Clause bodies are recorded as opaque spans (see FunDef's doc comment).
func (p *parser) parseFunction() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'function'
	if p.cur().Kind == lexer.KwTerminationMeasure {
		p.advance()
		if p.check(lexer.LeftCurlyBracket) {
			p.advance()
			p.consumeOpaqueSpan(lexer.RightCurlyBracket)
			if p.check(lexer.RightCurlyBracket) {
				p.advance()
			}
		}
	}

	var clauses []cst.FunClause
	for {
		for p.check(lexer.Dollar) {
			if _, ok := p.parseAttribute(); !ok {
				return cst.DefAux{}, false
			}
		}
		clause, ok := p.parseFunClause()
		if !ok {
			return cst.DefAux{}, false
		}
		clauses = append(clauses, clause)
		if p.cur().Kind == lexer.KwAnd {
			p.advance()
			continue
		}
		break
	}

	return cst.DefAux{
		Kind:     cst.DefAuxFunction,
		Function: &cst.FunDef{Clauses: clauses, Span: lexer.Span{Start: start, End: p.prevEnd()}},
	}, true
}

func (p *parser) parseFunClause() (cst.FunClause, bool) {
	start := p.cur().Span.Start
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.FunClause{}, false
	}
	pat, ok := p.parsePat()
	if !ok {
		return cst.FunClause{}, false
	}
	var retTyp *cst.Typ
	if p.check(lexer.RightArrow) {
		p.advance()
		t, ok := p.parseTyp()
		if !ok {
			return cst.FunClause{}, false
		}
		retTyp = &t
	}
	if !p.check(lexer.Equal) {
		return cst.FunClause{}, false
	}
	p.advance()
	body := p.consumeOpaqueSpan(lexer.KwAnd)
	return cst.FunClause{Id: id, Pat: pat, RetTyp: retTyp, BodySpan: body, Span: lexer.Span{Start: start, End: p.prevEnd()}}, true
}

// parseMapping parses "mapping <id> [: <typschm>] = { <mapcls> }". Each
// clause's mpat/exp operands are recorded as opaque spans; see MapClause's
// doc comment.
func (p *parser) parseMapping() (cst.DefAux, bool) {
	start := p.advance().Span.Start // 'mapping'
	id, ok := p.parseIdentifier()
	if !ok {
		return cst.DefAux{}, false
	}
	var typ *cst.Typ
	if p.check(lexer.Colon) {
		p.advance()
		t, ok := p.parseTyp()
		if !ok {
			return cst.DefAux{}, false
		}
		typ = &t
	}
	if !p.check(lexer.Equal) {
		return cst.DefAux{}, false
	}
	p.advance()
	if !p.check(lexer.LeftCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	var clauses []cst.MapClause
	for !p.check(lexer.RightCurlyBracket) {
		c, ok := p.parseMapClause()
		if !ok {
			return cst.DefAux{}, false
		}
		clauses = append(clauses, c)
		if p.check(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if !p.check(lexer.RightCurlyBracket) {
		return cst.DefAux{}, false
	}
	p.advance()

	return cst.DefAux{
		Kind:    cst.DefAuxMapping,
		Mapping: &cst.MapDef{Id: id, Typ: typ, Clauses: clauses, Span: lexer.Span{Start: start, End: p.prevEnd()}},
	}, true
}

func (p *parser) parseMapClause() (cst.MapClause, bool) {
	start := p.cur().Span.Start
	for p.check(lexer.Dollar) {
		if _, ok := p.parseAttribute(); !ok {
			return cst.MapClause{}, false
		}
	}
	if p.cur().Kind == lexer.KwForwards || p.cur().Kind == lexer.KwBackwards {
		p.advance()
	}
	leftSpan := p.consumeOpaqueSpan(lexer.DoubleArrow, lexer.FatRightArrow)
	var rightSpan lexer.Span
	switch p.cur().Kind {
	case lexer.DoubleArrow, lexer.FatRightArrow:
		p.advance()
		rightSpan = p.consumeOpaqueSpan(lexer.Comma)
	default:
		return cst.MapClause{}, false
	}
	return cst.MapClause{LeftSpan: leftSpan, RightSpan: rightSpan, Span: lexer.Span{Start: start, End: p.prevEnd()}}, true
}

// parseTyp parses a flat operator chain over atomic types, per cst.Typ's
// doc comment: no precedence climbing, just prefix? atom (op atom)*.
func (p *parser) parseTyp() (cst.Typ, bool) {
	start := p.cur().Span.Start
	var prefix *cst.Id
	if p.cur().Kind == lexer.KwDec || p.cur().Kind == lexer.KwInc {
		t := p.advance()
		prefix = &cst.Id{Name: t.Kind.String(), Span: t.Span}
	}
	first, ok := p.parseAtomicTyp()
	if !ok {
		return cst.Typ{}, false
	}
	var next []cst.TypOpAtom
	for p.isTypOp(p.cur().Kind) {
		op := p.advance()
		atom, ok := p.parseAtomicTyp()
		if !ok {
			return cst.Typ{}, false
		}
		next = append(next, cst.TypOpAtom{
			Op:   cst.Id{Name: op.Kind.String(), Span: op.Span},
			Atom: atom,
		})
	}
	return cst.Typ{
		Prefix: prefix,
		First:  first,
		Next:   next,
		Span:   lexer.Span{Start: start, End: p.prevEnd()},
	}, true
}

// isTypOp reports whether k can join two atomic types in an operator chain.
// Comma is deliberately absent: comma-separated type lists only occur inside
// parentheses, where parseAtomicTyp handles them, and treating a bare comma
// as an operator would swallow the separator between struct fields.
func (p *parser) isTypOp(k lexer.Kind) bool {
	switch k {
	case lexer.RightArrow, lexer.DoubleArrow, lexer.Plus, lexer.Minus,
		lexer.Multiply, lexer.Divide, lexer.Caret:
		return true
	default:
		return false
	}
}

func (p *parser) parseAtomicTyp() (cst.AtomicTyp, bool) {
	start := p.cur().Span
	switch p.cur().Kind {
	case lexer.Underscore:
		p.advance()
		return cst.AtomicTyp{Kind: cst.AtomicTypUnderscore, Span: start}, true
	case lexer.TyVar:
		t := p.advance()
		return cst.AtomicTyp{
			Kind:   cst.AtomicTypVar,
			TypVar: cst.TypVar{Name: t.Text, Span: t.Span},
			Span:   t.Span,
		}, true
	case lexer.KwDec:
		p.advance()
		return cst.AtomicTyp{Kind: cst.AtomicTypDec, Span: start}, true
	case lexer.KwInc:
		p.advance()
		return cst.AtomicTyp{Kind: cst.AtomicTypInc, Span: start}, true
	case lexer.KwRegister:
		rstart := p.advance().Span
		if !p.check(lexer.LeftBracket) {
			return cst.AtomicTyp{}, false
		}
		p.advance()
		inner, ok := p.parseTyp()
		if !ok {
			return cst.AtomicTyp{}, false
		}
		if !p.check(lexer.RightBracket) {
			return cst.AtomicTyp{}, false
		}
		p.advance()
		return cst.AtomicTyp{
			Kind: cst.AtomicTypRegister,
			Typs: []cst.Typ{inner},
			Span: lexer.Span{Start: rstart.Start, End: p.prevEnd()},
		}, true
	case lexer.Id:
		id, _ := p.parseIdentifier()
		// A type identifier may be immediately applied to a parenthesised,
		// comma-separated argument list, e.g. "bits(64)" or "atom('n)".
		// The arguments are kept in the same Typs slot AtomicTypTyps uses
		// for a bare parenthesised type list.
		if p.check(lexer.LeftBracket) {
			p.advance()
			var args []cst.Typ
			if !p.check(lexer.RightBracket) {
				for {
					arg, ok := p.parseTyp()
					if !ok {
						return cst.AtomicTyp{}, false
					}
					args = append(args, arg)
					if p.check(lexer.Comma) {
						p.advance()
						continue
					}
					break
				}
			}
			if !p.check(lexer.RightBracket) {
				return cst.AtomicTyp{}, false
			}
			p.advance()
			return cst.AtomicTyp{
				Kind: cst.AtomicTypId,
				Id:   id,
				Typs: args,
				Span: lexer.Span{Start: id.Span.Start, End: p.prevEnd()},
			}, true
		}
		return cst.AtomicTyp{Kind: cst.AtomicTypId, Id: id, Span: id.Span}, true
	case lexer.Num:
		t := p.advance()
		return cst.AtomicTyp{
			Kind: cst.AtomicTypLit,
			Lit:  cst.Lit{Kind: cst.LitNumber, Text: t.Text, Span: t.Span},
			Span: t.Span,
		}, true
	case lexer.LeftBracket:
		p.advance()
		var typs []cst.Typ
		if !p.check(lexer.RightBracket) {
			for {
				typ, ok := p.parseTyp()
				if !ok {
					return cst.AtomicTyp{}, false
				}
				typs = append(typs, typ)
				if p.check(lexer.Comma) {
					p.advance()
					continue
				}
				break
			}
		}
		if !p.check(lexer.RightBracket) {
			return cst.AtomicTyp{}, false
		}
		p.advance()
		return cst.AtomicTyp{
			Kind: cst.AtomicTypTyps,
			Typs: typs,
			Span: lexer.Span{Start: start.Start, End: p.prevEnd()},
		}, true
	default:
		return cst.AtomicTyp{}, false
	}
}

// parsePat parses a pattern: a Pat1 operator chain with an optional type
// annotation, mirroring parseTyp's flat-chain shape.
func (p *parser) parsePat() (cst.Pat, bool) {
	start := p.cur().Span.Start
	first, ok := p.parseAtomicPat()
	if !ok {
		return cst.Pat{}, false
	}
	var next []cst.PatOpAtom
	for p.cur().Kind == lexer.At {
		op := p.advance()
		atom, ok := p.parseAtomicPat()
		if !ok {
			return cst.Pat{}, false
		}
		next = append(next, cst.PatOpAtom{
			Op:   cst.Id{Name: "@", Span: op.Span},
			Atom: atom,
		})
	}
	pat1 := cst.Pat1{First: first, Next: next, Span: lexer.Span{Start: start, End: p.prevEnd()}}

	var typ *cst.Typ
	if p.check(lexer.Colon) {
		p.advance()
		t, ok := p.parseTyp()
		if !ok {
			return cst.Pat{}, false
		}
		typ = &t
	}
	return cst.Pat{Pat1: pat1, Typ: typ, Span: lexer.Span{Start: start, End: p.prevEnd()}}, true
}

func (p *parser) parseAtomicPat() (cst.AtomicPat, bool) {
	start := p.cur().Span
	switch p.cur().Kind {
	case lexer.Underscore:
		p.advance()
		return cst.AtomicPat{Kind: cst.AtomicPatUnderscore, Span: start}, true
	case lexer.TyVar:
		t := p.advance()
		return cst.AtomicPat{
			Kind:   cst.AtomicPatTypVar,
			TypVar: cst.TypVar{Name: t.Text, Span: t.Span},
			Span:   t.Span,
		}, true
	case lexer.Unit:
		p.advance()
		return cst.AtomicPat{Kind: cst.AtomicPatIdUnit, Span: start}, true
	case lexer.Num, lexer.Real, lexer.Hex, lexer.Bin, lexer.String, lexer.KwTrue, lexer.KwFalse, lexer.KwUndefined:
		t := p.advance()
		return cst.AtomicPat{
			Kind: cst.AtomicPatLit,
			Lit:  cst.Lit{Kind: litKindOf(t.Kind), Text: t.Text, Span: t.Span},
			Span: t.Span,
		}, true
	case lexer.Id:
		id, _ := p.parseIdentifier()
		return cst.AtomicPat{Kind: cst.AtomicPatId, Id: id, Span: id.Span}, true
	default:
		return cst.AtomicPat{}, false
	}
}

func litKindOf(k lexer.Kind) cst.LitKind {
	switch k {
	case lexer.Num:
		return cst.LitNumber
	case lexer.Real:
		return cst.LitNumber
	case lexer.Hex:
		return cst.LitHex
	case lexer.Bin:
		return cst.LitBin
	case lexer.String:
		return cst.LitString
	case lexer.KwTrue:
		return cst.LitTrue
	case lexer.KwFalse:
		return cst.LitFalse
	case lexer.KwUndefined:
		return cst.LitUndefined
	default:
		return cst.LitNumber
	}
}
