// Package analysis extracts a file's definitions, the name-to-location map
// that powers go-to-definition, using two independent strategies: a
// structural "CST-walk" over the parsed Defs, and a heuristic
// "token-sliding" scan over adjacent token pairs that still works in files
// the parser could only partially recover.
package analysis

import (
	"github.com/sailhdl/sail-ls/cst"
	"github.com/sailhdl/sail-ls/lexer"
)

// Definition is one named, located entity found in a file.
type Definition struct {
	Name string
	Span lexer.Span
}

// Definitions extracts a file's definitions by running both strategies and
// merging them: CST-walk runs first and seeds the result map, then
// token-sliding fills in any name not already present. A structurally
// validated CST-derived location is therefore never overwritten by a
// heuristic token-sliding one for the same name.
func Definitions(toks []lexer.Token, file cst.File) map[string]Definition {
	defs := make(map[string]Definition)
	walkCST(file, defs)
	slideTokens(toks, defs)
	return defs
}

func put(defs map[string]Definition, name string, span lexer.Span) {
	if _, ok := defs[name]; ok {
		return
	}
	defs[name] = Definition{Name: name, Span: span}
}

// walkCST extracts definitions directly from parsed Def nodes. Its coverage
// is necessarily limited to the DefAux variants the parser actually
// produces (see cst.DefAux's doc comment).
func walkCST(file cst.File, defs map[string]Definition) {
	for _, def := range file.Defs {
		aux := def.DefAux
		switch aux.Kind {
		case cst.DefAuxOverload:
			put(defs, aux.Overload.Id.Name, aux.Overload.Id.Span)
			for _, m := range aux.Overload.Overload {
				put(defs, m.Name, m.Span)
			}
		case cst.DefAuxRegister:
			put(defs, aux.Register.Id.Name, aux.Register.Id.Span)
		case cst.DefAuxLet:
			if aux.Let.Pat.Pat1.First.Kind == cst.AtomicPatId {
				id := aux.Let.Pat.Pat1.First.Id
				put(defs, id.Name, id.Span)
			}
		case cst.DefAuxValSpec:
			put(defs, aux.ValSpec.Id.Name, aux.ValSpec.Id.Span)
		case cst.DefAuxScattered:
			if aux.Scattered.Kind != cst.ScatteredEnd {
				put(defs, aux.Scattered.Id.Name, aux.Scattered.Id.Span)
			}
		case cst.DefAuxInstantiation:
			// An instantiation references an existing outcome; it does not
			// introduce a new definition.
		case cst.DefAuxDefault:
			// No identifier to define.
		case cst.DefAuxType:
			td := aux.Type
			put(defs, td.Id.Name, td.Id.Span)
			switch td.Kind {
			case cst.TypeDefEnum:
				for _, m := range td.Members {
					put(defs, m.Id.Name, m.Id.Span)
				}
			case cst.TypeDefUnion:
				for _, u := range td.Unions {
					put(defs, u.Id.Name, u.Id.Span)
				}
			case cst.TypeDefBitfield:
				// A bitfield implicitly introduces an "Mk_<name>"
				// constructor.
				put(defs, "Mk_"+td.Id.Name, td.Id.Span)
			}
		case cst.DefAuxFunction:
			for _, c := range aux.Function.Clauses {
				put(defs, c.Id.Name, c.Id.Span)
			}
		case cst.DefAuxMapping:
			put(defs, aux.Mapping.Id.Name, aux.Mapping.Id.Span)
		}
	}
}

// slideTokens implements the token-sliding strategy: a state machine over
// adjacent token pairs, independent of whether the parser could build a CST
// for the surrounding construct. This is what keeps definitions registering
// in files (or regions of files) the parser gave up on.
func slideTokens(toks []lexer.Token, defs map[string]Definition) {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case lexer.KwFunction, lexer.KwMapping, lexer.KwVal, lexer.KwType,
			lexer.KwUnion, lexer.KwStruct, lexer.KwLet, lexer.KwRegister:
			if id, ok := nextId(toks, i); ok {
				put(defs, id.Text, id.Span)
			}

		case lexer.KwEnum, lexer.KwOverload:
			if id, ok := nextId(toks, i); ok {
				put(defs, id.Text, id.Span)
			}
			slideMemberList(toks, i, defs)

		case lexer.KwBitfield:
			if id, ok := nextId(toks, i); ok {
				put(defs, id.Text, id.Span)
				// A bitfield implicitly introduces an "Mk_<name>"
				// constructor.
				put(defs, "Mk_"+id.Text, id.Span)
			}

		case lexer.KwScattered:
			// "scattered union <id>" / "scattered function <id>" / etc.
			if i+2 < len(toks) && toks[i+2].Kind == lexer.Id {
				id := toks[i+2]
				put(defs, id.Text, id.Span)
			}
		}
	}
}

// nextId returns the token immediately after toks[i] if it is an
// identifier.
func nextId(toks []lexer.Token, i int) (lexer.Token, bool) {
	if i+1 < len(toks) && toks[i+1].Kind == lexer.Id {
		return toks[i+1], true
	}
	return lexer.Token{}, false
}

// slideMemberList scans the member list that follows an enum or overload
// keyword, in both surface syntaxes ("= {a, b}" and "= a|b|c"), so those
// members register as definitions in their own right.
func slideMemberList(toks []lexer.Token, kwIdx int, defs map[string]Definition) {
	i := kwIdx
	for i < len(toks) && toks[i].Kind != lexer.Equal {
		if toks[i].IsDefinitionKeyword() && i != kwIdx {
			return
		}
		i++
	}
	if i >= len(toks) {
		return
	}
	i++ // past '='

	if i < len(toks) && toks[i].Kind == lexer.LeftCurlyBracket {
		i++
		for i < len(toks) && toks[i].Kind != lexer.RightCurlyBracket {
			if toks[i].Kind == lexer.Id {
				put(defs, toks[i].Text, toks[i].Span)
			}
			i++
		}
		return
	}

	for i < len(toks) {
		if toks[i].Kind == lexer.Id {
			put(defs, toks[i].Text, toks[i].Span)
			i++
			if i < len(toks) && toks[i].Kind == lexer.Or {
				i++
				continue
			}
			return
		}
		return
	}
}
