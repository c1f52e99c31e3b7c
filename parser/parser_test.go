package parser

import (
	"testing"

	"github.com/sailhdl/sail-ls/cst"
	"github.com/sailhdl/sail-ls/lexer"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (cst.File, []Error) {
	t.Helper()
	toks, lexErrs := lexer.Lex(src)
	require.Empty(t, lexErrs)
	return ParseFile(toks)
}

func TestParseOverloadBraceSyntax(t *testing.T) {
	file, errs := parse(t, "overload foo = {bar, baz}")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 1)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxOverload, aux.Kind)
	require.Equal(t, "foo", aux.Overload.Id.Name)
	require.Len(t, aux.Overload.Overload, 2)
	require.Equal(t, "bar", aux.Overload.Overload[0].Name)
	require.Equal(t, "baz", aux.Overload.Overload[1].Name)
}

func TestParseOverloadPipeSyntax(t *testing.T) {
	file, errs := parse(t, "overload foo = bar|baz|qux")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 1)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxOverload, aux.Kind)
	require.Len(t, aux.Overload.Overload, 3)
	require.Equal(t, "qux", aux.Overload.Overload[2].Name)
}

func TestParseRegisterWithInit(t *testing.T) {
	file, errs := parse(t, "register PC : bits(64) = 0x0")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 1)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxRegister, aux.Kind)
	require.Equal(t, "PC", aux.Register.Id.Name)
	require.NotNil(t, aux.Register.InitSpan)
}

func TestParseDefaultOrder(t *testing.T) {
	file, errs := parse(t, "default Order dec")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxDefault, aux.Kind)
	require.Equal(t, cst.KindOrder, aux.Default.Kind.Variant)
	require.Equal(t, cst.DefaultDec, aux.Default.Direction)
}

func TestParseInstantiation(t *testing.T) {
	file, errs := parse(t, "instantiation foo with 'n = 64")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxInstantiation, aux.Kind)
	require.Equal(t, "foo", aux.Instantiation.Id.Name)
	require.Len(t, aux.Instantiation.Substs, 1)
	require.Equal(t, "n", aux.Instantiation.Substs[0].Id.Name)
}

func TestParseValSpec(t *testing.T) {
	file, errs := parse(t, "val foo : (int, int) -> bool")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxValSpec, aux.Kind)
	require.Equal(t, "foo", aux.ValSpec.Id.Name)
}

func TestParseScatteredUnionAndEnd(t *testing.T) {
	file, errs := parse(t, "scattered union ast\nend ast")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 2)
	first := file.Defs[0].DefAux
	require.Equal(t, cst.ScatteredUnion, first.Scattered.Kind)
	second := file.Defs[1].DefAux
	require.Equal(t, cst.ScatteredEnd, second.Scattered.Kind)
}

func TestParseRecoversFromMalformedDefinition(t *testing.T) {
	// The first definition is malformed (overload with no '='); parsing
	// should skip it via resynchronisation and still find the register.
	file, errs := parse(t, "overload foo bar\nregister PC : bits(64)")
	require.NotEmpty(t, errs)
	require.Len(t, file.Defs, 1)
	require.Equal(t, cst.DefAuxRegister, file.Defs[0].DefAux.Kind)
	require.Equal(t, "PC", file.Defs[0].DefAux.Register.Id.Name)
}

func TestParseLetDef(t *testing.T) {
	file, errs := parse(t, "let x = 5")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxLet, aux.Kind)
	require.Equal(t, cst.AtomicPatId, aux.Let.Pat.Pat1.First.Kind)
	require.Equal(t, "x", aux.Let.Pat.Pat1.First.Id.Name)
}

func TestParseStructWithMultipleFields(t *testing.T) {
	file, errs := parse(t, "struct My_struct = { field1 : bits(8), field2 : int, field3 : string }")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxType, aux.Kind)
	require.Equal(t, cst.TypeDefStruct, aux.Type.Kind)
	require.Equal(t, "My_struct", aux.Type.Id.Name)
	require.Len(t, aux.Type.Fields, 3)
	require.Equal(t, "field2", aux.Type.Fields[1].Id.Name)
}

func TestParseEnumBraceAndPipeSyntax(t *testing.T) {
	file, errs := parse(t, "enum Rgb = { Red, Green, Blue }\nenum Dir = North | South")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 2)
	first := file.Defs[0].DefAux.Type
	require.Equal(t, cst.TypeDefEnum, first.Kind)
	require.Len(t, first.Members, 3)
	require.Equal(t, "Green", first.Members[1].Id.Name)
	second := file.Defs[1].DefAux.Type
	require.Len(t, second.Members, 2)
	require.Equal(t, "South", second.Members[1].Id.Name)
}

func TestParseUnionWithConstructors(t *testing.T) {
	file, errs := parse(t, "union option = { Some : int, None : unit }")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.TypeDefUnion, aux.Type.Kind)
	require.Len(t, aux.Type.Unions, 2)
	require.Equal(t, "Some", aux.Type.Unions[0].Id.Name)
}

func TestParseBitfield(t *testing.T) {
	file, errs := parse(t, "bitfield Mstatus : bits(64) = { SD : 63, MPP : 12 .. 11 }")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.TypeDefBitfield, aux.Type.Kind)
	require.Equal(t, "Mstatus", aux.Type.Id.Name)
	require.Len(t, aux.Type.Entries, 2)
	require.Equal(t, "MPP", aux.Type.Entries[1].Id.Name)
}

func TestParseFunctionClauses(t *testing.T) {
	file, errs := parse(t, "function fwd () = 1 and bwd () = 2")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxFunction, aux.Kind)
	require.Len(t, aux.Function.Clauses, 2)
	require.Equal(t, "fwd", aux.Function.Clauses[0].Id.Name)
	require.Equal(t, "bwd", aux.Function.Clauses[1].Id.Name)
}

func TestParseMappingWithTypeAnnotation(t *testing.T) {
	file, errs := parse(t, `mapping encdec : bits(8) <-> string = { 0b00000000 <-> "zero", 0b00000001 <-> "one" }`)
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.DefAuxMapping, aux.Kind)
	require.Equal(t, "encdec", aux.Mapping.Id.Name)
	require.NotNil(t, aux.Mapping.Typ)
	require.Len(t, aux.Mapping.Clauses, 2)
}

func TestParseTypeAlias(t *testing.T) {
	file, errs := parse(t, "type xlen = 64")
	require.Empty(t, errs)
	aux := file.Defs[0].DefAux
	require.Equal(t, cst.TypeDefAlias, aux.Type.Kind)
	require.Equal(t, "xlen", aux.Type.Id.Name)
}

func TestParseAttributeStashedOnDef(t *testing.T) {
	file, errs := parse(t, "$[anchor] overload foo = {bar}")
	require.Empty(t, errs)
	require.Equal(t, []string{"anchor"}, file.Defs[0].Attributes)
}

func TestParseErrorSpanCoversSkippedTokens(t *testing.T) {
	src := "overload foo bar"
	file, errs := parse(t, src)
	require.Empty(t, file.Defs)
	require.Len(t, errs, 1)
	require.Equal(t, 0, errs[0].Span.Start)
	require.Equal(t, len(src), errs[0].Span.End)
}

func TestParseMultipleDefinitions(t *testing.T) {
	file, errs := parse(t, "default Order dec\noverload foo = {a, b}\nregister R : bits(8)")
	require.Empty(t, errs)
	require.Len(t, file.Defs, 3)
}
