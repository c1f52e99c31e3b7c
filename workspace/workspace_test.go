package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sailhdl/sail-ls/lexer"
	"github.com/sailhdl/sail-ls/text"
	"github.com/stretchr/testify/require"
)

func TestOpenShadowsDiskFile(t *testing.T) {
	w := New()
	uri := "file:///proj/a.sail"
	w.diskFiles[uri] = NewFile(uri, "register DISK : bits(8)")
	w.Open(uri, "register OPEN : bits(8)", 1)

	f, ok := w.File(uri)
	require.True(t, ok)
	require.Contains(t, f.Definitions, "OPEN")
	require.NotContains(t, f.Definitions, "DISK")
}

func TestCloseRevealsDiskFile(t *testing.T) {
	w := New()
	uri := "file:///proj/a.sail"
	w.diskFiles[uri] = NewFile(uri, "register DISK : bits(8)")
	w.Open(uri, "register OPEN : bits(8)", 1)
	w.Close(uri)

	f, ok := w.File(uri)
	require.True(t, ok)
	require.Contains(t, f.Definitions, "DISK")
}

func TestAllFilesOpenWins(t *testing.T) {
	w := New()
	uri := "file:///proj/a.sail"
	w.diskFiles[uri] = NewFile(uri, "register DISK : bits(8)")
	w.Open(uri, "register OPEN : bits(8)", 1)

	all := w.AllFiles()
	require.Len(t, all, 1)
	require.Contains(t, all[uri].Definitions, "OPEN")
}

func TestUpdateOpenReanalyses(t *testing.T) {
	w := New()
	uri := "file:///proj/a.sail"
	w.Open(uri, "register PC : bits(64)", 1)
	f := w.UpdateOpen(uri, 2, []text.Change{{FullRange: true, NewText: "register NEW : bits(64)"}})
	require.NotNil(t, f)
	require.Contains(t, f.Definitions, "NEW")
	require.NotContains(t, f.Definitions, "PC")
	require.Equal(t, 2, f.Version)
}

func TestUpdateOpenUnknownURIReturnsNil(t *testing.T) {
	w := New()
	require.Nil(t, w.UpdateOpen("file:///nope.sail", 1, nil))
}

func TestAddAndRemoveFile(t *testing.T) {
	w := New()
	uri := "file:///proj/a.sail"
	w.AddFile(uri, NewFile(uri, "register R : bits(8)"))
	_, ok := w.File(uri)
	require.True(t, ok)

	w.RemoveFile(uri)
	_, ok = w.File(uri)
	require.False(t, ok)
}

func TestFolderTracking(t *testing.T) {
	w := New()
	w.AddFolder("/proj/a")
	w.AddFolder("/proj/b")
	w.AddFolder("/proj/a") // duplicate is ignored
	require.Equal(t, []string{"/proj/a", "/proj/b"}, w.Folders())

	w.RemoveFolder("/proj/a")
	require.Equal(t, []string{"/proj/b"}, w.Folders())
}

func TestScanFoldersOnlyMatchesSailFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.sail"), []byte("register R : bits(8)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "more.sail"), []byte("register S : bits(8)"), 0o644))

	w := New()
	require.NoError(t, w.ScanFolders(context.Background(), []string{dir}))

	all := w.AllFiles()
	require.Len(t, all, 2)
}

func TestDefinitionRanksByPathSimilarity(t *testing.T) {
	w := New()
	near := "file:///proj/src/core.sail"
	far := "file:///other/vendor/core.sail"
	query := "file:///proj/src/user.sail"

	w.diskFiles[near] = NewFile(near, "register PC : bits(64)")
	w.diskFiles[far] = NewFile(far, "register PC : bits(64)")
	w.Open(query, "let x = PC", 1)

	toks, _ := lexer.Lex("let x = PC")
	offset := toks[len(toks)-1].Span.Start

	results := w.Definition(query, offset)
	require.Len(t, results, 2)
	require.Equal(t, near, results[0].URI)
}

func TestPathSimilarityCountsLeadingSegments(t *testing.T) {
	// Splitting on "/" yields ["file:", "", "", <dir segments...>, <file>];
	// the two leading empty segments from the "///" always match.
	require.Equal(t, 5, pathSimilarity("file:///proj/src/a.sail", "file:///proj/src/b.sail"))
	require.Equal(t, 4, pathSimilarity("file:///a/x.sail", "file:///a/y.sail"))
	require.Equal(t, 3, pathSimilarity("file:///a/x.sail", "file:///b/y.sail"))
}

func TestNormalizeURIConvertsBackslashes(t *testing.T) {
	require.Equal(t, "file:///C:/proj/a.sail", NormalizeURI(`file:///C:\proj\a.sail`))
}

func TestTokenAtFindsEnclosingToken(t *testing.T) {
	f := NewFile("file:///a.sail", "register PC : bits(64)")
	tok, ok := f.TokenAt(10)
	require.True(t, ok)
	require.Equal(t, "PC", tok.Text)
}

func TestTokenAtMissesTrivia(t *testing.T) {
	f := NewFile("file:///a.sail", "register   PC : bits(64)")
	_, ok := f.TokenAt(9)
	require.False(t, ok)
}
