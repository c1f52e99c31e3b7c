// Package workspace indexes a project's .sail files for cross-file
// go-to-definition: an "open wins" overlay of client-opened buffers over a
// disk scan of the workspace folders.
package workspace

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sailhdl/sail-ls/analysis"
	"github.com/sailhdl/sail-ls/cst"
	"github.com/sailhdl/sail-ls/lexer"
	"github.com/sailhdl/sail-ls/parser"
	"github.com/sailhdl/sail-ls/text"
)

// File is everything the workspace knows about one source file: its
// editable buffer, its token stream, its parsed (partial) CST, its
// extracted definitions and the diagnostics produced while building all of
// the above.
type File struct {
	URI         string
	Doc         *text.Document
	Tokens      []lexer.Token
	CST         cst.File
	Definitions map[string]analysis.Definition
	Diagnostics []Diagnostic
	// Version is the client-reported document version for open buffers;
	// zero for disk-scanned files.
	Version int
}

// Diagnostic is a file-relative problem report, independent of the LSP
// wire type so this package has no protocol dependency.
type Diagnostic struct {
	Span    lexer.Span
	Message string
}

// NewFile lexes, parses and analyses content, producing a fully populated
// File record. It never fails: lex/parse errors become Diagnostics and
// analysis always produces a (possibly empty) definitions map.
func NewFile(uri, content string) *File {
	doc := text.New(content)
	toks, lexErrs := lexer.Lex(content)
	file, parseErrs := parser.ParseFile(toks)
	defs := analysis.Definitions(toks, file)

	var diags []Diagnostic
	for _, e := range lexErrs {
		diags = append(diags, Diagnostic{Span: e.Span, Message: e.Message})
	}
	for _, e := range parseErrs {
		diags = append(diags, Diagnostic{Span: e.Span, Message: e.Message})
	}

	return &File{
		URI:         uri,
		Doc:         doc,
		Tokens:      toks,
		CST:         file,
		Definitions: defs,
		Diagnostics: diags,
	}
}

// TokenAt finds the token whose span contains offset, via binary search
// over the (offset-ordered) token list. It returns false if offset falls in
// trivia (whitespace/comments) or past the end of the file.
func (f *File) TokenAt(offset int) (lexer.Token, bool) {
	toks := f.Tokens
	i := sort.Search(len(toks), func(i int) bool {
		return toks[i].Span.End > offset
	})
	if i >= len(toks) || !toks[i].Span.Contains(offset) {
		return lexer.Token{}, false
	}
	return toks[i], true
}

// Workspace is the authoritative index of all known .sail files: files the
// client currently has open, and files discovered by scanning the
// workspace's folders on disk. Open files always shadow disk files of the
// same URI.
type Workspace struct {
	openFiles map[string]*File
	diskFiles map[string]*File
	folders   []string // workspace-folder roots, as filesystem paths

	// Logger, when set, receives scan-time warnings (unreadable files).
	Logger *log.Logger
}

func (w *Workspace) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}

// New creates an empty Workspace.
func New() *Workspace {
	return &Workspace{
		openFiles: make(map[string]*File),
		diskFiles: make(map[string]*File),
	}
}

// AddFolder registers a workspace-folder root. Adding a folder does not
// scan it; callers follow up with ScanFolders.
func (w *Workspace) AddFolder(path string) {
	for _, f := range w.folders {
		if f == path {
			return
		}
	}
	w.folders = append(w.folders, path)
}

// RemoveFolder forgets a workspace-folder root. Files already scanned from
// it stay in the disk set until a deletion event removes them.
func (w *Workspace) RemoveFolder(path string) {
	kept := w.folders[:0]
	for _, f := range w.folders {
		if f != path {
			kept = append(kept, f)
		}
	}
	w.folders = kept
}

// Folders returns the registered workspace-folder roots.
func (w *Workspace) Folders() []string {
	return w.folders
}

// AddFile inserts (or replaces) a disk-set entry.
func (w *Workspace) AddFile(uri string, f *File) {
	w.diskFiles[uri] = f
}

// RemoveFile drops a disk-set entry. Open buffers are unaffected.
func (w *Workspace) RemoveFile(uri string) {
	delete(w.diskFiles, uri)
}

// Open registers (or replaces) an open file, taking precedence over any
// disk-scanned entry with the same URI. version is the client's document
// version, echoed back when publishing diagnostics.
func (w *Workspace) Open(uri, content string, version int) *File {
	f := NewFile(uri, content)
	f.Version = version
	w.openFiles[uri] = f
	return f
}

// Close drops a file from the open set. Any disk-scanned entry for the same
// URI, if present, becomes visible again.
func (w *Workspace) Close(uri string) {
	delete(w.openFiles, uri)
}

// UpdateOpen applies incremental or full-replace changes to an already-open
// file's buffer and re-derives its tokens/CST/definitions/diagnostics.
func (w *Workspace) UpdateOpen(uri string, version int, changes []text.Change) *File {
	existing, ok := w.openFiles[uri]
	if !ok {
		return nil
	}
	existing.Doc.Update(changes)
	updated := NewFile(uri, existing.Doc.Text())
	updated.Version = version
	w.openFiles[uri] = updated
	return updated
}

// File returns the file for uri, preferring the open-buffer version.
func (w *Workspace) File(uri string) (*File, bool) {
	if f, ok := w.openFiles[uri]; ok {
		return f, true
	}
	f, ok := w.diskFiles[uri]
	return f, ok
}

// AllFiles returns every known file, "open wins": a URI present in both
// sets yields only its open-buffer File.
func (w *Workspace) AllFiles() map[string]*File {
	merged := make(map[string]*File, len(w.diskFiles)+len(w.openFiles))
	for uri, f := range w.diskFiles {
		merged[uri] = f
	}
	for uri, f := range w.openFiles {
		merged[uri] = f
	}
	return merged
}

// ScanFolders walks each given workspace-folder filesystem path, loading
// every ".sail" file it finds (matched with doublestar against
// WatchedFilesGlob, the same pattern registered with the client for
// watched-files notifications) as a disk file. Files already present as open buffers are left alone; a
// rescan only ever populates diskFiles.
func (w *Workspace) ScanFolders(ctx context.Context, folderPaths []string) error {
	for _, root := range folderPaths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // best-effort: skip unreadable entries
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if ok, _ := doublestar.Match(WatchedFilesGlob, filepath.ToSlash(rel)); !ok {
				return nil
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				w.logf("skipping unreadable file %s: %v", path, readErr)
				return nil
			}
			uri := PathToURI(path)
			w.diskFiles[uri] = NewFile(uri, string(content))
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WatchedFilesGlob is the glob pattern registered with the client for
// workspace/didChangeWatchedFiles.
const WatchedFilesGlob = "**/*.sail"

// NormalizeURI canonicalises a file: URI for comparison and path-similarity
// ranking: backslashes become forward slashes, so Windows-style paths
// compare segment-for-segment with their forward-slash equivalents.
func NormalizeURI(uri string) string {
	return strings.ReplaceAll(uri, "\\", "/")
}

// PathToURI converts a filesystem path into a file: URI, normalising
// separators first.
func PathToURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}

// URIToPath converts a file: URI back into a filesystem path.
func URIToPath(uri string) string {
	p := strings.TrimPrefix(uri, "file://")
	return filepath.FromSlash(p)
}

// DefinitionResult is one candidate location for a go-to-definition query.
type DefinitionResult struct {
	URI  string
	Span lexer.Span
}

// Definition resolves the identifier at (uri, offset) to every matching
// definition across the whole workspace, ranked by path-similarity to the
// querying file's own URI (closest first): files sharing more leading
// path segments (a longer common directory prefix) with the query file
// sort earlier.
func (w *Workspace) Definition(uri string, offset int) []DefinitionResult {
	f, ok := w.File(uri)
	if !ok {
		return nil
	}
	tok, ok := f.TokenAt(offset)
	if !ok || tok.Kind != lexer.Id {
		return nil
	}
	name := tok.Text

	type candidate struct {
		result     DefinitionResult
		similarity int
	}
	queryNorm := NormalizeURI(uri)
	var candidates []candidate
	for candURI, candFile := range w.AllFiles() {
		def, ok := candFile.Definitions[name]
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{
			result:     DefinitionResult{URI: candURI, Span: def.Span},
			similarity: pathSimilarity(queryNorm, NormalizeURI(candURI)),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	results := make([]DefinitionResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results
}

// caseInsensitivePaths reports whether this platform's filesystems compare
// paths case-insensitively by default, in which case ranking must too.
var caseInsensitivePaths = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// pathSimilarity counts the number of matching leading path segments between
// two (already forward-slash-normalised) URIs: files that share more of
// their directory prefix with the querying file rank closer.
func pathSimilarity(a, b string) int {
	if caseInsensitivePaths {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	as := strings.Split(strings.TrimSuffix(a, "/"), "/")
	bs := strings.Split(strings.TrimSuffix(b, "/"), "/")
	n := 0
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			break
		}
		n++
	}
	return n
}
