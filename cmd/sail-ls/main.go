// Command sail-ls is a language server for the Sail hardware description
// language, communicating over stdin/stdout using the LSP JSON-RPC
// protocol.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/sailhdl/sail-ls/internal/autodebug"
	"github.com/sailhdl/sail-ls/jsonrpc2"
	"github.com/sailhdl/sail-ls/protocol"
	"github.com/sailhdl/sail-ls/server"
	"github.com/sailhdl/sail-ls/text"
	"github.com/sailhdl/sail-ls/workspace"
)

func main() {
	logger := log.New(os.Stderr, "sail-ls: ", log.LstdFlags|log.Lshortfile)
	autodebug.Check(logger)

	ws := workspace.New()
	srv := server.NewServer(server.WithLogger(logger))

	h := &handlers{ws: ws, logger: logger}
	h.register(srv)
	srv.OnInitialized(h.onInitialized(srv))

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Fatalf("server exited with error: %v", err)
	}
}

// handlers owns the server's workspace state. Message processing is
// single-threaded end to end (every handler, and the OnInitialized callback,
// runs inline in the server's read loop), so the mutex is not load-bearing
// for concurrency today; it guards against a future handler spawning its own
// goroutine and costs nothing on the hot path.
type handlers struct {
	mu     sync.Mutex
	ws     *workspace.Workspace
	logger *log.Logger
}

func (h *handlers) register(srv *server.Server) {
	must := func(err error) {
		if err != nil {
			h.logger.Fatalf("failed to register handler: %v", err)
		}
	}

	must(srv.Register(protocol.MethodTextDocumentDidOpen, h.didOpen))
	must(srv.Register(protocol.MethodTextDocumentDidChange, h.didChange))
	must(srv.Register(protocol.MethodTextDocumentDidClose, h.didClose))
	must(srv.Register(protocol.MethodTextDocumentDidSave, h.didSave))
	must(srv.Register(protocol.MethodTextDocumentDefinition, h.definition))
	must(srv.Register(protocol.MethodTextDocumentHover, h.hover))
	must(srv.Register(protocol.MethodTextDocumentCompletion, h.completion))
	must(srv.Register(protocol.MethodTextDocumentSignatureHelp, h.signatureHelp))
	must(srv.Register(protocol.MethodWorkspaceDidChangeWorkspaceFolders, h.didChangeWorkspaceFolders))
	must(srv.Register(protocol.MethodWorkspaceDidChangeConfiguration, h.didChangeConfiguration))
	must(srv.Register(protocol.MethodWorkspaceDidChangeWatchedFiles, h.didChangeWatchedFiles))
}

// onInitialized returns the callback run once the client's 'initialized'
// notification arrives: it scans the initial workspace folders (or the
// root URI, for clients that predate workspace folders) and registers the
// server's interest in .sail file changes.
func (h *handlers) onInitialized(srv *server.Server) func(context.Context, *protocol.InitializeParams) {
	return func(ctx context.Context, params *protocol.InitializeParams) {
		h.mu.Lock()
		var folders []string
		for _, f := range params.WorkspaceFolders {
			path := workspace.URIToPath(f.URI)
			h.ws.AddFolder(path)
			folders = append(folders, path)
		}
		if len(folders) == 0 && params.RootURI != nil {
			path := workspace.URIToPath(string(*params.RootURI))
			h.ws.AddFolder(path)
			folders = append(folders, path)
		}
		if len(folders) > 0 {
			if err := h.ws.ScanFolders(ctx, folders); err != nil {
				h.logger.Printf("error scanning initial workspace folders: %v", err)
			}
		}
		h.mu.Unlock()

		watchKind := protocol.WatchCreate | protocol.WatchChange | protocol.WatchDelete
		err := srv.RequestToClient(ctx, protocol.MethodClientRegisterCapability, protocol.RegistrationParams{
			Registrations: []protocol.Registration{{
				ID:     "sail-ls-watch-sail-files",
				Method: protocol.MethodWorkspaceDidChangeWatchedFiles,
				RegisterOptions: protocol.DidChangeWatchedFilesRegistrationOptions{
					Watchers: []protocol.FileSystemWatcher{{
						GlobPattern: workspace.WatchedFilesGlob,
						Kind:        &watchKind,
					}},
				},
			}},
		})
		if err != nil {
			h.logger.Printf("error registering didChangeWatchedFiles capability: %v", err)
		}
	}
}

func (h *handlers) didOpen(ctx context.Context, conn *jsonrpc2.Conn, params *protocol.DidOpenTextDocumentParams) error {
	h.mu.Lock()
	f := h.ws.Open(string(params.TextDocument.URI), params.TextDocument.Text, params.TextDocument.Version)
	h.mu.Unlock()
	h.publishDiagnostics(ctx, conn, f)
	return nil
}

func (h *handlers) didChange(ctx context.Context, conn *jsonrpc2.Conn, params *protocol.DidChangeTextDocumentParams) error {
	changes := make([]text.Change, 0, len(params.ContentChanges))
	for _, c := range params.ContentChanges {
		if c.Range == nil {
			changes = append(changes, text.Change{FullRange: true, NewText: c.Text})
			continue
		}
		changes = append(changes, text.Change{
			Range: text.Range{
				Start: text.Position{Line: uint32(c.Range.Start.Line), Character: uint32(c.Range.Start.Character)},
				End:   text.Position{Line: uint32(c.Range.End.Line), Character: uint32(c.Range.End.Character)},
			},
			NewText: c.Text,
		})
	}

	h.mu.Lock()
	f := h.ws.UpdateOpen(string(params.TextDocument.URI), params.TextDocument.Version, changes)
	h.mu.Unlock()

	if f == nil {
		// Clients can race a didChange against a didClose; log and carry on.
		h.logger.Printf("didChange for unopened document: %s", params.TextDocument.URI)
		return nil
	}
	h.publishDiagnostics(ctx, conn, f)
	return nil
}

func (h *handlers) didClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	h.ws.Close(string(params.TextDocument.URI))
	h.mu.Unlock()
	return nil
}

func (h *handlers) didSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	// No action beyond acknowledging: diagnostics are already kept current
	// by didOpen/didChange.
	return nil
}

func (h *handlers) definition(ctx context.Context, params *protocol.TextDocumentPositionParams) ([]protocol.Location, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	f, ok := h.ws.File(uri)
	if !ok {
		h.logger.Printf("definition requested for unopened document: %s", uri)
		return nil, nil
	}
	offset := f.Doc.OffsetAt(text.Position{Line: uint32(params.Position.Line), Character: uint32(params.Position.Character)})

	results := h.ws.Definition(uri, offset)
	locs := make([]protocol.Location, 0, len(results))
	for _, r := range results {
		target, ok := h.ws.File(r.URI)
		if !ok {
			continue
		}
		// A definition location is a point, not a span: both ends of the
		// range sit on the declaration identifier's first byte.
		pos := offsetToPosition(target.Doc, r.Span.Start)
		locs = append(locs, protocol.Location{
			URI:   protocol.DocumentURI(r.URI),
			Range: protocol.Range{Start: pos, End: pos},
		})
	}
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

// hover, completion and signatureHelp are registered so their capabilities
// are advertised to the client, but this repository implements no semantic
// analysis beyond the definition index; they always return a null result.
func (h *handlers) hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	return nil, nil
}

func (h *handlers) completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	return nil, nil
}

func (h *handlers) signatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	return nil, nil
}

func (h *handlers) didChangeWorkspaceFolders(ctx context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, removed := range params.Event.Removed {
		h.ws.RemoveFolder(workspace.URIToPath(removed.URI))
	}
	added := make([]string, 0, len(params.Event.Added))
	for _, folder := range params.Event.Added {
		path := workspace.URIToPath(folder.URI)
		h.ws.AddFolder(path)
		added = append(added, path)
	}
	if len(added) > 0 {
		if err := h.ws.ScanFolders(ctx, added); err != nil {
			h.logger.Printf("error scanning added workspace folders: %v", err)
		}
	}
	return nil
}

func (h *handlers) didChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	h.logger.Printf("received didChangeConfiguration (no configuration schema defined)")
	return nil
}

func (h *handlers) didChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ev := range params.Changes {
		uri := string(ev.URI)
		if !strings.HasPrefix(uri, "file:") {
			h.logger.Printf("ignoring watched-file event for non-file URI: %s", uri)
			continue
		}
		if ev.Type == protocol.FileChangeDeleted {
			h.ws.RemoveFile(uri)
			continue
		}
		path := workspace.URIToPath(uri)
		content, err := os.ReadFile(path)
		if err != nil {
			// An unreadable created/changed file is as good as gone.
			h.logger.Printf("skipping unreadable watched file %s: %v", path, err)
			h.ws.RemoveFile(uri)
			continue
		}
		h.ws.AddFile(uri, workspace.NewFile(uri, string(content)))
	}
	return nil
}

func (h *handlers) publishDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, f *workspace.File) {
	diags := make([]protocol.Diagnostic, 0, len(f.Diagnostics))
	for _, d := range f.Diagnostics {
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: offsetToPosition(f.Doc, d.Span.Start),
				End:   offsetToPosition(f.Doc, d.Span.End),
			},
			Severity: protocol.SeverityError,
			Source:   "Sail",
			Message:  d.Message,
		})
	}
	version := f.Version
	protocol.SendDiagnostics(ctx, conn, h.logger, protocol.DocumentURI(f.URI), &version, diags)
}

func offsetToPosition(doc *text.Document, offset int) protocol.Position {
	pos := doc.PositionAt(offset)
	return protocol.Position{Line: uint(pos.Line), Character: uint(pos.Character)}
}
