package protocol

import (
	"context"
	"log"

	"github.com/sailhdl/sail-ls/jsonrpc2"
)

// SendDiagnostics publishes the complete current diagnostics set for uri.
// version, when non-nil, is the document version the diagnostics were
// computed against, so the client can drop reports that raced an edit.
// Failures are logged; diagnostics are advisory and never worth killing the
// connection over.
func SendDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, logger *log.Logger, uri DocumentURI, version *int, diagnostics []Diagnostic) {
	if conn == nil {
		logger.Printf("dropping diagnostics for %s: no connection", uri)
		return
	}
	if diagnostics == nil {
		// Encode "no problems" as an empty array, not null: the client
		// clears stale diagnostics only on an explicit empty set.
		diagnostics = []Diagnostic{}
	}

	notification, err := jsonrpc2.NewNotification(MethodTextDocumentPublishDiagnostics, PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	})
	if err != nil {
		logger.Printf("marshalling diagnostics for %s: %v", uri, err)
		return
	}

	logger.Printf("<-- Notification: Method=%s, URI=%s, Diagnostics=%d",
		MethodTextDocumentPublishDiagnostics, uri, len(diagnostics))
	if err := conn.Write(ctx, notification); err != nil {
		logger.Printf("sending diagnostics for %s: %v", uri, err)
	}
}
