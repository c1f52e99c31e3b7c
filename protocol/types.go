// Package protocol defines the LSP 3.x wire types and method names this
// server speaks, hand-typed to the subset it actually sends and receives.
package protocol

// DocumentURI is a document's URI, "file"-scheme in practice.
type DocumentURI string

// Position is a zero-based (line, character) pair. Character counts UTF-16
// code units, per the protocol's default position encoding.
type Position struct {
	Line      uint `json:"line"`
	Character uint `json:"character"`
}

// Range is a half-open [start, end) span between two Positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a named document; the payload of a
// go-to-definition response.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier names a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem is the full document payload carried by didOpen.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}
