package protocol

// TextDocumentPositionParams is the (document, position) pair shared by
// hover, definition, completion and signature-help requests.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// HoverParams parameters for the textDocument/hover request.
type HoverParams struct {
	TextDocumentPositionParams
}

// Hover is the response to a hover request.
type Hover struct {
	Contents MarkupContent `json:"contents"`
	// Range, when present, is the span the hover describes, used by the
	// client for highlighting.
	Range *Range `json:"range,omitempty"`
}

// MarkupContent is a string tagged with how the client should render it.
type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// HoverOptions is the hover entry in ServerCapabilities.
type HoverOptions struct {
	WorkDoneProgressOptions
}
