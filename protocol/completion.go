package protocol

import "encoding/json"

// CompletionParams parameters for the textDocument/completion request.
type CompletionParams struct {
	TextDocumentPositionParams
}

// CompletionList is a completion response: a set of items plus a flag
// telling the client whether further typing should re-query the server.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	// Label is shown in the list and, absent InsertText/TextEdit, is also
	// what gets inserted.
	Label            string              `json:"label"`
	Kind             *CompletionItemKind `json:"kind,omitempty"`
	Detail           string              `json:"detail,omitempty"`
	Documentation    json.RawMessage     `json:"documentation,omitempty"` // MarkupContent | string
	InsertText       string              `json:"insertText,omitempty"`
	InsertTextFormat *InsertTextFormat   `json:"insertTextFormat,omitempty"`
	// TextEdit, when present, wins over InsertText. Its range must sit on a
	// single line and contain the completion position.
	TextEdit *TextEdit `json:"textEdit,omitempty"`
}

// TextEdit replaces a range of a document with new text.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// CompletionItemKind selects the icon the editor shows for an item.
type CompletionItemKind int

const (
	Text          CompletionItemKind = 1
	Method        CompletionItemKind = 2
	Function      CompletionItemKind = 3
	Constructor   CompletionItemKind = 4
	Field         CompletionItemKind = 5
	Variable      CompletionItemKind = 6
	Class         CompletionItemKind = 7
	Interface     CompletionItemKind = 8
	Module        CompletionItemKind = 9
	Property      CompletionItemKind = 10
	Unit          CompletionItemKind = 11
	Value         CompletionItemKind = 12
	Enum          CompletionItemKind = 13
	Keyword       CompletionItemKind = 14
	Snippet       CompletionItemKind = 15
	Color         CompletionItemKind = 16
	File          CompletionItemKind = 17
	Reference     CompletionItemKind = 18
	Folder        CompletionItemKind = 19
	EnumMember    CompletionItemKind = 20
	Constant      CompletionItemKind = 21
	Struct        CompletionItemKind = 22
	Event         CompletionItemKind = 23
	Operator      CompletionItemKind = 24
	TypeParameter CompletionItemKind = 25
)

// InsertTextFormat says whether InsertText/NewText is plain text or a
// snippet with tab stops.
type InsertTextFormat int

const (
	PlainTextFormat InsertTextFormat = 1
	SnippetFormat   InsertTextFormat = 2
)
