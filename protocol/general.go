package protocol

import "encoding/json"

// ClientInfo identifies the connecting editor.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is the client's half of the initialize handshake.
type InitializeParams struct {
	ProcessID             *int               `json:"processId,omitempty"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	RootURI               *DocumentURI       `json:"rootUri,omitempty"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	Trace                 string             `json:"trace,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder is one root the client has open.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ClientCapabilities carries what the client can do. Only the capability
// groups this server consults are typed; everything else is ignored at
// decode time.
type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// WorkspaceClientCapabilities is the workspace group of client
// capabilities.
type WorkspaceClientCapabilities struct {
	ApplyEdit bool `json:"applyEdit,omitempty"`
}

// TextDocumentClientCapabilities is the text-document group of client
// capabilities.
type TextDocumentClientCapabilities struct {
	Synchronization *TextDocumentSyncClientCapabilities `json:"synchronization,omitempty"`
	Completion      *CompletionClientCapabilities       `json:"completion,omitempty"`
	Hover           *HoverClientCapabilities            `json:"hover,omitempty"`
}

// TextDocumentSyncClientCapabilities describes the client's sync support.
type TextDocumentSyncClientCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

// CompletionClientCapabilities describes the client's completion support.
type CompletionClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
	CompletionItem      *struct {
		SnippetSupport bool `json:"snippetSupport,omitempty"`
	} `json:"completionItem,omitempty"`
}

// HoverClientCapabilities describes the client's hover support.
type HoverClientCapabilities struct {
	DynamicRegistration bool         `json:"dynamicRegistration,omitempty"`
	ContentFormat       []MarkupKind `json:"contentFormat,omitempty"`
}

// MarkupKind tags string content with how the client should render it.
type MarkupKind string

const (
	PlainText MarkupKind = "plaintext"
	Markdown  MarkupKind = "markdown"
)

// InitializeResult is the server's half of the initialize handshake.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo identifies the server to the client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities is what the server advertises during initialize.
type ServerCapabilities struct {
	TextDocumentSync      *TextDocumentSyncOptions     `json:"textDocumentSync,omitempty"`
	CompletionProvider    *CompletionOptions           `json:"completionProvider,omitempty"`
	HoverProvider         *HoverOptions                `json:"hoverProvider,omitempty"`
	DefinitionProvider    *DefinitionOptions           `json:"definitionProvider,omitempty"`
	SignatureHelpProvider *SignatureHelpOptions        `json:"signatureHelpProvider,omitempty"`
	Workspace             *ServerCapabilitiesWorkspace `json:"workspace,omitempty"`
}

// ServerCapabilitiesWorkspace is the workspace group of server
// capabilities, namely workspace-folders change notification support.
type ServerCapabilitiesWorkspace struct {
	WorkspaceFolders *WorkspaceFoldersServerCapabilities `json:"workspaceFolders,omitempty"`
}

// WorkspaceFoldersServerCapabilities advertises whether the server
// supports workspace folders and wants to be notified when they change.
type WorkspaceFoldersServerCapabilities struct {
	Supported           bool `json:"supported,omitempty"`
	ChangeNotifications bool `json:"changeNotifications,omitempty"`
}

// SignatureHelpOptions is the signature-help entry in ServerCapabilities.
type SignatureHelpOptions struct {
	TriggerCharacters   []string `json:"triggerCharacters,omitempty"`
	RetriggerCharacters []string `json:"retriggerCharacters,omitempty"`
}

// TextDocumentSyncOptions says which document lifecycle notifications the
// server wants and in what form edits should arrive.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose,omitempty"`
	Change    TextDocumentSyncKind `json:"change,omitempty"`
	Save      *SaveOptions         `json:"save,omitempty"`
}

// SaveOptions controls whether didSave notifications include the full
// document text.
type SaveOptions struct {
	IncludeText bool `json:"includeText,omitempty"`
}

// TextDocumentSyncKind selects how document edits are shipped to the
// server.
type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

// CompletionOptions is the completion entry in ServerCapabilities.
type CompletionOptions struct {
	ResolveProvider   bool     `json:"resolveProvider,omitempty"`
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// WorkDoneProgressOptions is the progress-reporting mixin shared by
// provider option types.
type WorkDoneProgressOptions struct {
	WorkDoneProgress bool `json:"workDoneProgress,omitempty"`
}

// DefinitionOptions is the go-to-definition entry in ServerCapabilities.
type DefinitionOptions struct {
	WorkDoneProgressOptions
}

// InitializedParams is the (empty) payload of the initialized
// notification.
type InitializedParams struct{}

// LogMessageParams is the payload of window/logMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// MessageType grades a window message.
type MessageType int

const (
	Error   MessageType = 1
	Warning MessageType = 2
	Info    MessageType = 3
	Log     MessageType = 4
)

// ShowMessageParams is the payload of window/showMessage.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ShowMessageRequestParams is the payload of window/showMessageRequest.
type ShowMessageRequestParams struct {
	Type    MessageType         `json:"type"`
	Message string              `json:"message"`
	Actions []MessageActionItem `json:"actions,omitempty"`
}

// MessageActionItem is one button offered by a showMessageRequest.
type MessageActionItem struct {
	Title string `json:"title"`
}
