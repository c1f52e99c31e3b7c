package protocol

// Defines constants for common LSP method names.

const (
	// Text Document Synchronization
	MethodTextDocumentDidOpen   = "textDocument/didOpen"
	MethodTextDocumentDidChange = "textDocument/didChange"
	MethodTextDocumentDidSave   = "textDocument/didSave"
	MethodTextDocumentDidClose  = "textDocument/didClose"

	// Language Features
	MethodTextDocumentHover         = "textDocument/hover"
	MethodTextDocumentCompletion    = "textDocument/completion"
	MethodCompletionItemResolve     = "completionItem/resolve"
	MethodTextDocumentDefinition    = "textDocument/definition"
	MethodTextDocumentSignatureHelp = "textDocument/signatureHelp"

	// Workspace Features
	MethodWorkspaceApplyEdit                 = "workspace/applyEdit"
	MethodWorkspaceDidChangeWorkspaceFolders = "workspace/didChangeWorkspaceFolders"
	MethodWorkspaceDidChangeConfiguration    = "workspace/didChangeConfiguration"
	MethodWorkspaceDidChangeWatchedFiles     = "workspace/didChangeWatchedFiles"
	MethodClientRegisterCapability           = "client/registerCapability"

	// Window Features
	MethodWindowShowMessage        = "window/showMessage"
	MethodWindowShowMessageRequest = "window/showMessageRequest"
	MethodWindowLogMessage         = "window/logMessage"

	// Diagnostics
	MethodTextDocumentPublishDiagnostics = "textDocument/publishDiagnostics"

	// General Lifecycle
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized"
	MethodShutdown      = "shutdown"
	MethodExit          = "exit"
	MethodCancelRequest = "$/cancelRequest" // Notification to cancel a request
	MethodProgress      = "$/progress"      // Notification for progress updates
)
