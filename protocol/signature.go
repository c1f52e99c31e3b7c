package protocol

// SignatureHelpParams parameters for the textDocument/signatureHelp request.
type SignatureHelpParams struct {
	TextDocumentPositionParams
}

// SignatureHelp is the server's response to a signature-help request.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature *uint                  `json:"activeSignature,omitempty"`
	ActiveParameter *uint                  `json:"activeParameter,omitempty"`
}

// SignatureInformation describes one callable signature.
type SignatureInformation struct {
	Label         string                 `json:"label"`
	Documentation *MarkupContent         `json:"documentation,omitempty"`
	Parameters    []ParameterInformation `json:"parameters,omitempty"`
}

// ParameterInformation describes one parameter of a SignatureInformation.
type ParameterInformation struct {
	Label string `json:"label"`
}
