package llm

// ModelInfo is a canonical record of one routable model.
type ModelInfo struct {
	Provider                 ProviderID `json:"provider"`
	ModelID                  string     `json:"model_id"`
	DisplayName              *string    `json:"display_name,omitempty"`
	ContextWindow            *int64     `json:"context_window,omitempty"`
	MaxOutputTokens          *int64     `json:"max_output_tokens,omitempty"`
	SupportsTools            bool       `json:"supports_tools"`
	SupportsStructuredOutput bool       `json:"supports_structured_output"`
}

// Catalog is an ordered collection of model records.
type Catalog struct {
	Models []ModelInfo `json:"models,omitempty"`
}
