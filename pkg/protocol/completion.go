package protocol

// CompletionReferenceType discriminates what a completion/complete request
// is completing against.
type CompletionReferenceType string

const (
	CompletionReferencePrompt   CompletionReferenceType = "ref/prompt"
	CompletionReferenceResource CompletionReferenceType = "ref/resource"
)

// CompletionReference names the prompt or resource template a completion
// request is arguing against.
type CompletionReference struct {
	Type CompletionReferenceType `json:"type"`
	Name string                  `json:"name,omitempty"`
	URI  string                  `json:"uri,omitempty"`
}

// CompletionArgument is the single argument being completed.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteParams is the params object for completion/complete.
type CompleteParams struct {
	Ref      CompletionReference `json:"ref"`
	Argument CompletionArgument  `json:"argument"`
}

// Completion is the nested completion payload of a CompleteResult.
type Completion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// CompleteResult is the result object for completion/complete.
type CompleteResult struct {
	Completion Completion `json:"completion"`
}
