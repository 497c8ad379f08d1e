package protocol

// Resource describes a single resource as returned by resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a URI template for dynamically addressed
// resources, returned by resources/templates/list.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents is one entry of a resources/read result: either text or
// base64-encoded binary, mutually exclusive.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ListResourcesParams is the params object for resources/list.
type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesResult is the result object for resources/list.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ListResourceTemplatesParams is the params object for
// resources/templates/list.
type ListResourceTemplatesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourceTemplatesResult is the result object for
// resources/templates/list.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        string             `json:"nextCursor,omitempty"`
}

// ReadResourceParams is the params object for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult is the result object for resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// SubscribeResourceParams is the params object for resources/subscribe and
// resources/unsubscribe.
type SubscribeResourceParams struct {
	URI string `json:"uri"`
}

// SubscribeResourceResult is the (empty) result for resources/subscribe and
// resources/unsubscribe.
type SubscribeResourceResult struct{}

// ResourcesListChangedParams is the (empty) params object for
// notifications/resources/list_changed.
type ResourcesListChangedParams struct{}

// ResourceUpdatedParams is the params object for
// notifications/resources/updated.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}
