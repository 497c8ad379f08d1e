package protocol

import (
	"encoding/json"
	"fmt"
)

// ContentType discriminates the members of the Content union.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeResource ContentType = "resource"
)

// Content is the discriminated union every tool result and prompt message
// carries: a text part, an inlined image, or an embedded resource. Real MCP
// payloads mix these freely in one content array, so it is modeled as a
// tagged struct with a custom marshaler rather than three separate Go types,
// mirroring the way the codec itself (jsonrpc.go) discriminates frames by
// field presence.
type Content struct {
	Type ContentType

	// Text is set when Type == ContentTypeText.
	Text string

	// Image fields are set when Type == ContentTypeImage.
	Data     string `json:"-"`
	MimeType string `json:"-"`

	// Resource is set when Type == ContentTypeResource.
	Resource *EmbeddedResource `json:"-"`
}

// EmbeddedResource is the payload of a resource-typed Content part.
type EmbeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// NewTextContent builds a text Content part.
func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// NewImageContent builds an image Content part; data is base64-encoded.
func NewImageContent(data, mimeType string) Content {
	return Content{Type: ContentTypeImage, Data: data, MimeType: mimeType}
}

// NewResourceContent builds a resource Content part.
func NewResourceContent(resource *EmbeddedResource) Content {
	return Content{Type: ContentTypeResource, Resource: resource}
}

type contentWire struct {
	Type     ContentType       `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`
	MimeType string            `json:"mimeType,omitempty"`
	Resource *EmbeddedResource `json:"resource,omitempty"`
}

// MarshalJSON renders only the fields that belong to the active Type.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText:
		return json.Marshal(contentWire{Type: c.Type, Text: c.Text})
	case ContentTypeImage:
		return json.Marshal(contentWire{Type: c.Type, Data: c.Data, MimeType: c.MimeType})
	case ContentTypeResource:
		return json.Marshal(contentWire{Type: c.Type, Resource: c.Resource})
	default:
		return nil, fmt.Errorf("protocol: content has no type set")
	}
}

// UnmarshalJSON discriminates on the wire "type" field.
func (c *Content) UnmarshalJSON(data []byte) error {
	var w contentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case ContentTypeText:
		*c = Content{Type: w.Type, Text: w.Text}
	case ContentTypeImage:
		*c = Content{Type: w.Type, Data: w.Data, MimeType: w.MimeType}
	case ContentTypeResource:
		*c = Content{Type: w.Type, Resource: w.Resource}
	default:
		return fmt.Errorf("protocol: unknown content type %q", w.Type)
	}
	return nil
}
