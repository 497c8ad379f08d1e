package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentTextRoundTrip(t *testing.T) {
	c := NewTextContent("hello")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hello"}`, string(data))

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}

func TestContentImageRoundTrip(t *testing.T) {
	c := NewImageContent("YmFzZTY0", "image/png")

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}

func TestContentResourceRoundTrip(t *testing.T) {
	c := NewResourceContent(&EmbeddedResource{URI: "file:///a", Text: "hi"})

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}

func TestContentUnknownTypeErrors(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"type":"audio"}`), &c)
	assert.Error(t, err)
}

func TestContentZeroValueMarshalErrors(t *testing.T) {
	var c Content
	_, err := json.Marshal(c)
	assert.Error(t, err)
}
