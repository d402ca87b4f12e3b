package kafka

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DocumentID string         `json:"document_id"`
	Pages      map[int]string `json:"pages"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := encode(Event{Key: "doc-1", Value: sample{DocumentID: "doc-1", Pages: map[int]string{1: "alpha"}}})
	require.NoError(t, err)
	assert.Equal(t, []byte("doc-1"), msg.Key)

	got, err := DecodeJSON[sample](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Pages[1])
}

func TestEncodeRejectsOversizedEvent(t *testing.T) {
	big := strings.Repeat("x", maxMessageBytes)
	_, err := encode(Event{Key: "doc-2", Value: sample{Pages: map[int]string{1: big}}})
	require.Error(t, err)
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte("{not json"))
	assert.Error(t, err)
}
