package qr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	text, err := Encode(Payload{SessionID: 42, Token: "5f2b9c0d1e"})
	require.NoError(t, err)
	require.Equal(t, `{"sid":42,"tok":"5f2b9c0d1e"}`, text)

	p, err := Decode(text)
	require.NoError(t, err)
	require.Equal(t, Payload{SessionID: 42, Token: "5f2b9c0d1e"}, p)
}

func TestEncode_rejectsIncomplete(t *testing.T) {
	_, err := Encode(Payload{SessionID: 1})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Encode(Payload{Token: "abc"})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecode_rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "not json", text: "session-12"},
		{name: "missing token", text: `{"sid":12}`},
		{name: "missing session", text: `{"tok":"abc"}`},
		{name: "empty token", text: `{"sid":12,"tok":""}`},
		{name: "zero session", text: `{"sid":0,"tok":"abc"}`},
		{name: "negative session", text: `{"sid":-3,"tok":"abc"}`},
		{name: "unknown field", text: `{"sid":12,"tok":"abc","lat":1}`},
		{name: "string session", text: `{"sid":"12","tok":"abc"}`},
		{name: "trailing data", text: `{"sid":12,"tok":"abc"}{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.text)
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestDecode_toleratesSurroundingWhitespace(t *testing.T) {
	p, err := Decode("  {\"sid\":7,\"tok\":\"t\"}\n")
	require.NoError(t, err)
	require.Equal(t, int64(7), p.SessionID)
}
