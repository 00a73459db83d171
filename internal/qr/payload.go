// Package qr encodes the text carried by a session QR code.
package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidPayload is returned for payloads that are malformed or miss a field.
var ErrInvalidPayload = errors.New("invalid qr payload")

var validate = validator.New()

// Payload is the QR content: the session id and its current token, nothing else.
type Payload struct {
	SessionID int64  `json:"sid" validate:"required,gt=0"`
	Token     string `json:"tok" validate:"required"`
}

// Encode renders the compact JSON text placed in the QR image.
func Encode(p Payload) (string, error) {
	if err := validate.Struct(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses scanned QR text. Unknown fields and missing fields are rejected.
func Decode(text string) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return Payload{}, fmt.Errorf("%w: trailing data", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}
