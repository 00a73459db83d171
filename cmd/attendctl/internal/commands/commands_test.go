package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"classattend/internal/auth"
	"classattend/internal/qr"
)

func TestTokenCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := &TokenCmd{Subject: "L1", Role: auth.RoleLecturer, TTL: time.Hour, Issuer: "classattend", SigningKey: "k"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Out: &out}))

	claims, err := auth.Parse(strings.TrimSpace(out.String()), "k", "classattend")
	require.NoError(t, err)
	require.Equal(t, "L1", claims.Subject)
	require.Equal(t, auth.RoleLecturer, claims.Role)
}

func TestQRCmd(t *testing.T) {
	payload, err := qr.Encode(qr.Payload{SessionID: 12, Token: "abc"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, (&QRCmd{Payload: payload}).Run(context.Background(), &Globals{Out: &out}))
	require.Equal(t, "session_id=12 token=abc\n", out.String())

	err = (&QRCmd{Payload: "not-json"}).Run(context.Background(), &Globals{Out: &out})
	require.ErrorIs(t, err, qr.ErrInvalidPayload)
}
