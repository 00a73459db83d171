package commands

import (
	"context"
	"fmt"
	"time"

	"classattend/internal/auth"
)

// TokenCmd provisions identities; credential storage lives outside this service.
type TokenCmd struct {
	Subject    string        `help:"User id placed in the sub claim" required:""`
	Role       string        `help:"Role claim" default:"lecturer" enum:"lecturer,student"`
	TTL        time.Duration `help:"Token lifetime" default:"12h"`
	Issuer     string        `help:"JWT issuer" default:"classattend" env:"JWT_ISSUER"`
	SigningKey string        `help:"JWT signing key" required:"" env:"JWT_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	tok, err := auth.Issue(t.Subject, t.Role, t.Issuer, t.SigningKey, t.TTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(globals.Out, tok.AccessToken)
	return err
}
