package commands

import (
	"context"
	"fmt"

	"classattend/internal/qr"
)

type QRCmd struct {
	Payload string `arg:"" help:"Text scanned from the QR code"`
}

func (q *QRCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := qr.Decode(q.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(globals.Out, "session_id=%d token=%s\n", p.SessionID, p.Token)
	return err
}
