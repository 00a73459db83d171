package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"classattend/cmd/attendctl/internal/commands"
	"classattend/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Token   commands.TokenCmd   `cmd:"" help:"Mint a bearer token for a lecturer or student"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply the database schema"`
		QR      commands.QRCmd      `cmd:"" name:"qr" help:"Decode and validate a scanned QR payload"`
		Debug   bool                `help:"Enable debug logging."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("attendctl"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	level := "info"
	if cli.Debug {
		level = "debug"
	}
	logger.Setup(false, level)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Out: os.Stdout})
	cmd.FatalIfErrorf(err)
}
