package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"classattend/internal/store"
)

type MigrateCmd struct {
	DatabaseURL    string        `help:"Postgres connection string" required:"" env:"DATABASE_URL"`
	ConnectTimeout time.Duration `help:"How long to wait for the database" default:"30s" env:"DB_CONNECT_TIMEOUT"`
}

func (m *MigrateCmd) Run(ctx context.Context) error {
	db, err := store.NewDB(ctx, m.DatabaseURL, m.ConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db.Client); err != nil {
		return err
	}
	log.Info().Msg("schema up to date")
	return nil
}
