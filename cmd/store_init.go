package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tripatlas/curator/internal/correction"
	"github.com/tripatlas/curator/internal/store"
	"github.com/tripatlas/curator/internal/taxonomy"
)

// openStore opens the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("curator: no database_url configured (set store.database_url)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("curator: unknown store driver %q", cfg.Store.Driver)
	}
}

// services wires the taxonomy and correction services onto one store.
// Constructed once per command and passed explicitly; there is no global
// service container.
type services struct {
	store      store.Store
	taxonomy   *taxonomy.Service
	correction *correction.Service
}

func initServices(ctx context.Context) (*services, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	return &services{
		store:      st,
		taxonomy:   taxonomy.NewService(st),
		correction: correction.NewService(st),
	}, nil
}

func (s *services) Close() {
	_ = s.store.Close()
}
