package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-match/internal/matching"
	"github.com/sells-group/vendor-match/internal/store"
	"github.com/sells-group/vendor-match/internal/suggest"
	"github.com/sells-group/vendor-match/internal/vetting"
)

// appEnv holds the components shared by commands that score vendors.
type appEnv struct {
	Store   store.Store
	Engine  *matching.Engine
	Vetting *vetting.Calculator
	Service *suggest.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// newCalculators builds the engine and vetting calculator from cfg, failing
// on invalid weights or thresholds.
func newCalculators() (*matching.Engine, *vetting.Calculator, error) {
	engine, err := matching.NewEngine(cfg.Scoring, cfg.Matching)
	if err != nil {
		return nil, nil, err
	}
	vet, err := vetting.NewCalculator(cfg.Vetting)
	if err != nil {
		return nil, nil, err
	}
	return engine, vet, nil
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates configuration, then opens the store and wires the
// suggestion service.
func initEnv(ctx context.Context) (*appEnv, error) {
	engine, vet, err := newCalculators()
	if err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return &appEnv{
		Store:   st,
		Engine:  engine,
		Vetting: vet,
		Service: suggest.New(st, engine, vet),
	}, nil
}
