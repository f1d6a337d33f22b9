package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edusight/cluster-cli/internal/clusterml"
	"github.com/edusight/cluster-cli/internal/features"
	"github.com/edusight/cluster-cli/internal/monitoring"
	"github.com/edusight/cluster-cli/internal/orchestrator"
	"github.com/edusight/cluster-cli/internal/store"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Store   store.Store
	Monitor *monitoring.Monitor
	Orch    *orchestrator.Orchestrator
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "edusight.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv opens the store, runs migrations, and wires the clustering
// pipeline with thresholds from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	monitor := monitoring.New(st, cfg.Monitoring.WebhookURL)
	if err := monitor.UpdateThresholds(thresholdsFromConfig()); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "configure thresholds")
	}

	runner := clusterml.NewRunner(clusterml.Params{
		Seed:             cfg.Cluster.Seed,
		NInit:            cfg.Cluster.NInit,
		MaxIter:          cfg.Cluster.MaxIter,
		QualityThreshold: cfg.Cluster.QualityThreshold,
		CHNormalization:  cfg.Cluster.CHNormalization,
		MaxAlternatives:  cfg.Cluster.MaxAlternatives,
	})
	extractor := features.NewExtractor(st)
	orch := orchestrator.New(cfg.Cluster, st, extractor, runner, monitor)

	return &env{Store: st, Monitor: monitor, Orch: orch}, nil
}
