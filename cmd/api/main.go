package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact"
	contactrepo "github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/repo"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person"
	personrepo "github.com/ovaphlow/pitchfork/service-registry-go/internal/person/repo"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/utilities"
)

// storage bundles the stores of one driver.
type storage struct {
	persons  person.Store
	contacts contact.Store
	uow      person.UnitOfWork
	db       *sqlx.DB
}

func openStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage, error) {
	if cfg.StorageDriver == config.DriverMemory {
		sugar.Warn("using in-memory storage; data is lost on exit")
		store := memstore.New()
		return &storage{persons: store.Persons(), contacts: store.Contacts(), uow: store}, nil
	}

	db, err := database.Open(cfg.Database())
	if err != nil {
		return nil, err
	}
	tx := database.NewTransactor(db)
	persons := personrepo.NewPersonRepo(db)
	contacts := contactrepo.NewContactRepo(db, tx)

	// persons first; contact tables reference it
	if err := persons.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure persons table: %w", err)
	}
	if err := contacts.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure contact tables: %w", err)
	}
	return &storage{persons: persons, contacts: contacts, uow: tx, db: db}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-registry-go", "storage", cfg.StorageDriver, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("storage: %v", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := person.NewRegistry(st.persons, st.contacts, st.uow,
		person.NewRandomRoleAssigner(cfg.AdminRatio, 0), m, sugar)
	registry.PerPage = cfg.PageSize
	registry.SearchLimit = cfg.SearchLimit

	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		Registry: registry,
		Contacts: contact.NewService(st.contacts, m, sugar),
		IDs:      utilities.NewIDGenerator(cfg.SnowflakeNode),
		Gatherer: reg,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if st.db != nil {
		if err := st.db.PingContext(doneCtx); err != nil {
			sugar.Warnf("db ping on shutdown failed: %v", err)
		}
	}

	sugar.Info("goodbye")
}
