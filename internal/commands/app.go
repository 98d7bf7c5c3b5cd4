package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/auditlog"
	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/config"
	"github.com/schoolpaypro/ledger/internal/gitops"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/persist"
	"github.com/schoolpaypro/ledger/internal/satellite"
	"github.com/schoolpaypro/ledger/internal/store"
	"github.com/schoolpaypro/ledger/internal/yearclose"
)

// app is an opened ledger directory.
type app struct {
	home   string
	cfg    *config.Config
	store  store.Store
	hub    *broadcast.Hub
	kafka  *broadcast.KafkaPublisher
	bridge *persist.Bridge
	audit  *auditlog.Log
	ledger *ledger.Service
	sat    *satellite.Service
}

// loadConfig reads <home>/schoolledger.yaml, after <home>/.env, and applies
// environment overrides.
func loadConfig(home string) (*config.Config, error) {
	if err := config.LoadEnvFile(filepath.Join(home, ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(home, config.FileName))
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context, home, actor string) (*app, error) {
	cfg, err := loadConfig(home)
	if err != nil {
		return nil, err
	}
	st, err := persist.OpenStore(ctx, cfg.Storage, home)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{home: home, cfg: cfg, store: st, hub: broadcast.NewHub()}
	var pub broadcast.Publisher = a.hub
	if len(cfg.Broadcast.KafkaBrokers) > 0 {
		a.kafka = broadcast.NewKafkaPublisher(cfg.Broadcast.KafkaBrokers, cfg.Broadcast.KafkaTopic)
		pub = broadcast.Multi{a.hub, a.kafka}
	}
	a.bridge = persist.New(st, pub)
	a.audit = auditlog.Open(home, actor)

	a.ledger, err = ledger.Open(ctx, ledger.Config{
		SchoolID:   cfg.School.ID,
		FiscalYear: cfg.Fiscal.AcademicYear,
		Bridge:     a.bridge,
		Gate:       yearclose.New(st),
		Audit:      a.audit,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.sat, err = satellite.Open(ctx, a.ledger, a.bridge, a.audit)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// snapshot commits the ledger directory when git auto-commit is on and the
// documents live in files. Failures are reported, not returned.
func (a *app) snapshot(w io.Writer, message string) {
	if !a.cfg.Git.AutoCommit || a.cfg.Storage.Driver != config.DriverJSON {
		return
	}
	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	if _, err := gitops.Snapshot(a.home, message, author); err != nil {
		fmt.Fprintf(w, "warning: git snapshot failed: %v\n", err)
	}
}

// open resolves --dir and opens the ledger there.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	home, err := filepath.Abs(o.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return openApp(cmd.Context(), home, o.actor)
}

// withApp opens the ledger, runs fn and closes it again.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// resolveAccount finds an account by code, then by ID.
func (a *app) resolveAccount(ref string) (model.Account, error) {
	if acct, ok := a.ledger.AccountByCode(ref); ok {
		return acct, nil
	}
	if acct, ok := a.ledger.Account(ref); ok {
		return acct, nil
	}
	return model.Account{}, fmt.Errorf("no account with code or id %q", ref)
}
