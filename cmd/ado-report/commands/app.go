package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/config"
	"github.com/goblinsan/ado-report/pkg/credentials"
	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/logging"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/goblinsan/ado-report/pkg/web"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// app is what every command that talks to Azure DevOps needs.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	client  *azure.Client
	session *engine.Session
	store   credentials.Store
	// remembered is set when the token came from the credential store.
	remembered bool
}

func credentialStore() (credentials.Store, error) {
	path, err := credentials.DefaultPath()
	if err != nil {
		return credentials.Store{}, err
	}
	return credentials.Store{Path: path}, nil
}

// loadConfig reads the configuration and fills the blanks from the stored
// credentials. It reports whether the stored token is the one in use.
func loadConfig(v *viper.Viper, store credentials.Store) (config.Config, bool, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, false, err
	}
	if store.Path == "" || cfg.Token != "" || cfg.AccessToken != "" {
		return cfg, false, nil
	}
	stored, ok, err := store.Load()
	if err != nil || !ok {
		return cfg, false, err
	}
	cfg.Token = stored.Token
	if cfg.Organization == "" {
		cfg.Organization = stored.Organization
	}
	if cfg.Project == "" {
		cfg.Project = stored.Project
	}
	return cfg, true, nil
}

func newApp() (*app, error) {
	store, err := credentialStore()
	if err != nil {
		return nil, err
	}
	cfg, remembered, err := loadConfig(viper.GetViper(), store)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	client := azure.NewClient(cfg.ClientOptions(log))
	return &app{
		cfg:        cfg,
		log:        log,
		client:     client,
		session:    engine.NewSession(client, cfg.SessionOptions(log)),
		store:      store,
		remembered: remembered,
	}, nil
}

var _ web.Service = (*app)(nil)

func (a *app) Snapshot() *engine.Snapshot { return a.session.Snapshot() }

// Refresh pulls a new snapshot. A rejected remembered token is forgotten.
func (a *app) Refresh(ctx context.Context) (*engine.Snapshot, error) {
	snap, err := a.session.Refresh(ctx)
	if err != nil {
		a.forgetRejected(err)
		return nil, err
	}
	return snap, nil
}

func (a *app) Comments(ctx context.Context, id int) ([]types.Comment, error) {
	comments, err := a.session.Comments(ctx, id)
	a.forgetRejected(err)
	return comments, err
}

func (a *app) RelatedBugs(ctx context.Context, id int) ([]types.WorkItem, error) {
	bugs, err := a.session.RelatedBugs(ctx, id)
	a.forgetRejected(err)
	return bugs, err
}

func (a *app) forgetRejected(err error) {
	if err == nil || !a.remembered || !errors.Is(err, azure.ErrAuthInvalid) {
		return
	}
	if ferr := a.store.Forget(); ferr != nil {
		a.log.Error().Err(ferr).Msg("failed to remove rejected credentials")
		return
	}
	a.log.Warn().Str("path", a.store.Path).Msg("stored credentials were rejected and have been removed")
}
