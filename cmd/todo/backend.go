package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/backend/firestore"
	"cloudtodo/internal/backend/identitytoolkit"
	"cloudtodo/internal/backend/local"
	"cloudtodo/internal/cli"
	"cloudtodo/internal/config"
	"cloudtodo/internal/service"
)

// newBackend builds the backend selected by the backend setting.
func newBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger, prompt io.Writer) (*cli.Backend, error) {
	switch cfg.Settings.Backend {
	case config.BackendFirestore, "":
		return firestoreBackend(ctx, cfg, log, prompt)
	case config.BackendLocal:
		return localBackend(cfg, log)
	default:
		return nil, fmt.Errorf("unknown backend %q in %s (want %s or %s)",
			cfg.Settings.Backend, cfg.SettingsPath(), config.BackendFirestore, config.BackendLocal)
	}
}

func firestoreBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger, prompt io.Writer) (*cli.Backend, error) {
	provider, err := identitytoolkit.New(ctx, cfg, prompt, log)
	if err != nil {
		return nil, err
	}
	return &cli.Backend{
		Provider: provider,
		Service: func(ctx context.Context, sess *auth.Session) (service.Service, error) {
			// The session is the token source, so requests carry a fresh ID token.
			client, err := firestore.New(ctx, cfg, sess, log)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}, nil
}

func localBackend(cfg *config.Config, log *logrus.Logger) (*cli.Backend, error) {
	db, err := local.Open(cfg.LocalDBPath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.LocalDBPath(), err)
	}
	return &cli.Backend{
		Provider: local.NewAccounts(db),
		Service: func(ctx context.Context, sess *auth.Session) (service.Service, error) {
			return db, nil
		},
		Close: db.Close,
	}, nil
}
