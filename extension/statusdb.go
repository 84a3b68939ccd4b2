package extension

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pm/config"
	"pm/statusdb"
)

// StatusDB provides connectivity to the central status database. When the
// feature is disabled in configuration, Setup is a no-op and Client returns
// an error explaining how to enable it.
type StatusDB struct {
	client *statusdb.Client
	// connect is swapped out by tests
	connect func(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*statusdb.Client, error)
}

// NewStatusDB creates the status database extension.
func NewStatusDB() *StatusDB {
	return &StatusDB{
		connect: func(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*statusdb.Client, error) {
			return statusdb.Connect(ctx, cfg.StatusDB.URI, cfg.StatusDB.Database, cfg.StatusDB.Timeout, logger)
		},
	}
}

// Name implements Extension.
func (s *StatusDB) Name() string { return "statusdb" }

// Setup implements Extension. Connection failure is an error: when the
// operator enabled statusdb they expect uploads to work, not to be skipped.
func (s *StatusDB) Setup(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	if !cfg.StatusDB.Enabled {
		logger.Debugw("status database disabled")
		return nil
	}
	client, err := s.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

// Close implements Extension.
func (s *StatusDB) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close(ctx)
	s.client = nil
	return err
}

// Client returns the connected status database client.
func (s *StatusDB) Client() (*statusdb.Client, error) {
	if s.client == nil {
		return nil, fmt.Errorf("status database is not enabled: set statusdb.enabled in pm.conf")
	}
	return s.client, nil
}
