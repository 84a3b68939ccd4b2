package extension

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pm/config"
	"pm/qc"
)

// QC exposes QC metrics collection to controllers as an extension, so report
// generation can be shared between deployments.
type QC struct {
	logger *zap.SugaredLogger
}

// NewQC creates the QC collection extension.
func NewQC() *QC {
	return &QC{}
}

// Name implements Extension.
func (q *QC) Name() string { return "qc" }

// Setup implements Extension.
func (q *QC) Setup(_ context.Context, _ *config.Config, logger *zap.SugaredLogger) error {
	q.logger = logger
	return nil
}

// Close implements Extension.
func (q *QC) Close(context.Context) error { return nil }

// Collector builds a metrics collector over a run directory.
func (q *QC) Collector(runDir string) (*qc.Collector, error) {
	if q.logger == nil {
		return nil, fmt.Errorf("qc extension is not set up")
	}
	return qc.NewCollector(runDir, q.logger)
}
