// Package statusdb stores per-run QC metrics documents in the central status
// database. Sample and flowcell documents are keyed by their canonical run
// names and upserted, so re-running a report refreshes the stored metrics.
package statusdb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"pm/qc"
)

const (
	sampleCollection   = "samples"
	flowcellCollection = "flowcells"

	entityTypeSample   = "sample_run_metrics"
	entityTypeFlowcell = "flowcell_run_metrics"
)

// Client wraps the MongoDB connection to the status database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.SugaredLogger
	timeout  time.Duration
}

// Connect dials the status database and verifies the connection with a ping.
func Connect(ctx context.Context, uri, dbName string, timeout time.Duration, logger *zap.SugaredLogger) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(10)
	client, err := mongo.Connect(dialCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to status database: %w", err)
	}

	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping status database: %w", err)
	}

	logger.Infow("connected to status database", "database", dbName)

	return &Client{
		client:   client,
		database: client.Database(dbName),
		logger:   logger,
		timeout:  timeout,
	}, nil
}

// Close disconnects from the status database.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// sampleDocument is the stored shape of a sample run metrics document.
type sampleDocument struct {
	Name       string               `bson:"name"`
	EntityType string               `bson:"entity_type"`
	Modified   time.Time            `bson:"modified"`
	Metrics    *qc.SampleRunMetrics `bson:"metrics"`
}

type flowcellDocument struct {
	Name       string                 `bson:"name"`
	EntityType string                 `bson:"entity_type"`
	Modified   time.Time              `bson:"modified"`
	Metrics    *qc.FlowcellRunMetrics `bson:"metrics"`
}

// SaveSampleMetrics upserts a sample run metrics document keyed by its run name.
func (c *Client) SaveSampleMetrics(ctx context.Context, m *qc.SampleRunMetrics) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc := sampleDocument{
		Name:       m.Name,
		EntityType: entityTypeSample,
		Modified:   time.Now().UTC(),
		Metrics:    m,
	}

	_, err := c.database.Collection(sampleCollection).ReplaceOne(ctx,
		bson.M{"name": m.Name, "entity_type": entityTypeSample},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving sample metrics %s: %w", m.Name, err)
	}

	c.logger.Debugw("saved sample run metrics", "name", m.Name)
	return nil
}

// GetSampleMetrics fetches a sample run metrics document by run name.
func (c *Client) GetSampleMetrics(ctx context.Context, name string) (*qc.SampleRunMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc sampleDocument
	err := c.database.Collection(sampleCollection).FindOne(ctx,
		bson.M{"name": name, "entity_type": entityTypeSample}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("sample run metrics %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching sample metrics %s: %w", name, err)
	}
	return doc.Metrics, nil
}

// SaveFlowcellMetrics upserts a flowcell run metrics document keyed by the
// flowcell short name.
func (c *Client) SaveFlowcellMetrics(ctx context.Context, m *qc.FlowcellRunMetrics) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc := flowcellDocument{
		Name:       m.Name,
		EntityType: entityTypeFlowcell,
		Modified:   time.Now().UTC(),
		Metrics:    m,
	}

	_, err := c.database.Collection(flowcellCollection).ReplaceOne(ctx,
		bson.M{"name": m.Name, "entity_type": entityTypeFlowcell},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving flowcell metrics %s: %w", m.Name, err)
	}

	c.logger.Debugw("saved flowcell run metrics", "name", m.Name)
	return nil
}

// GetFlowcellMetrics fetches a flowcell run metrics document by short name.
func (c *Client) GetFlowcellMetrics(ctx context.Context, name string) (*qc.FlowcellRunMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc flowcellDocument
	err := c.database.Collection(flowcellCollection).FindOne(ctx,
		bson.M{"name": name, "entity_type": entityTypeFlowcell}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("flowcell run metrics %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching flowcell metrics %s: %w", name, err)
	}
	return doc.Metrics, nil
}
