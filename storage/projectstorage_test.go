package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm/core"
)

func newTestStorage(t *testing.T) *ProjectStorage {
	t.Helper()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "pm.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProjectStorage(db)
}

func TestCreateAndGetProject(t *testing.T) {
	ps := newTestStorage(t)
	ctx := context.Background()

	p := &core.Project{Name: "J.Doe_13_01", PI: "J.Doe", Description: "exome capture"}
	require.NoError(t, ps.CreateProject(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, core.ProjectStatusOpen, p.Status)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := ps.GetProject(ctx, "J.Doe_13_01")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "J.Doe", got.PI)
	assert.Equal(t, core.ProjectStatusOpen, got.Status)
	assert.Nil(t, got.ClosedAt)
}

func TestCreateProjectDuplicateName(t *testing.T) {
	ps := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01"}))
	err := ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01"})
	assert.ErrorIs(t, err, ErrProjectExists)
}

func TestCreateProjectInvalidName(t *testing.T) {
	ps := newTestStorage(t)
	err := ps.CreateProject(context.Background(), &core.Project{Name: "13bad"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrProjectExists))
}

func TestGetProjectNotFound(t *testing.T) {
	ps := newTestStorage(t)
	_, err := ps.GetProject(context.Background(), "nosuch")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestListProjectsFilterByStatus(t *testing.T) {
	ps := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01"}))
	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "A.Smith_12_11"}))
	require.NoError(t, ps.UpdateStatus(ctx, "A.Smith_12_11", core.ProjectStatusClosed))

	all, err := ps.ListProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := ps.ListProjects(ctx, core.ProjectStatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "J.Doe_13_01", open[0].Name)

	closed, err := ps.ListProjects(ctx, core.ProjectStatusClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.NotNil(t, closed[0].ClosedAt)
}

func TestUpdateStatus(t *testing.T) {
	ps := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01"}))
	require.NoError(t, ps.UpdateStatus(ctx, "J.Doe_13_01", core.ProjectStatusClosed))

	got, err := ps.GetProject(ctx, "J.Doe_13_01")
	require.NoError(t, err)
	assert.Equal(t, core.ProjectStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	assert.ErrorIs(t, ps.UpdateStatus(ctx, "nosuch", core.ProjectStatusClosed), ErrProjectNotFound)
	assert.Error(t, ps.UpdateStatus(ctx, "J.Doe_13_01", core.ProjectStatus("done")))
}

func TestDeleteProjectCascadesDeliveries(t *testing.T) {
	ps := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01"}))
	require.NoError(t, ps.RecordDelivery(ctx, "J.Doe_13_01", &DeliveryRecord{
		Destination: "/proj/inbox/J.Doe_13_01",
		FileCount:   4,
	}))

	recs, err := ps.ListDeliveries(ctx, "J.Doe_13_01")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 4, recs[0].FileCount)

	require.NoError(t, ps.DeleteProject(ctx, "J.Doe_13_01"))
	_, err = ps.GetProject(ctx, "J.Doe_13_01")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	assert.ErrorIs(t, ps.DeleteProject(ctx, "J.Doe_13_01"), ErrProjectNotFound)
}

func TestRecordDeliveryUnknownProject(t *testing.T) {
	ps := newTestStorage(t)
	err := ps.RecordDelivery(context.Background(), "nosuch", &DeliveryRecord{Destination: "/tmp"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUseAfterClose(t *testing.T) {
	db, err := NewSQLite(filepath.Join(t.TempDir(), "pm.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	ps := NewProjectStorage(db)
	ctx := context.Background()

	require.NoError(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_01", PI: "J.Doe"}))
	require.NoError(t, db.Close())

	assert.ErrorIs(t, ps.CreateProject(ctx, &core.Project{Name: "J.Doe_13_02", PI: "J.Doe"}), ErrDatabaseClosed)
	_, err = ps.GetProject(ctx, "J.Doe_13_01")
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = ps.ListProjects(ctx, "")
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	assert.ErrorIs(t, ps.UpdateStatus(ctx, "J.Doe_13_01", core.ProjectStatusClosed), ErrDatabaseClosed)
	assert.ErrorIs(t, ps.DeleteProject(ctx, "J.Doe_13_01"), ErrDatabaseClosed)
}
