package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm/config"
)

type fakeExt struct {
	name     string
	setupErr error
	closeErr error
	setups   *[]string
	closes   *[]string
}

func (f *fakeExt) Name() string { return f.name }

func (f *fakeExt) Setup(context.Context, *config.Config, *zap.SugaredLogger) error {
	if f.setups != nil {
		*f.setups = append(*f.setups, f.name)
	}
	return f.setupErr
}

func (f *fakeExt) Close(context.Context) error {
	if f.closes != nil {
		*f.closes = append(*f.closes, f.name)
	}
	return f.closeErr
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeExt{name: "distributed"}))

	err := r.Register(&fakeExt{name: "distributed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&fakeExt{name: ""}))
}

func TestRegistrySetupOrderCloseReversed(t *testing.T) {
	var setups, closes []string

	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(&fakeExt{name: name, setups: &setups, closes: &closes}))
	}

	require.NoError(t, r.Setup(context.Background(), config.Default(), zap.NewNop().Sugar()))
	assert.Equal(t, []string{"a", "b", "c"}, setups)

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"c", "b", "a"}, closes)
}

func TestRegistrySetupFailureAborts(t *testing.T) {
	var setups []string

	r := NewRegistry()
	require.NoError(t, r.Register(&fakeExt{name: "a", setups: &setups}))
	require.NoError(t, r.Register(&fakeExt{name: "b", setups: &setups, setupErr: errors.New("boom")}))
	require.NoError(t, r.Register(&fakeExt{name: "c", setups: &setups}))

	err := r.Setup(context.Background(), config.Default(), zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extension "b"`)
	assert.Equal(t, []string{"a", "b"}, setups, "setup stops at the first failure")
}

func TestRegistryCloseAllDespiteErrors(t *testing.T) {
	var closes []string

	r := NewRegistry()
	require.NoError(t, r.Register(&fakeExt{name: "a", closes: &closes}))
	require.NoError(t, r.Register(&fakeExt{name: "b", closes: &closes, closeErr: errors.New("boom")}))
	require.NoError(t, r.Register(&fakeExt{name: "c", closes: &closes}))

	err := r.Close(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, closes)
}

func TestRegistryGetAndNames(t *testing.T) {
	r := NewRegistry()
	ext := &fakeExt{name: "qc"}
	require.NoError(t, r.Register(ext))

	got, ok := r.Get("qc")
	require.True(t, ok)
	assert.Same(t, ext, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"qc"}, r.Names())
}
