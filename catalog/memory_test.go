package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/core"
)

func TestMemoryRegistrar_RegisterIdempotent(t *testing.T) {
	reg := NewMemoryRegistrar()

	entry := &Entry{FileID: "f1", Filename: "ENG_Page_1.md", Content: "body"}
	inserted, err := reg.Register(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = reg.Register(context.Background(), entry)
	require.NoError(t, err)
	assert.False(t, inserted, "second registration is a no-op")
	assert.Equal(t, 1, reg.Registered())
}

func TestMemoryRegistrar_ManifestReplacedWholesale(t *testing.T) {
	reg := NewMemoryRegistrar()

	first := []core.FileRecord{{ID: "f1"}}
	second := []core.FileRecord{{ID: "f1"}, {ID: "f2"}}
	require.NoError(t, reg.FlushManifest(context.Background(), first))
	require.NoError(t, reg.FlushManifest(context.Background(), second))

	assert.Len(t, reg.Manifest(), 2)
	assert.Equal(t, 2, reg.Flushes())
}

func TestMemoryRegistrar_InjectedErrors(t *testing.T) {
	reg := NewMemoryRegistrar()
	boom := errors.New("boom")
	reg.RegisterErr = boom
	reg.FlushErr = boom

	_, err := reg.Register(context.Background(), &Entry{FileID: "f1"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, reg.FlushManifest(context.Background(), nil), boom)
}
