package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verticore/liftd/core/persistence"
)

func TestFactoryBackends(t *testing.T) {
	g, err := New(Config{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, persistence.NopGateway{}, g)

	g, err = New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &persistence.MemoryGateway{}, g)

	g, err = New(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "liftd.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteGateway{}, g)
	require.NoError(t, g.Close())
}

func TestFactoryValidation(t *testing.T) {
	_, err := New(Config{Backend: "sqlite"})
	assert.Error(t, err)

	_, err = New(Config{Backend: "mqtt"})
	assert.Error(t, err)

	_, err = New(Config{Backend: "postgres"})
	assert.Error(t, err)
}

type failingGateway struct{ err error }

func (f failingGateway) UpsertUnitState(context.Context, persistence.UnitRecord) error {
	return f.err
}
func (f failingGateway) AppendEvent(context.Context, persistence.EventRecord) error { return f.err }
func (f failingGateway) Close() error                                               { return f.err }

func TestMultiGatewayFanout(t *testing.T) {
	a := persistence.NewMemoryGateway()
	b := persistence.NewMemoryGateway()
	m := NewMultiGateway(a, b)

	rec := persistence.UnitRecord{UnitID: 1, CurrentFloor: 3, State: "IDLE", Direction: "NONE", UpdatedAt: time.Unix(100, 0)}
	require.NoError(t, m.UpsertUnitState(context.Background(), rec))
	assert.Len(t, a.Units(), 1)
	assert.Len(t, b.Units(), 1)
}

func TestMultiGatewayAttemptsAllOnError(t *testing.T) {
	boom := errors.New("boom")
	b := persistence.NewMemoryGateway()
	m := NewMultiGateway(failingGateway{err: boom}, b)

	ev := persistence.EventRecord{Type: persistence.EventUnitState, Severity: persistence.SeverityInfo, Timestamp: time.Unix(100, 0)}
	err := m.AppendEvent(context.Background(), ev)
	assert.ErrorIs(t, err, boom)
	// The healthy gateway still received the write.
	assert.Len(t, b.Events(persistence.EventUnitState, 0), 1)
}
