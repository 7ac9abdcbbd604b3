package annotation

import (
	"context"
	"testing"
	"time"

	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/palette"
	"marginalia/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_PerReaderIsolation(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(memory.NewSnapshotRepository(), palette.MustRegistry(), testLogger())

	alice := sessions.ForOwner("alice")
	assert.Same(t, alice, sessions.ForOwner("alice"))
	assert.Equal(t, "alice", alice.OwnerID)

	_, err := alice.Annotations.Add(ctx, gatsby, models.KindBookmark, svc.AddFields{PageIndex: 1})
	require.NoError(t, err)

	bob := sessions.ForOwner("bob")
	count, err := bob.Annotations.Count(ctx, gatsby)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSessions_EvictsIdleReaders(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(memory.NewSnapshotRepository(), palette.MustRegistry(), testLogger())
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return clock }
	sessions.idleTimeout = 10 * time.Minute

	alice := sessions.ForOwner("alice")
	_, err := alice.Annotations.Add(ctx, gatsby, models.KindBookmark, svc.AddFields{PageIndex: 1})
	require.NoError(t, err)

	clock = clock.Add(6 * time.Minute)
	bob := sessions.ForOwner("bob")
	require.Len(t, sessions.sessions, 2)

	// alice has been idle for 12 minutes, bob for 6
	clock = clock.Add(6 * time.Minute)
	assert.Same(t, bob, sessions.ForOwner("bob"))
	require.Len(t, sessions.sessions, 1)
	assert.NotContains(t, sessions.sessions, "alice")

	fresh := sessions.ForOwner("alice")
	assert.NotSame(t, alice, fresh)
	count, err := fresh.Annotations.Count(ctx, gatsby)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
