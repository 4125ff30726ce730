package bundle_test

import (
	"testing"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/bundle"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() message.BundleKey {
	return message.BundleKey{
		Receiver:       actor.Actor{Number: "5790001330583", Role: actor.RoleEnergySupplier},
		DocumentType:   message.NotifyAggregatedMeasureData,
		BusinessReason: message.BalanceFixing,
	}
}

func newBundle(t *testing.T, max int) *bundle.Bundle {
	t.Helper()
	b, err := bundle.New(testKey(), max)
	require.NoError(t, err)
	return b
}

func TestNew(t *testing.T) {
	b := newBundle(t, 3)
	assert.Equal(t, bundle.StateOpen, b.State())
	assert.Equal(t, testKey(), b.Key())
	assert.Equal(t, 0, b.MessageCount)
	assert.Equal(t, 0, b.Version)
	assert.Nil(t, b.MessageID)
	assert.True(t, b.AcceptsMessages())
}

func TestNew_InvalidMaxCount(t *testing.T) {
	_, err := bundle.New(testKey(), 0)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}

func TestAddMessage_PositionsAndFull(t *testing.T) {
	b := newBundle(t, 2)

	pos, err := b.AddMessage()
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = b.AddMessage()
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, 2, b.Version)

	// Full but still open: the bundle is not closed for assignment.
	assert.True(t, b.IsFull())
	assert.False(t, b.IsClosedForAssignment())
	assert.False(t, b.AcceptsMessages())
	assert.Equal(t, bundle.StateOpen, b.State())

	_, err = b.AddMessage()
	assert.ErrorIs(t, err, errors.ErrBundleFull)
}

func TestFreeze(t *testing.T) {
	b := newBundle(t, 10)
	_, _ = b.AddMessage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	changed, err := b.Freeze("M1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, bundle.StateFrozen, b.State())
	assert.Equal(t, "M1", *b.MessageID)
	assert.Equal(t, now, *b.ClosedAt)
	assert.Equal(t, 2, b.Version)

	_, err = b.AddMessage()
	assert.ErrorIs(t, err, errors.ErrBundleClosed)

	changed, err = b.Freeze("M2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "M1", *b.MessageID)
	assert.Equal(t, 2, b.Version)
}

func TestFreeze_EmptyToken(t *testing.T) {
	b := newBundle(t, 10)
	_, err := b.Freeze("", time.Now())
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
	assert.Equal(t, bundle.StateOpen, b.State())
}

func TestDequeue(t *testing.T) {
	b := newBundle(t, 10)

	_, err := b.Dequeue(time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	_, err = b.Freeze("M1", time.Now())
	require.NoError(t, err)

	changed, err := b.Dequeue(time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, bundle.StateDequeued, b.State())
	assert.True(t, b.IsClosedForAssignment())

	version := b.Version
	changed, err = b.Dequeue(time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, version, b.Version)

	_, err = b.Freeze("M2", time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	assert.Equal(t, "M1", *b.MessageID)
}

func TestAttachDocument(t *testing.T) {
	b := newBundle(t, 10)
	assert.ErrorIs(t, b.AttachDocument(), errors.ErrInvalidStateTransition)

	_, err := b.Freeze("M1", time.Now())
	require.NoError(t, err)
	version := b.Version
	require.NoError(t, b.AttachDocument())
	assert.Equal(t, version+1, b.Version)

	_, err = b.Dequeue(time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, b.AttachDocument(), errors.ErrInvalidStateTransition)
}

func TestCanTransitionTo(t *testing.T) {
	b := newBundle(t, 10)
	assert.True(t, b.CanTransitionTo(bundle.StateFrozen))
	assert.False(t, b.CanTransitionTo(bundle.StateDequeued))

	_, _ = b.Freeze("M1", time.Now())
	assert.True(t, b.CanTransitionTo(bundle.StateDequeued))
	assert.False(t, b.CanTransitionTo(bundle.StateOpen))

	_, _ = b.Dequeue(time.Now())
	assert.False(t, b.CanTransitionTo(bundle.StateOpen))
	assert.False(t, b.CanTransitionTo(bundle.StateFrozen))
}

func TestCanBePurged(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * 24 * time.Hour)

	open := newBundle(t, 10)
	assert.False(t, open.CanBePurged(now))

	frozen := newBundle(t, 10)
	_, _ = frozen.Freeze("M1", cutoff.Add(-time.Hour))
	assert.False(t, frozen.CanBePurged(now))

	old := newBundle(t, 10)
	_, _ = old.Freeze("M2", cutoff.Add(-2*time.Hour))
	_, _ = old.Dequeue(cutoff)
	assert.True(t, old.CanBePurged(cutoff))

	recent := newBundle(t, 10)
	_, _ = recent.Freeze("M3", now)
	_, _ = recent.Dequeue(cutoff.Add(time.Second))
	assert.False(t, recent.CanBePurged(cutoff))
}

func TestOwnedBy(t *testing.T) {
	b := newBundle(t, 10)
	assert.True(t, b.OwnedBy(testKey().Receiver))
	assert.False(t, b.OwnedBy(actor.Actor{Number: "5790001330583", Role: actor.RoleGridAccessProvider}))
}
