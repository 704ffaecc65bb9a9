package launchcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlms/lticore/pkg/lti1p3"
)

func sampleLaunch() lti1p3.LaunchData {
	return lti1p3.LaunchData{
		UserID:         "u1",
		UserRole:       "student",
		ResourceLinkID: "rl-1",
		CustomParameters: map[string]string{
			"unit": "3",
		},
	}
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k1", sampleLaunch(), time.Minute))
	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, sampleLaunch(), got)
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "never")
	require.ErrorIs(t, err, lti1p3.ErrLaunchDataNotFound)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1700000000, 0)
	m.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k1", sampleLaunch(), time.Minute))

	now = now.Add(30 * time.Second)
	_, err := m.Get(ctx, "k1")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = m.Get(ctx, "k1")
	require.ErrorIs(t, err, lti1p3.ErrLaunchDataNotFound)
}

func openTestBolt(t *testing.T) *Bolt {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "launches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltPutGet(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "k1", sampleLaunch(), time.Minute))
	got, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, sampleLaunch(), got)
}

func TestBoltMiss(t *testing.T) {
	b := openTestBolt(t)
	_, err := b.Get(context.Background(), "never")
	require.ErrorIs(t, err, lti1p3.ErrLaunchDataNotFound)
}

func TestBoltExpiry(t *testing.T) {
	b := openTestBolt(t)
	now := time.Unix(1700000000, 0)
	b.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "k1", sampleLaunch(), time.Minute))

	now = now.Add(2 * time.Minute)
	_, err := b.Get(ctx, "k1")
	require.ErrorIs(t, err, lti1p3.ErrLaunchDataNotFound)

	// Expired entries are removed on read.
	now = time.Unix(1700000000, 0)
	_, err = b.Get(ctx, "k1")
	require.ErrorIs(t, err, lti1p3.ErrLaunchDataNotFound)
}

func TestBoltProctoringRoundTrip(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	ld := sampleLaunch()
	ld.MessageType = lti1p3.MessageTypeStartProctoring
	ld.Proctoring = &lti1p3.ProctoringLaunchData{
		AttemptNumber: 3,
		SessionData:   "opaque",
	}
	require.NoError(t, b.Put(ctx, "k1", ld, time.Minute))

	got, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got.Proctoring)
	require.Equal(t, 3, got.Proctoring.AttemptNumber)
}
