package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlms/lticore/pkg/lti1p3/deeplinking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?mode=rwc"
	s, err := Open(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTool() Tool {
	return Tool{
		ID:            "t1",
		Title:         "Example Tool",
		LaunchURL:     "https://tool.example.com/launch",
		OAuthKey:      "k1",
		OAuthSecret:   "s1",
		ClientID:      "client-1",
		DeploymentID:  "deploy-1",
		OIDCURL:       "https://tool.example.com/oidc",
		KeysetURL:     "https://tool.example.com/jwks.json",
		AllowedScopes: []string{"a", "b"},
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, sampleTool()))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, sampleTool(), got)

	byClient, err := s.GetByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "t1", byClient.ID)

	byKey, err := s.GetByOAuthKey(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "t1", byKey.ID)
}

func TestUpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, sampleTool()))
	updated := sampleTool()
	updated.Title = "Renamed"
	updated.AllowedScopes = nil
	require.NoError(t, s.Upsert(ctx, updated))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.Empty(t, got.AllowedScopes)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, sampleTool()))
	require.NoError(t, s.Delete(ctx, "t1"))
	_, err := s.Get(ctx, "t1")
	require.ErrorIs(t, err, ErrToolNotFound)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(ctx, "t1"))
}

func TestScoresLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.GetScore(ctx, "t1", "u1")
	require.ErrorIs(t, err, ErrScoreNotFound)

	v := 0.8
	require.NoError(t, s.SetScore(ctx, "t1", "u1", &v, "good"))
	score, comment, err := s.GetScore(ctx, "t1", "u1")
	require.NoError(t, err)
	require.NotNil(t, score)
	require.InDelta(t, 0.8, *score, 1e-9)
	require.Equal(t, "good", comment)

	// Overwrite with a cleared score.
	require.NoError(t, s.SetScore(ctx, "t1", "u1", nil, ""))
	score, _, err = s.GetScore(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Nil(t, score)

	require.NoError(t, s.DeleteScore(ctx, "t1", "u1"))
	_, _, err = s.GetScore(ctx, "t1", "u1")
	require.ErrorIs(t, err, ErrScoreNotFound)
}

func TestSaveContentItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items := []deeplinking.ContentItem{
		{Type: "ltiResourceLink", URL: "https://tool.example.com/1", Title: "One"},
		{Type: "html", HTML: "<p>hi</p>"},
	}
	require.NoError(t, s.SaveContentItems(ctx, "t1", items))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE tool_id = 't1'`).Scan(&n))
	require.Equal(t, 2, n)
}
