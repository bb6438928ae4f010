package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// newTestStore connects to a real MySQL-compatible instance named by
// SIGNALNOISE_TEST_MYSQL_DSN and runs the schema migration against it. The
// schema relies on generated columns and JSON columns that sqlite/mock
// drivers cannot reproduce faithfully, so these tests exercise the real
// wire protocol rather than a fake one; they're skipped when no test
// database is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SIGNALNOISE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SIGNALNOISE_TEST_MYSQL_DSN not set, skipping store integration test")
	}

	st, err := Open(Config{DSN: dsn, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, table := range []string{
		"hypothesis_segment_link_runs", "hypothesis_segment_links", "hypothesis_reference_cache",
		"question_hypothesis_links", "questions", "hypothesis_versions", "hypotheses",
		"transcription_requests", "ingestion_requests", "segments", "documents", "sources",
	} {
		_, err := st.db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return st
}

func seedSource(t *testing.T, st *Store) *models.Source {
	t.Helper()
	src, err := st.CreateSource(context.Background(), "hn-frontpage", models.SourceTypeRSS, "https://news.ycombinator.com/rss", true, 5*time.Minute)
	require.NoError(t, err)
	return src
}

func TestSourceLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	src := seedSource(t, st)
	assert := require.New(t)
	assert.NotEmpty(src.ID)

	fetched, err := st.GetSourceByName(ctx, "hn-frontpage")
	assert.NoError(err)
	assert.Equal(src.ID, fetched.ID)

	_, err = st.GetSourceByName(ctx, "does-not-exist")
	assert.ErrorIs(err, ErrNotFound)

	active, err := st.ListActiveSources(ctx)
	assert.NoError(err)
	assert.Len(active, 1)
}

func TestIngestionRequestQueueLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require := require.New(t)

	src := seedSource(t, st)

	_, err := st.EnqueueIngestionRequest(ctx, src.ID)
	require.NoError(err)

	_, err = st.EnqueueIngestionRequest(ctx, src.ID)
	require.ErrorIs(err, ErrAlreadyQueued)

	claimed, err := st.ClaimNextIngestionRequest(ctx)
	require.NoError(err)
	require.NotNil(claimed)
	require.Equal(models.JobStatusInProgress, claimed.Status)

	none, err := st.ClaimNextIngestionRequest(ctx)
	require.NoError(err)
	require.Nil(none)

	require.NoError(st.CompleteIngestionRequest(ctx, claimed.ID))
	got, err := st.GetIngestionRequest(ctx, claimed.ID)
	require.NoError(err)
	require.Equal(models.JobStatusCompleted, got.Status)

	// a fresh request for the same source can be queued again now that the
	// prior one is no longer in "queued" state.
	_, err = st.EnqueueIngestionRequest(ctx, src.ID)
	require.NoError(err)
}

func TestTranscriptionRequestQueueLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require := require.New(t)

	src := seedSource(t, st)
	doc, err := st.UpsertDocument(ctx, models.Document{
		SourceID:    src.ID,
		ExternalID:  "ep-1",
		Title:       "Episode 1",
		ContentText: "transcript pending",
	})
	require.NoError(err)

	req, err := st.EnqueueTranscriptionRequest(ctx, doc.ID, models.TranscriptionProviderOpenAI, "whisper-1", nil, nil)
	require.NoError(err)
	require.True(req.IsFullWindow())

	claimed, err := st.ClaimNextTranscriptionRequest(ctx)
	require.NoError(err)
	require.NotNil(claimed)

	none, err := st.ClaimNextTranscriptionRequest(ctx)
	require.NoError(err)
	require.Nil(none)

	require.NoError(st.CompleteTranscriptionRequest(ctx, claimed.ID, "full transcript text", map[string]interface{}{"provider": "openai"}))

	got, err := st.GetTranscriptionRequest(ctx, claimed.ID)
	require.NoError(err)
	require.Equal(models.JobStatusCompleted, got.Status)
	require.Equal("full transcript text", got.ResultText)
}

func TestGetNotFoundSentinels(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetDocument(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetSegment(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetHypothesis(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetQuestion(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetReferenceCacheEntry(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSentinels(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.DeleteSegment(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteHypothesis(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteQuestion(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
