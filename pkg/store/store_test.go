package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarterrain/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSession() *Session {
	elev := models.NewGrid(4, 3)
	for i := range elev.Data {
		elev.Data[i] = float64(i) * 12.5
	}
	return &Session{
		Source:       "crater.png",
		Exaggeration: 200,
		ImagResidue:  0.01,
		Elevation:    elev,
		Zones: []models.LandingZone{
			{RowStart: 0, ColStart: 1, RowEnd: 2, ColEnd: 4, Area: 5, CenterRow: 1, CenterCol: 2, TiltDegrees: 3.5, Roughness: 0.2},
		},
		Stats: models.TerrainStats{
			MinElevation: 0, MaxElevation: 137.5, MeanElevation: 68.75, MeanSlope: 12,
			DangerAreaPercent: 33.3,
			TopPoints:         []models.ExtremePoint{{X: 3, Elevation: 137.5, Z: 2}},
			SlopeDistribution: []models.SlopeBin{{Label: ">45° (Critical)", Lower: 45, Upper: 90, Percent: 10}},
		},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	sess := sampleSession()
	require.NoError(t, s.SaveSession(ctx, sess))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Source, got.Source)
}

func TestSaveLoadSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := sampleSession()
	require.NoError(t, s.SaveSession(ctx, sess))
	_, err := uuid.Parse(sess.ID)
	require.NoError(t, err, "generated id should be a UUID")
	assert.Equal(t, 4, sess.Width)
	assert.Equal(t, 3, sess.Height)

	got, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)

	opts := cmp.Options{cmpopts.EquateApproxTime(time.Microsecond)}
	if diff := cmp.Diff(sess, got, opts); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	elev, err := s.LoadElevation(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Elevation.Data, elev.Data)
}

func TestSaveSession_KeepsExplicitID(t *testing.T) {
	s := openTestStore(t)
	sess := sampleSession()
	sess.ID = "fixed-id"
	require.NoError(t, s.SaveSession(context.Background(), sess))
	assert.Equal(t, "fixed-id", sess.ID)

	// Duplicate ids are rejected by the primary key.
	dup := sampleSession()
	dup.ID = "fixed-id"
	assert.Error(t, s.SaveSession(context.Background(), dup))
}

func TestSaveSession_RequiresElevation(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveSession(context.Background(), &Session{Source: "x"}))
}

func TestMissingSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.LoadElevation(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "nope"), ErrSessionNotFound)
	assert.ErrorIs(t, s.SavePathQuery(ctx, &PathQuery{SessionID: "nope"}), ErrSessionNotFound)
}

func TestListAndDeleteSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleSession()
	older.CreatedAt = time.Unix(100, 0)
	newer := sampleSession()
	newer.Source = "mare.png"
	newer.CreatedAt = time.Unix(200, 0)
	require.NoError(t, s.SaveSession(ctx, older))
	require.NoError(t, s.SaveSession(ctx, newer))

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.True(t, list[0].Elevation.Empty())

	require.NoError(t, s.DeleteSession(ctx, older.ID))
	list, err = s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mare.png", list[0].Source)
}

func TestPathQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess := sampleSession()
	require.NoError(t, s.SaveSession(ctx, sess))

	found := &PathQuery{
		SessionID: sess.ID,
		Start:     models.Point{X: 0, Y: 0},
		Goal:      models.Point{X: 2, Y: 1},
		MaxSlope:  25,
		Found:     true,
		Cost:      2.41,
		Path:      models.Path{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}},
	}
	blocked := &PathQuery{SessionID: sess.ID, Start: models.Point{X: 3, Y: 2}, Goal: models.Point{X: 0, Y: 0}, MaxSlope: 5}
	require.NoError(t, s.SavePathQuery(ctx, found))
	require.NoError(t, s.SavePathQuery(ctx, blocked))
	assert.Less(t, found.ID, blocked.ID)

	got, err := s.ListPathQueries(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, found.Path, got[0].Path)
	assert.True(t, got[0].Found)
	assert.False(t, got[1].Found)
	assert.Empty(t, got[1].Path)

	// Deleting the session cascades to its queries.
	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	got, err = s.ListPathQueries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
