package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "notewatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedNotes(t *testing.T, store *Store, patientID int64, base time.Time, contents ...string) []Note {
	t.Helper()
	out := make([]Note, 0, len(contents))
	for i, c := range contents {
		n, err := store.InsertNote(context.Background(), Note{
			PatientID: patientID,
			NoteType:  "Progress",
			Title:     "note",
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func TestPatientRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p, err := store.CreatePatient(ctx, Patient{FirstName: " Ada ", LastName: "Byron", MRN: "MRN-001"})
	require.NoError(t, err)
	got, err := store.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "Active", got.Status)

	_, err = store.CreatePatient(ctx, Patient{FirstName: "A", LastName: "B", MRN: "MRN-001"})
	assert.Error(t, err)

	_, err = store.GetPatient(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreviousNotesOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.CreatePatient(ctx, Patient{FirstName: "A", LastName: "B", MRN: "1"})
	require.NoError(t, err)
	other, err := store.CreatePatient(ctx, Patient{FirstName: "C", LastName: "D", MRN: "2"})
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	notes := seedNotes(t, store, p.ID, base, "n0", "n1", "n2", "n3", "n4")
	seedNotes(t, store, other.ID, base.Add(30*time.Minute), "x0")

	prev, err := store.PreviousNotes(ctx, notes[4], 3)
	require.NoError(t, err)
	require.Len(t, prev, 3)
	assert.Equal(t, []string{"n3", "n2", "n1"}, []string{prev[0].Content, prev[1].Content, prev[2].Content})

	first, err := store.PreviousNotes(ctx, notes[0], 3)
	require.NoError(t, err)
	assert.Empty(t, first)
}

func TestPreviousNotesBreaksTimestampTiesByID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.CreatePatient(ctx, Patient{FirstName: "A", LastName: "B", MRN: "1"})
	require.NoError(t, err)

	same := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var notes []Note
	for _, c := range []string{"a", "b", "c"} {
		n, err := store.InsertNote(ctx, Note{PatientID: p.ID, NoteType: "Progress", Title: "t", Content: c, CreatedAt: same})
		require.NoError(t, err)
		notes = append(notes, n)
	}
	prev, err := store.PreviousNotes(ctx, notes[1], 3)
	require.NoError(t, err)
	require.Len(t, prev, 1)
	assert.Equal(t, "a", prev[0].Content)
}

func TestUpdateAnomalyAndFlaggedNotes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.CreatePatient(ctx, Patient{FirstName: "A", LastName: "B", MRN: "1"})
	require.NoError(t, err)
	notes := seedNotes(t, store, p.ID, time.Now(), "n0", "n1", "n2")

	fresh, err := store.GetNote(ctx, notes[0].ID)
	require.NoError(t, err)
	assert.Nil(t, fresh.AnomalyScore)

	require.NoError(t, store.UpdateAnomaly(ctx, notes[0].ID, true, 0.61))
	require.NoError(t, store.UpdateAnomaly(ctx, notes[1].ID, true, 0.92))
	require.NoError(t, store.UpdateAnomaly(ctx, notes[2].ID, false, 0.1))
	assert.ErrorIs(t, store.UpdateAnomaly(ctx, 999, true, 1), ErrNotFound)

	flagged, err := store.FlaggedNotes(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, notes[1].ID, flagged[0].ID)
	require.NotNil(t, flagged[0].AnomalyScore)
	assert.Equal(t, 0.92, *flagged[0].AnomalyScore)
	assert.True(t, flagged[0].IsFlagged)

	ids, err := store.NoteIDs(ctx, &p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{notes[0].ID, notes[1].ID, notes[2].ID}, ids)

	count, err := store.CountRows(ctx, "case_notes")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	_, err = store.CountRows(ctx, "users; DROP TABLE patients")
	assert.Error(t, err)

	flaggedCount, err := store.CountFlagged(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flaggedCount)

	listed, err := store.ListNotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, notes[0].ID, listed[0].ID)
	require.NotNil(t, listed[2].AnomalyScore)
	assert.False(t, listed[2].IsFlagged)
}

func TestListPatientsOrderedByName(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.CreatePatient(ctx, Patient{FirstName: "Zoe", LastName: "Moss", MRN: "2"})
	require.NoError(t, err)
	_, err = store.CreatePatient(ctx, Patient{FirstName: "Ada", LastName: "Byron", MRN: "1"})
	require.NoError(t, err)

	patients, err := store.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Byron", patients[0].LastName)
	assert.Equal(t, "Moss", patients[1].LastName)
}
