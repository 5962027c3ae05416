package conversation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/mocks"
	"github.com/ZaguanLabs/mathgpt/internal/storage"
)

func fixedClock(t0 time.Time) func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func openStore(st conversation.Storage) *conversation.Store {
	return conversation.Open(st, conversation.Options{
		Location:     time.UTC,
		ClearBackoff: time.Millisecond,
		Now:          fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
	})
}

func TestStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	s := openStore(storage.NewMemory())

	m, err := s.Append(conversation.Message{Content: "What is $2+2$?", Sender: conversation.User})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Timestamp.IsZero())
	assert.Equal(t, time.UTC, m.Timestamp.Location())
	assert.Equal(t, 1, s.Len())
}

func TestStore_AppendRejectsUnknownSender(t *testing.T) {
	s := openStore(storage.NewMemory())

	_, err := s.Append(conversation.Message{Content: "hi", Sender: "robot"})
	var ve *mgErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sender", ve.Field())
	assert.Zero(t, s.Len())
}

func TestStore_AppendReassignsDuplicateID(t *testing.T) {
	s := openStore(storage.NewMemory())

	first, err := s.Append(conversation.Message{ID: "same", Content: "a", Sender: conversation.User})
	require.NoError(t, err)
	second, err := s.Append(conversation.Message{ID: "same", Content: "b", Sender: conversation.Assistant})
	require.NoError(t, err)

	assert.Equal(t, "same", first.ID)
	assert.NotEqual(t, "same", second.ID)
	assert.Equal(t, 2, s.Len())
}

func TestStore_RoundTrip(t *testing.T) {
	backend := storage.NewMemory()
	s := openStore(backend)

	for _, m := range mocks.CreateTestMessages(4) {
		_, err := s.Append(m)
		require.NoError(t, err)
	}
	want := s.Messages()

	got := openStore(backend).Messages()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.Equal(t, want[i].Sender, got[i].Sender)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "timestamp %d", i)
	}
}

func TestStore_RoundTripSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathgpt.db")

	db, err := storage.OpenSQLite(path)
	require.NoError(t, err)
	s := openStore(db)
	_, err = s.Append(conversation.Message{Content: "Solve $$x^2 = 9$$", Sender: conversation.User})
	require.NoError(t, err)
	_, err = s.Append(conversation.Message{Content: "$x = \\pm 3$", Sender: conversation.Assistant})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	got := openStore(db).Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "$x = \\pm 3$", got[1].Content)
	assert.Equal(t, conversation.Assistant, got[1].Sender)
}

func TestStore_ClearThenLoadIsEmpty(t *testing.T) {
	backend := storage.NewMemory()
	s := openStore(backend)
	_, err := s.Append(conversation.Message{Content: "x", Sender: conversation.User})
	require.NoError(t, err)
	gen := s.Generation()

	require.NoError(t, s.Clear(context.Background()))
	assert.Zero(t, s.Len())
	assert.Equal(t, gen+1, s.Generation())

	_, ok, err := backend.Get(conversation.DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, openStore(backend).Len())
}

func TestStore_ClearRetriesThenSucceeds(t *testing.T) {
	st := mocks.NewMockStorage()
	s := openStore(st)
	_, err := s.Append(conversation.Message{Content: "x", Sender: conversation.User})
	require.NoError(t, err)

	st.FailTimes("Delete", 2)
	require.NoError(t, s.Clear(context.Background()))
	mocks.AssertStorageCallCount(t, st, "Delete", 3)
	assert.Zero(t, s.Len())
}

func TestStore_ClearFailureKeepsMemory(t *testing.T) {
	st := mocks.NewMockStorage()
	s := openStore(st)
	_, err := s.Append(conversation.Message{Content: "keep me", Sender: conversation.User})
	require.NoError(t, err)
	gen := s.Generation()

	st.SetError("Delete", errors.New("database is locked"))
	err = s.Clear(context.Background())

	var se *mgErrors.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "clear", se.Operation())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, gen, s.Generation())
	mocks.AssertStorageCallCount(t, st, "Delete", 3)
}

func TestStore_PersistFailureIsSwallowed(t *testing.T) {
	st := mocks.NewMockStorage()
	st.SetError("Set", errors.New("disk full"))
	s := openStore(st)

	m, err := s.Append(conversation.Message{Content: "still here", Sender: conversation.User})
	require.NoError(t, err)
	assert.Equal(t, []conversation.Message{m}, s.Messages())
}

func TestStore_AppendIfCurrentDropsStale(t *testing.T) {
	s := openStore(storage.NewMemory())
	_, err := s.Append(conversation.Message{Content: "q", Sender: conversation.User})
	require.NoError(t, err)
	gen := s.Generation()

	require.NoError(t, s.Clear(context.Background()))

	_, ok, err := s.AppendIfCurrent(gen, conversation.Message{Content: "late", Sender: conversation.Assistant})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	_, ok, err = s.AppendIfCurrent(s.Generation(), conversation.Message{Content: "fresh", Sender: conversation.Assistant})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_LoadMissingAndCorrupt(t *testing.T) {
	st := mocks.NewMockStorage()
	assert.Zero(t, openStore(st).Len())

	st.Put(conversation.DefaultKey, []byte("{not json"))
	assert.Zero(t, openStore(st).Len())

	st.SetError("Get", errors.New("io error"))
	assert.Zero(t, openStore(st).Len())
}

func TestStore_LoadSkipsBadMessages(t *testing.T) {
	st := mocks.NewMockStorage()
	st.Put(conversation.DefaultKey, []byte(`[
		{"id":"1","content":"ok","sender":"user","timestamp":"2024-03-01T10:00:00Z"},
		{"id":"2","content":"bad time","sender":"user","timestamp":"yesterday"},
		{"id":"3","content":"who","sender":"robot","timestamp":"2024-03-01T10:00:01Z"},
		{"id":"1","content":"dup","sender":"user","timestamp":"2024-03-01T10:00:02Z"},
		42,
		{"id":"4","content":"legacy","sender":"ai","timestamp":"2024-03-01T10:00:03.5+02:00"},
		{"content":"no id","sender":"assistant","timestamp":"2024-03-01T10:00:04Z"}
	]`))

	got := openStore(st).Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "ok", got[0].Content)
	assert.Equal(t, "legacy", got[1].Content)
	assert.Equal(t, conversation.Assistant, got[1].Sender)
	assert.True(t, got[1].Timestamp.Equal(time.Date(2024, 3, 1, 8, 0, 3, 500000000, time.UTC)))
	assert.Equal(t, "no id", got[2].Content)
	assert.NotEmpty(t, got[2].ID)
}

func TestStore_Export(t *testing.T) {
	s := openStore(storage.NewMemory())
	_, err := s.Append(conversation.Message{
		Content: "What is $\\pi$?", Sender: conversation.User,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = s.Append(conversation.Message{
		Content: "About 3.14159.", Sender: conversation.Assistant,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t,
		"[2024-03-01 10:00:00] You: What is $\\pi$?\n\n[2024-03-01 10:00:05] MathGPT: About 3.14159.",
		s.Export())
}

func TestStore_ExportEmpty(t *testing.T) {
	assert.Equal(t, "", openStore(storage.NewMemory()).Export())
}

func TestExportFilename(t *testing.T) {
	day := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "mathgpt-conversation-2024-03-01.txt", conversation.ExportFilename("MathGPT", day))
	assert.Equal(t, "calc-tutor-conversation-2024-03-01.txt", conversation.ExportFilename("Calc Tutor", day))
	assert.Equal(t, "mathgpt-conversation-2024-03-01.txt", conversation.ExportFilename("  ", day))
}

func TestStore_WriteExport(t *testing.T) {
	s := openStore(storage.NewMemory())
	_, err := s.Append(conversation.Message{
		Content: "hello", Sender: conversation.User,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := s.WriteExport(dir, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mathgpt-conversation-2024-03-01.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2024-03-01 10:00:00] You: hello\n", string(data))
}

func TestStore_AppendWithHistory(t *testing.T) {
	s := openStore(storage.NewMemory())
	first, err := s.Append(conversation.Message{Content: "a", Sender: conversation.User})
	require.NoError(t, err)

	stored, before, gen, err := s.AppendWithHistory(conversation.Message{Content: "b", Sender: conversation.User})
	require.NoError(t, err)
	assert.Equal(t, []conversation.Message{first}, before)
	assert.Equal(t, s.Generation(), gen)
	assert.Equal(t, "b", stored.Content)
	assert.Equal(t, 2, s.Len())
}
