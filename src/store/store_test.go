package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageValidate(t *testing.T) {
	tests := []struct {
		name   string
		msg    NewMessage
		fields []string
	}{
		{
			name: "valid text",
			msg:  NewMessage{ChannelID: "general", UserID: "u1", Content: "hi"},
		},
		{
			name: "valid image with url only",
			msg:  NewMessage{ChannelID: "general", UserID: "u1", MessageType: types.MessageImage, FileURL: "https://x/y.png"},
		},
		{
			name: "call without content",
			msg:  NewMessage{ChannelID: "general", UserID: "u1", MessageType: types.MessageCall},
		},
		{
			name:   "missing ids",
			msg:    NewMessage{Content: "hi"},
			fields: []string{"channelId", "userId"},
		},
		{
			name:   "empty text",
			msg:    NewMessage{ChannelID: "general", UserID: "u1"},
			fields: []string{"content"},
		},
		{
			name:   "unknown type",
			msg:    NewMessage{ChannelID: "general", UserID: "u1", Content: "hi", MessageType: "sticker"},
			fields: []string{"messageType"},
		},
		{
			name:   "file without url or content",
			msg:    NewMessage{ChannelID: "general", UserID: "u1", MessageType: types.MessageFile, FileSize: -1},
			fields: []string{"fileUrl", "fileSize"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			got := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestPrepareDefaultsTextType(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	m, err := Prepare(NewMessage{ChannelID: "general", UserID: "u1", Content: "hi"}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, types.MessageText, m.MessageType)
	assert.Equal(t, now.UTC(), m.CreatedAt)
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)
	assert.False(t, m.IsEdited)
	assert.False(t, m.IsDeleted)
}

func TestPrepareWrapsValidationError(t *testing.T) {
	_, err := Prepare(NewMessage{}, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidMessage))

	var fieldErrs criterio.FieldErrors
	assert.ErrorAs(t, err, &fieldErrs)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultRecentLimit, ClampLimit(0))
	assert.Equal(t, DefaultRecentLimit, ClampLimit(-3))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxRecentLimit, ClampLimit(MaxRecentLimit+1))
}

// storeContract runs the behaviour every MessageStore must provide.
func storeContract(t *testing.T, s MessageStore) {
	t.Helper()
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"first", "second", "third"} {
		m, err := s.Append(ctx, NewMessage{ChannelID: "general", UserID: "u1", Content: content})
		require.NoError(t, err)
		assert.Equal(t, content, m.Content)
		assert.Equal(t, types.MessageText, m.MessageType)
		ids = append(ids, m.ID)
	}
	_, err := s.Append(ctx, NewMessage{ChannelID: "random", UserID: "u2", Content: "elsewhere"})
	require.NoError(t, err)

	_, err = s.Append(ctx, NewMessage{ChannelID: "general"})
	require.ErrorIs(t, err, ErrInvalidMessage)

	recent, err := s.Recent(ctx, "general", 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{recent[0].ID, recent[1].ID, recent[2].ID})
	assert.Equal(t, "third", recent[0].Content)
	assert.Equal(t, "u1", recent[0].UserID)

	page, err := s.Recent(ctx, "general", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	empty, err := s.Recent(ctx, "nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	storeContract(t, m)
	assert.Equal(t, 3, m.Count("general"))
	assert.Equal(t, 1, m.Count("random"))
	assert.NoError(t, m.Close())
}

func TestMemoryStoreKeepsAttachmentFields(t *testing.T) {
	m := NewMemory()
	got, err := m.Append(context.Background(), NewMessage{
		ChannelID:   "general",
		UserID:      "u1",
		MessageType: types.MessageFile,
		FileURL:     "https://files/report.pdf",
		FileName:    "report.pdf",
		FileSize:    2048,
		ReplyTo:     "m-1",
	})
	require.NoError(t, err)

	recent, err := m.Recent(context.Background(), "general", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, *got, recent[0])
	assert.Equal(t, int64(2048), recent[0].FileSize)
	assert.Equal(t, "m-1", recent[0].ReplyTo)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storeContract(t, s)
}

func TestSQLiteStoreRoundTripsFields(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	got, err := s.Append(ctx, NewMessage{
		ChannelID:   "general",
		UserID:      "u1",
		Content:     "see attached",
		MessageType: types.MessageImage,
		FileURL:     "https://files/cat.png",
		FileName:    "cat.png",
		FileSize:    512,
	})
	require.NoError(t, err)

	recent, err := s.Recent(ctx, "general", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, got.ID, recent[0].ID)
	assert.Equal(t, types.MessageImage, recent[0].MessageType)
	assert.Equal(t, "cat.png", recent[0].FileName)
	assert.Equal(t, int64(512), recent[0].FileSize)
	assert.True(t, got.CreatedAt.Equal(recent[0].CreatedAt))
}
