package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqliteutil.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := Open(db)
	require.NoError(t, err)
	return s
}

func TestCreateConversationAndAddMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "first chat")
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, c.ID, RoleUser, "hello")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, c.ID, RoleAssistant, "hi there")
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
}

func TestDeleteConversationCascadesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "to delete")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, c.ID, RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, c.ID))

	msgs, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLinkAndUnlinkDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	require.NoError(t, s.LinkDirectory(ctx, c.ID, "dir1"))
	require.NoError(t, s.LinkDirectory(ctx, c.ID, "dir2"))

	active, err := s.ActiveDirectories(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir1", "dir2"}, active)

	require.NoError(t, s.UnlinkDirectory(ctx, c.ID, "dir1"))
	active, err = s.ActiveDirectories(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dir2"}, active)
}

func TestActiveDirectoriesEmptyForUnlinkedConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConversation(ctx, "chat")
	require.NoError(t, err)

	active, err := s.ActiveDirectories(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}
