package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/permission"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, s.Create(ctx, &sessionauth.User{ID: "id-" + name, Username: name, Role: permission.RoleUser, Active: true}))
	}
	assert.ErrorIs(t, s.Create(ctx, &sessionauth.User{ID: "other", Username: "alice"}), sessionauth.ErrUsernameTaken)

	u, err := s.ReadByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "id-bob", u.ID)

	u.Role = permission.RoleAdmin
	assert.Equal(t, permission.RoleUser, mustRead(t, s, "id-bob").Role, "returned user must be a copy")
	require.NoError(t, s.Update(ctx, u))
	assert.Equal(t, permission.RoleAdmin, mustRead(t, s, "id-bob").Role)

	_, err = s.ReadByID(ctx, "missing")
	assert.ErrorIs(t, err, sessionauth.ErrUserNotFound)
	assert.ErrorIs(t, s.Update(ctx, &sessionauth.User{ID: "missing"}), sessionauth.ErrUserNotFound)

	page, err := s.List(ctx, sessionauth.ListUsersQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "alice", page[0].Username)
	assert.Equal(t, "bob", page[1].Username)

	page, err = s.List(ctx, sessionauth.ListUsersQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "carol", page[0].Username)

	page, err = s.List(ctx, sessionauth.ListUsersQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func mustRead(t *testing.T, s *MemoryStore, id string) *sessionauth.User {
	t.Helper()
	u, err := s.ReadByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
