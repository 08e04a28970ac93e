package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
}

func TestUser_CheckLifecycle(t *testing.T) {
	u := NewUser(1, 10)
	u.BeginCheck("A3")
	require.Equal(t, StateAwaitingPhoto, u.State)
	require.Equal(t, "A3", u.LastWellID)

	require.True(t, u.StartProcessing())
	require.False(t, u.StartProcessing())
	u.FinishCheck()
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, 1, u.Checks)
}
