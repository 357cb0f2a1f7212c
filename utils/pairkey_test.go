package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DirectRoomPairKey_Symmetric(t *testing.T) {
	req := require.New(t)
	req.Equal(DirectRoomPairKey("alice", "bob"), DirectRoomPairKey("bob", "alice"))
	req.Equal("alice|bob", DirectRoomPairKey("bob", "alice"))
	req.NotEqual(DirectRoomPairKey("alice", "bob"), DirectRoomPairKey("alice", "carol"))
}

func Test_DirectRoomPairKey_SeparatorInUsername(t *testing.T) {
	req := require.New(t)

	// Usernames containing the separator must not collapse distinct pairs
	// onto one key
	req.NotEqual(DirectRoomPairKey("a", "b|c"), DirectRoomPairKey("a|b", "c"))
	req.NotEqual(DirectRoomPairKey("a", "b%7Cc"), DirectRoomPairKey("a", "b|c"))
	req.Equal(DirectRoomPairKey("b|c", "a"), DirectRoomPairKey("a", "b|c"))
}
