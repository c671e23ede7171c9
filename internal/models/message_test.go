package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_PartnerOf(t *testing.T) {
	m := Message{ID: "m-1", SenderID: "u-1", ReceiverID: "u-2"}
	require.Equal(t, "u-2", m.PartnerOf("u-1"))
	require.Equal(t, "u-1", m.PartnerOf("u-2"))

	self := Message{ID: "m-2", SenderID: "u-1", ReceiverID: "u-1"}
	require.Equal(t, "u-1", self.PartnerOf("u-1"))
}

func TestUser_ProfileOmitsCredentials(t *testing.T) {
	u := User{ID: "u-1", FullName: "Alice", Email: "alice@example.com", Password: "hash", ProfilePic: "a.png"}
	require.Equal(t, Profile{ID: "u-1", FullName: "Alice", ProfilePic: "a.png"}, u.Profile())
}
