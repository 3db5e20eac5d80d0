/*
Package user holds the identity shape shared across the chat system.
*/
package user

// Identity is the id/username pair assigned at login. It is immutable for
// the lifetime of a connection. Two sessions may share a username; ID is
// the true key.
type Identity struct {
	// ID is the opaque unique identifier for the user.
	ID string `json:"id"`

	// Username is the display name shown to other room members.
	Username string `json:"username"`
}
