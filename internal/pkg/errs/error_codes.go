/*
Package errs provides the application's error type and error code
constants.

Codes identify specific request or session failures both inside the
server and on the wire to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimited indicates the client exceeded its allowed request or
	// message rate.
	ErrRateLimited = 1007
)

// 2xxx: Room and Message Errors
const (
	// ErrInvalidRoom indicates an empty or malformed room name, or a room
	// outside the catalog when dynamic rooms are disabled.
	ErrInvalidRoom = 2101

	// ErrRoomNotFound indicates the named room does not exist.
	ErrRoomNotFound = 2102

	// ErrNotMember indicates the session is not a member of the room it
	// tried to act on.
	ErrNotMember = 2103

	// ErrInvalidText indicates message text failed validation (empty after
	// trim, over the length limit, or unprintable characters).
	ErrInvalidText = 2201
)

// 3xxx: Session and Authentication Errors
const (
	// ErrHandshakeTimeout indicates the connection did not complete the
	// authentication handshake within the allowed window.
	ErrHandshakeTimeout = 3001

	// ErrInvalidToken indicates the handshake token was missing, expired,
	// or failed validation.
	ErrInvalidToken = 3002

	// ErrInvalidUsername indicates the login username failed validation.
	ErrInvalidUsername = 3003

	// ErrNotAuthenticated indicates an intent arrived before the handshake
	// completed.
	ErrNotAuthenticated = 3004

	// ErrUnsupportedIntent indicates the client sent an unknown frame type.
	ErrUnsupportedIntent = 3005
)

// 5xxx: Internal Errors
const (
	// ErrUnknown is the unclassified internal server error.
	ErrUnknown = 5000
)
