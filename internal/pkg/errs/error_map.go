/*
Package errs provides the application's error type and error code
constants.

This file maps every code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error
// code. A zero Status defaults to HTTP 200 at construction time.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimited:          {Code: ErrRateLimited, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Message Errors
	ErrInvalidRoom:  {Code: ErrInvalidRoom, Message: "Invalid room name."},
	ErrRoomNotFound: {Code: ErrRoomNotFound, Message: "Room not found."},
	ErrNotMember:    {Code: ErrNotMember, Message: "You are not a member of this room."},
	ErrInvalidText:  {Code: ErrInvalidText, Message: "Message must be 1-%d characters of printable text."},

	// 3xxx: Session and Authentication Errors
	ErrHandshakeTimeout:  {Code: ErrHandshakeTimeout, Message: "Authentication handshake timed out."},
	ErrInvalidToken:      {Code: ErrInvalidToken, Message: "Invalid or expired session token.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:   {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrNotAuthenticated:  {Code: ErrNotAuthenticated, Message: "Please complete the handshake first."},
	ErrUnsupportedIntent: {Code: ErrUnsupportedIntent, Message: "Unsupported action."},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
