// Package protocol defines the line-oriented wire protocol spoken between
// the server and its clients: the numeric handshake codes, the sign-up
// marker, the shutdown sentinel, and the command prefix. Raw code literals
// must not leak outside this package; the handshake state machine works
// with Code values and encodes them only at the wire edge.
package protocol

import "strconv"

// Code is one of the fixed handshake codes exchanged during authentication.
type Code int

const (
	// CodeReady signals the server is ready to receive a mode marker or
	// a candidate username.
	CodeReady Code = 0
	// CodeNameHasSpaces rejects a username containing whitespace.
	CodeNameHasSpaces Code = 1
	// CodeAlreadyConnected rejects a login for a user that is already in
	// the registry.
	CodeAlreadyConnected Code = 2
	// CodePasswordRequired asks for the password of an existing user.
	CodePasswordRequired Code = 3
	// CodeAuthenticated admits the client to the chat.
	CodeAuthenticated Code = 4
	// CodeUnknownUser rejects a login for a username with no credential
	// record.
	CodeUnknownUser Code = 5
	// CodeUserExists rejects a sign-up for a username that is taken.
	CodeUserExists Code = 6
	// CodeWrongPassword rejects a login attempt with a bad password. The
	// connection stays open and the handshake restarts.
	CodeWrongPassword Code = 7
	// CodeSignupPassword asks for the password of a user being created.
	CodeSignupPassword Code = 10
)

const (
	// SignupMarker is sent by a client, in response to CodeReady, to
	// select the sign-up path instead of login. It deliberately collides
	// with the encoding of CodeReady; the direction disambiguates.
	SignupMarker = "0"

	// QuitSentinel is the reserved line a session writes to its peer
	// right before the server closes the connection.
	QuitSentinel = "Quitting..."

	// CommandPrefix marks an inbound line as a command rather than chat
	// text.
	CommandPrefix = "/"

	// SystemName is the sender identity used for server announcements.
	// Messages from it bypass word translation.
	SystemName = "Server"
)

var codeNames = map[Code]string{
	CodeReady:            "ready",
	CodeNameHasSpaces:    "name_has_spaces",
	CodeAlreadyConnected: "already_connected",
	CodePasswordRequired: "password_required",
	CodeAuthenticated:    "authenticated",
	CodeUnknownUser:      "unknown_user",
	CodeUserExists:       "user_exists",
	CodeWrongPassword:    "wrong_password",
	CodeSignupPassword:   "signup_password",
}

// Encode renders the code as the bare line sent on the wire.
func (c Code) Encode() string {
	return strconv.Itoa(int(c))
}

// String returns a human-readable name for logs.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// IsSignupMarker reports whether an inbound line selects the sign-up path.
func IsSignupMarker(line string) bool {
	return line == SignupMarker
}
