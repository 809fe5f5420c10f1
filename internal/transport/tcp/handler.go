package tcp

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/auth"
	"github.com/beechat/beechat-server/internal/core"
	"github.com/beechat/beechat-server/internal/protocol"
)

// errClientGone signals that the peer closed the connection.
var errClientGone = errors.New("client disconnected")

var helpText = []string{
	"Available commands",
	"quit: disconnects the client from the server",
	"slap [user]: sends \"[sender] slaps [user] with a large trout\"",
	"nick: changes the users nickname",
	"pm: privately messages another user. Syntax: \"/pm jonah [message]\"",
	"help: prints this list of commands",
	"list: lists the users in the chat.",
}

const rosterRule = "------------------------------------"

// Handler owns one connected client: the authentication state machine, the
// receive loop, and the command interpreter.
type Handler struct {
	sess      *Session
	auth      *auth.Service
	reg       *core.Registry
	bcast     *core.Broadcaster
	adminUser string
	shutdown  func() // triggers server-wide lifecycle shutdown
	log       zerolog.Logger

	running atomic.Bool
	name    string
	admin   bool
}

// NewHandler builds a handler for one accepted session. shutdown is
// invoked by the admin shutdown command and must not block on this
// handler's completion.
func NewHandler(sess *Session, authSvc *auth.Service, reg *core.Registry, bcast *core.Broadcaster, adminUser string, shutdown func(), logger zerolog.Logger) *Handler {
	h := &Handler{
		sess:      sess,
		auth:      authSvc,
		reg:       reg,
		bcast:     bcast,
		adminUser: adminUser,
		shutdown:  shutdown,
		log:       logger,
	}
	h.running.Store(true)
	return h
}

// Stop forces the handler's loop flag false and disconnects its session.
// Called by the server during lifecycle shutdown.
func (h *Handler) Stop() {
	h.running.Store(false)
	h.sess.Disconnect()
}

// Run drives the connection through authentication and the receive loop.
// It returns when the client leaves, the transport drops, or the server
// shuts the handler down.
func (h *Handler) Run() {
	name, err := h.authenticate()
	if err != nil {
		// The client was never admitted; no registry state to undo.
		h.log.Debug().Err(err).Msg("client left during authentication")
		h.sess.Disconnect()
		return
	}

	h.name = name
	h.admin = name == h.adminUser
	h.sess.SetName(name)
	h.log.Info().Str("user", name).Bool("admin", h.admin).Msg("client authenticated")

	h.bcast.System(name + " has connected.")
	h.writeRoster()

	h.receiveLoop()
}

// authenticate runs the handshake until a client is admitted or the
// transport drops. Rejections loop back to the greeting; only transport
// loss ends the handshake. On success the session is already registered.
func (h *Handler) authenticate() (string, error) {
	for h.running.Load() {
		if err := h.writeCode(protocol.CodeReady); err != nil {
			return "", errClientGone
		}
		line, ok := h.sess.ReadLine()
		if !ok {
			return "", errClientGone
		}

		if protocol.IsSignupMarker(line) {
			name, err := h.signup()
			if err != nil {
				return "", err
			}
			if name != "" {
				return name, nil
			}
			continue // rejected, greet again
		}

		name, err := h.login(line)
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
	}
	return "", errClientGone
}

// signup handles the sign-up branch: read a candidate name, validate it,
// then request and store a password. Returns "" with a nil error when the
// attempt was rejected and the handshake should restart.
func (h *Handler) signup() (string, error) {
	name, ok := h.sess.ReadLine()
	if !ok {
		return "", errClientGone
	}

	if auth.ValidateUsername(name) != nil {
		return "", h.writeCode(protocol.CodeNameHasSpaces)
	}
	if h.auth.Exists(name) {
		return "", h.writeCode(protocol.CodeUserExists)
	}

	if err := h.writeCode(protocol.CodeSignupPassword); err != nil {
		return "", errClientGone
	}
	password, ok := h.sess.ReadLine()
	if !ok {
		return "", errClientGone
	}

	if _, err := h.auth.Register(name, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			return "", h.writeCode(protocol.CodeNameHasSpaces)
		case errors.Is(err, auth.ErrUserExists):
			// Lost a race against a simultaneous sign-up.
			return "", h.writeCode(protocol.CodeUserExists)
		}
		h.log.Error().Err(err).Str("user", name).Msg("sign-up failed")
		return "", h.writeCode(protocol.CodeUserExists)
	}

	if err := h.reg.Add(name, h.sess); err != nil {
		// Lost the registration race; restart the handshake.
		return "", h.writeCode(protocol.CodeAlreadyConnected)
	}
	if err := h.writeCode(protocol.CodeAuthenticated); err != nil {
		h.reg.Remove(name)
		return "", errClientGone
	}
	return name, nil
}

// login handles the login branch for a candidate username. Returns "" with
// a nil error when the attempt was rejected and the handshake should
// restart.
func (h *Handler) login(name string) (string, error) {
	if auth.ValidateUsername(name) != nil {
		return "", h.writeCode(protocol.CodeNameHasSpaces)
	}
	if _, err := h.reg.Get(name); err == nil {
		return "", h.writeCode(protocol.CodeAlreadyConnected)
	}
	if !h.auth.Exists(name) {
		return "", h.writeCode(protocol.CodeUnknownUser)
	}

	if err := h.writeCode(protocol.CodePasswordRequired); err != nil {
		return "", errClientGone
	}
	password, ok := h.sess.ReadLine()
	if !ok {
		return "", errClientGone
	}

	if _, err := h.auth.Login(name, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrWrongPassword):
			return "", h.writeCode(protocol.CodeWrongPassword)
		case errors.Is(err, auth.ErrUnknownUser):
			return "", h.writeCode(protocol.CodeUnknownUser)
		}
		h.log.Error().Err(err).Str("user", name).Msg("login failed")
		return "", h.writeCode(protocol.CodeWrongPassword)
	}

	if err := h.reg.Add(name, h.sess); err != nil {
		// Lost the registration race; restart the handshake.
		return "", h.writeCode(protocol.CodeAlreadyConnected)
	}
	if err := h.writeCode(protocol.CodeAuthenticated); err != nil {
		h.reg.Remove(name)
		return "", errClientGone
	}
	if err := h.sess.WriteLine("Welcome, " + name); err != nil {
		h.reg.Remove(name)
		return "", errClientGone
	}
	return name, nil
}

// writeCode encodes a handshake code at the wire edge. A failed write
// means the client is gone.
func (h *Handler) writeCode(c protocol.Code) error {
	if err := h.sess.WriteLine(c.Encode()); err != nil {
		return errClientGone
	}
	return nil
}

func (h *Handler) receiveLoop() {
	for h.running.Load() {
		line, ok := h.sess.ReadLine()
		if !ok {
			if !h.running.Load() {
				// Server-initiated disconnect; lifecycle handles cleanup.
				return
			}
			h.leave(" has left the channel. Reason: Disconnected")
			return
		}

		if strings.HasPrefix(line, protocol.CommandPrefix) {
			if !h.command(strings.TrimPrefix(line, protocol.CommandPrefix)) {
				return
			}
			continue
		}
		h.bcast.Send(line, h.name)
	}
}

// leave deregisters the session, announces the departure, and stops the
// loop. reason is appended to the username in the announcement.
func (h *Handler) leave(reason string) {
	h.running.Store(false)
	h.sess.Disconnect()
	h.reg.Remove(h.name)
	h.bcast.System(h.name + reason)
	h.log.Info().Str("user", h.name).Msg("client disconnected")
}

// command dispatches one tokenized command line. It returns false when the
// handler should terminate.
func (h *Handler) command(msg string) bool {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		h.writeLine("Invalid Command")
		return true
	}

	switch fields[0] {
	case "quit":
		h.leave(" has left the channel.")
		return false

	case "slap":
		if len(fields) < 2 {
			h.writeLine("Usage: /slap [user]")
			return true
		}
		// The target is not checked for connectivity; slapping the
		// absent is allowed.
		h.bcast.System(h.name + " slaps " + fields[1] + " with a large trout")

	case "nick":
		h.nick(fields[1:])

	case "pm":
		if len(fields) < 3 {
			h.writeLine("Usage: /pm [user] [message]")
			return true
		}
		h.pm(fields[1], strings.Join(fields[2:], " "))

	case "help":
		for _, line := range helpText {
			h.writeLine(line)
		}

	case "list":
		h.writeRoster()

	case "broadcast":
		// Silently ignored for non-admins.
		if h.admin {
			h.bcast.System(strings.Join(fields[1:], " "))
		}

	case "shutdown":
		// Silently ignored for non-admins.
		if h.admin {
			h.bcast.System("Server is shutting down!")
			h.log.Info().Str("user", h.name).Msg("shutdown requested")
			h.shutdown()
		}

	default:
		h.writeLine("Invalid Command")
	}
	return true
}

// nick re-keys the credential record and the live registry entry from the
// current name to args[0]. The credential store arbitrates uniqueness:
// every connected user has a record, so a successful store rename implies
// the registry slot is free.
func (h *Handler) nick(args []string) {
	if len(args) == 0 {
		h.writeLine("Usage: /nick [name]")
		return
	}
	if len(args) > 1 {
		h.writeLine("Name cannot contain spaces!")
		return
	}
	newName := args[0]

	if err := h.auth.Rename(h.name, newName); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			h.writeLine("Name cannot contain spaces!")
		case errors.Is(err, auth.ErrUserExists):
			h.writeLine("Name already in use.")
		default:
			h.log.Error().Err(err).Str("user", h.name).Msg("nick failed")
			h.writeLine("Name already in use.")
		}
		return
	}

	if err := h.reg.Rename(h.name, newName); err != nil {
		h.log.Error().Err(err).Str("user", h.name).Str("new", newName).Msg("registry rename failed")
	}
	h.log.Info().Str("user", h.name).Str("new", newName).Msg("nickname changed")
	h.name = newName
	h.sess.SetName(newName)
}

// pm writes a private message to the target session only.
func (h *Handler) pm(target, message string) {
	p, err := h.reg.Get(target)
	if err != nil {
		h.writeLine("User " + target + " is not connected.")
		return
	}
	if err := p.WriteLine("PM from " + h.name + ": " + message); err != nil {
		h.log.Debug().Err(err).Str("target", target).Msg("pm write failed")
	}
}

// writeRoster sends the current connected-user list to this session only.
func (h *Handler) writeRoster() {
	h.writeLine("Users in chat:")
	h.writeLine(rosterRule)
	for _, name := range h.reg.Names() {
		h.writeLine(name)
	}
	h.writeLine(rosterRule)
}

// writeLine sends to this session, logging instead of propagating write
// errors; a dead session ends the handler on its next read.
func (h *Handler) writeLine(line string) {
	if err := h.sess.WriteLine(line); err != nil {
		h.log.Debug().Err(err).Msg("session write failed")
	}
}
