package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/auth"
	"github.com/beechat/beechat-server/internal/core"
	"github.com/beechat/beechat-server/internal/store/credfile"
	"github.com/beechat/beechat-server/internal/translate"
)

const testAdmin = "jonah"

// startTestServer runs a server on an ephemeral port with a fresh
// credential file, a small translation table, and testAdmin as the admin
// user. seedUsers are registered before the server starts.
func startTestServer(t *testing.T, maxConns int, seedUsers map[string]string) *Server {
	t.Helper()

	st, err := credfile.Open(filepath.Join(t.TempDir(), "users.dat"))
	if err != nil {
		t.Fatalf("failed to open credential store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authSvc := auth.NewService(st)
	for name, password := range seedUsers {
		if _, err := authSvc.Register(name, password); err != nil {
			t.Fatalf("failed to seed user %q: %v", name, err)
		}
	}

	table := translate.NewTable(map[string]string{
		"hello": "buzzello",
		"world": "beeworld",
	})
	logger := zerolog.Nop()
	reg := core.NewRegistry()
	bcast := core.NewBroadcaster(reg, table, &logger)

	srv := NewServer("127.0.0.1:0", maxConns, testAdmin, authSvc, reg, bcast, &logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	go func() { _ = srv.Serve() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

// testClient is a line-oriented client for handshake and chat assertions.
type testClient struct {
	t       *testing.T
	conn    net.Conn
	scanner *bufio.Scanner
}

func dialTestServer(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn, scanner: bufio.NewScanner(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.t.Fatalf("failed to send %q: %v", line, err)
	}
}

// next reads one line, failing the test after a 2 second stall.
func (c *testClient) next() string {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if !c.scanner.Scan() {
		c.t.Fatalf("expected a line, got closed connection or timeout: %v", c.scanner.Err())
	}
	return c.scanner.Text()
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	if got := c.next(); got != want {
		c.t.Fatalf("expected line %q, got %q", want, got)
	}
}

// expectClosed asserts the server closed the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if c.scanner.Scan() {
		c.t.Fatalf("expected closed connection, got line %q", c.scanner.Text())
	}
	// A nil error is clean EOF and a reset is also a close; only a
	// timeout means the connection is still open.
	if err := c.scanner.Err(); err != nil && isTimeout(err) {
		c.t.Fatalf("connection still open after deadline")
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// drainRoster consumes the "Users in chat:" block and returns the listed
// names.
func (c *testClient) drainRoster() []string {
	c.t.Helper()

	c.expect("Users in chat:")
	c.expect(rosterRule)
	var names []string
	for {
		line := c.next()
		if line == rosterRule {
			return names
		}
		names = append(names, line)
	}
}

// signup drives a full sign-up handshake and drains the join announcement
// and roster.
func (c *testClient) signup(name, password string) {
	c.t.Helper()

	c.expect("0")
	c.send("0")
	c.send(name)
	c.expect("10")
	c.send(password)
	c.expect("4")
	c.expect("Server: " + name + " has connected.")
	c.drainRoster()
}

// login drives a full login handshake and drains the join announcement and
// roster.
func (c *testClient) login(name, password string) {
	c.t.Helper()

	c.expect("0")
	c.send(name)
	c.expect("3")
	c.send(password)
	c.expect("4")
	c.expect("Welcome, " + name)
	c.expect("Server: " + name + " has connected.")
	c.drainRoster()
}
