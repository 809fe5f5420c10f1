package core

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/translate"
)

func newTestBroadcaster(t *testing.T, reg *Registry) *Broadcaster {
	t.Helper()

	table := translate.NewTable(map[string]string{
		"hello": "buzzello",
		"world": "beeworld",
	})
	logger := zerolog.Nop()
	return NewBroadcaster(reg, table, &logger)
}

func TestSendTranslatesAndPrefixesSender(t *testing.T) {
	reg := NewRegistry()
	alice := &fakePeer{}
	bob := &fakePeer{}
	if err := reg.Add("alice", alice); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := reg.Add("bob", bob); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	b := newTestBroadcaster(t, reg)
	b.Send("hello brave world", "alice")

	want := "alice: buzzello brave beeworld"
	for _, p := range []*fakePeer{alice, bob} {
		got := p.received()
		if len(got) != 1 || got[0] != want {
			t.Fatalf("expected [%q], got %v", want, got)
		}
	}
}

func TestSystemBypassesTranslation(t *testing.T) {
	reg := NewRegistry()
	bob := &fakePeer{}
	if err := reg.Add("bob", bob); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	b := newTestBroadcaster(t, reg)
	b.System("hello world")

	got := bob.received()
	if len(got) != 1 || got[0] != "Server: hello world" {
		t.Fatalf("system message was altered: %v", got)
	}
}

func TestSendFromSystemNameBypassesTranslation(t *testing.T) {
	reg := NewRegistry()
	bob := &fakePeer{}
	if err := reg.Add("bob", bob); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	b := newTestBroadcaster(t, reg)
	b.Send("hello world", "Server")

	got := bob.received()
	if len(got) != 1 || got[0] != "Server: hello world" {
		t.Fatalf("system-sender message was altered: %v", got)
	}
}

func TestBroadcastSurvivesFailingRecipient(t *testing.T) {
	reg := NewRegistry()
	dead := &fakePeer{fail: true}
	bob := &fakePeer{}
	if err := reg.Add("dead", dead); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := reg.Add("bob", bob); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	b := newTestBroadcaster(t, reg)
	b.Send("hello", "bob")

	if got := bob.received(); len(got) != 1 {
		t.Fatalf("healthy recipient missed the broadcast: %v", got)
	}
}
