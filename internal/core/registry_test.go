package core

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

type fakePeer struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (p *fakePeer) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("write failed")
	}
	p.lines = append(p.lines, line)
	return nil
}

func (p *fakePeer) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func TestRegistryAddRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Add("alice", &fakePeer{}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := reg.Add("alice", &fakePeer{}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestRegistryConcurrentAddSameNameAdmitsOne(t *testing.T) {
	reg := NewRegistry()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = reg.Add("alice", &fakePeer{})
		}(i)
	}
	wg.Wait()

	var added int
	for _, err := range errs {
		if err == nil {
			added++
		}
	}
	if added != 1 {
		t.Fatalf("expected exactly one successful add, got %d", added)
	}
}

func TestRegistryRenameReplacesSlot(t *testing.T) {
	reg := NewRegistry()
	alice := &fakePeer{}

	if err := reg.Add("alice", alice); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := reg.Add("bob", &fakePeer{}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := reg.Rename("alice", "bob"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if err := reg.Rename("ghost", "casper"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	if err := reg.Rename("alice", "carol"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if _, err := reg.Get("alice"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("old name still registered after rename")
	}
	p, err := reg.Get("carol")
	if err != nil {
		t.Fatalf("renamed entry missing: %v", err)
	}
	if p != Peer(alice) {
		t.Fatalf("rename did not keep the same session")
	}
	if got, want := reg.Names(), []string{"bob", "carol"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zoe", "alice", "mike"} {
		if err := reg.Add(name, &fakePeer{}); err != nil {
			t.Fatalf("add %q failed: %v", name, err)
		}
	}
	reg.Remove("mike")

	if got, want := reg.Names(), []string{"alice", "zoe"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
