package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/protocol"
	"github.com/beechat/beechat-server/internal/translate"
)

// Broadcaster fans messages out to every registered session. Concurrent
// broadcasts are serialized by a single mutex so interleaved writes cannot
// corrupt line framing on a shared recipient.
type Broadcaster struct {
	mu    sync.Mutex // held for the duration of one fan-out
	reg   *Registry
	table *translate.Table
	log   *zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the registry, translating user
// messages through table.
func NewBroadcaster(reg *Registry, table *translate.Table, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		reg:   reg,
		table: table,
		log:   logger,
	}
}

// System sends text to every registered session, prefixed with the system
// identity and bypassing translation.
func (b *Broadcaster) System(text string) {
	b.fanOut(protocol.SystemName + ": " + text)
}

// Send translates each token of text through the substitution table and
// sends the result, prefixed with the sender's username, to every
// registered session including the sender.
func (b *Broadcaster) Send(text, from string) {
	if from == protocol.SystemName {
		b.System(text)
		return
	}
	b.fanOut(from + ": " + b.table.Line(text))
}

func (b *Broadcaster) fanOut(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.reg.snapshot() {
		if err := p.WriteLine(line); err != nil {
			// A dead recipient is cleaned up by its own handler;
			// the broadcast moves on.
			b.log.Debug().Err(err).Msg("broadcast write failed")
		}
	}
}
