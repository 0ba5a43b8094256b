package main

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Broadcaster keeps every live connection's view of who is online in step
// with the registry. Broadcast is serialized by its own mutex: the snapshot
// and the enqueues happen under the same lock, so later broadcasts always
// carry registry state at least as new as earlier ones and no client ever
// observes views out of order.
type Broadcaster struct {
	mu  sync.Mutex
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Broadcast pushes the current online set to every live connection.
// Delivery is fire-and-forget per connection: a full queue drops the frame
// and the next membership change re-broadcasts a fresh view.
func (b *Broadcaster) Broadcast() {
	log := zap.S().With("method", "broadcast")

	b.mu.Lock()
	defer b.mu.Unlock()

	users := b.reg.SnapshotOnline()
	data, err := json.Marshal(&PresenceFrame{T: framePresence, Users: users})
	if err != nil {
		log.Error("json:marshal presence:", err)
		return
	}
	for _, u := range users {
		for _, c := range b.reg.Connections(u) {
			if !c.push(data) {
				log.Info("presence dropped:", u, c.id)
			}
		}
	}
}
