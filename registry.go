package main

import (
	"hash/fnv"
	"sort"
	"sync"
)

const registryShards = 32

type registryShard struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client
}

// Registry is the authoritative store of live connections, keyed by user.
// It is sharded so connect/disconnect events for unrelated users do not
// serialize on one lock; a user's connections always live in one shard.
type Registry struct {
	shards [registryShards]*registryShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: map[string]map[string]*Client{}}
	}
	return r
}

func (r *Registry) shardFor(user string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(user))
	return r.shards[h.Sum32()%registryShards]
}

// Register adds a connection to its user's set. Registering the same
// connection id twice is a no-op. Returns true when the user came online,
// i.e. this was their first live connection.
func (r *Registry) Register(c *Client) bool {
	s := r.shardFor(c.user)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.users[c.user]
	if conns == nil {
		s.users[c.user] = map[string]*Client{c.id: c}
		return true
	}
	if _, ok := conns[c.id]; ok {
		return false
	}
	conns[c.id] = c
	return false
}

// Unregister removes one connection. Unknown ids are a no-op, which makes
// duplicate close events harmless. Returns (removed, wentOffline).
func (r *Registry) Unregister(user, connID string) (bool, bool) {
	s := r.shardFor(user)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.users[user]
	if conns == nil {
		return false, false
	}
	if _, ok := conns[connID]; !ok {
		return false, false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, user)
		return true, true
	}
	return true, false
}

func (r *Registry) IsOnline(user string) bool {
	s := r.shardFor(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[user]) > 0
}

// Connections returns the user's live connections at this moment.
func (r *Registry) Connections(user string) []*Client {
	s := r.shardFor(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := make([]*Client, 0, len(s.users[user]))
	for _, c := range s.users[user] {
		cs = append(cs, c)
	}
	return cs
}

// SnapshotOnline returns the users with at least one live connection.
// Each shard is read under its lock, so no half-mutated entry is visible
// and no user appears twice.
func (r *Registry) SnapshotOnline() []string {
	users := []string{}
	for _, s := range r.shards {
		s.mu.RLock()
		for u := range s.users {
			users = append(users, u)
		}
		s.mu.RUnlock()
	}
	sort.Strings(users)
	return users
}
