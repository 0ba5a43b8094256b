package main

import (
	"errors"
	"testing"
)

func TestSendEmptyContent(t *testing.T) {
	store := &fakeStore{}
	relay := NewRelay(store, NewRegistry())

	if _, err := relay.Send("u1", "u2", "   "); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("err = %v, want ErrInvalidContent", err)
	}
	if store.count() != 0 {
		t.Fatal("nothing may be persisted for invalid content")
	}
}

func TestSendPersistFailure(t *testing.T) {
	store := &fakeStore{fail: errors.New("db down")}
	reg := NewRegistry()
	c := newTestClient("u2", "c1", 8)
	reg.Register(c)
	relay := NewRelay(store, reg)

	_, err := relay.Send("u1", "u2", "hi")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	// The push step must never run for an unpersisted message.
	noFrame(t, c)
}

func TestSendOfflineRecipient(t *testing.T) {
	store := &fakeStore{}
	relay := NewRelay(store, NewRegistry())

	m, err := relay.Send("u1", "u2", "hi")
	if err != nil {
		t.Fatalf("send to offline recipient errored: %v", err)
	}

	ms, err := store.Fetch(m.Conversation)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].MessagesID != m.MessagesID {
		t.Fatalf("fetched %+v, want the sent message", ms)
	}
}

func TestSendOnlineRecipientOnePush(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	c := newTestClient("u2", "c1", 8)
	reg.Register(c)
	relay := NewRelay(store, reg)

	m, err := relay.Send("u1", "u2", "hi")
	if err != nil {
		t.Fatal(err)
	}

	got := recvPush(t, c)
	if got.ID != m.MessagesID || got.Data != "hi" || got.Sender != "u1" {
		t.Fatalf("push = %+v, want message %q", got, m.MessagesID)
	}
	noFrame(t, c)
}

func TestSendMultiDevicePush(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	c1 := newTestClient("u2", "c1", 8)
	c2 := newTestClient("u2", "c2", 8)
	reg.Register(c1)
	reg.Register(c2)
	relay := NewRelay(store, reg)

	m, err := relay.Send("u1", "u2", "hi")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{c1, c2} {
		if got := recvPush(t, c); got.ID != m.MessagesID {
			t.Fatalf("push id = %q, want %q", got.ID, m.MessagesID)
		}
	}
}

func TestSendOrderPreserved(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	c := newTestClient("u2", "c1", 8)
	reg.Register(c)
	relay := NewRelay(store, reg)

	for _, body := range []string{"one", "two", "three"} {
		if _, err := relay.Send("u1", "u2", body); err != nil {
			t.Fatal(err)
		}
	}

	ms, _ := store.Fetch(ConversationKey("u1", "u2"))
	if len(ms) != 3 || ms[0].Data != "one" || ms[1].Data != "two" || ms[2].Data != "three" {
		t.Fatalf("stored order = %+v", ms)
	}
	for _, want := range []string{"one", "two", "three"} {
		if got := recvPush(t, c); got.Data != want {
			t.Fatalf("pushed %q, want %q", got.Data, want)
		}
	}
}
