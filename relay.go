package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidContent = errors.New("invalid content")
	ErrPersistence    = errors.New("persistence failure")
)

// Relay runs the send pipeline: validate, persist, then best-effort push to
// the recipient's live connections. The store is the single source of truth
// for "was this message sent": a message is never pushed before it is
// durable, and a push failure never turns a sent message into an error.
type Relay struct {
	store MessageStore
	reg   *Registry
}

func NewRelay(store MessageStore, reg *Registry) *Relay {
	return &Relay{store: store, reg: reg}
}

// Send persists a message from sender to recipient and pushes it to the
// recipient's live connections, if any. The returned message is the sender's
// confirmation; it is valid whether or not the recipient was reachable.
// Persistence failures are returned wrapped in ErrPersistence and are not
// retried here; a blind retry could store the message twice.
func (r *Relay) Send(sender, recipient, content string) (*Message, error) {
	log := zap.S().With("method", "send", "sender", sender, "recipient", recipient)

	if strings.TrimSpace(content) == "" {
		return nil, ErrInvalidContent
	}

	m := &Message{
		MessagesID:   uuid.NewString(),
		Conversation: ConversationKey(sender, recipient),
		Sender:       sender,
		Recipient:    recipient,
		Data:         content,
	}
	if err := r.store.Persist(m); err != nil {
		log.Error("db:save message:", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	data, err := json.Marshal(&PushFrame{T: frameMessage, M: pushMessage(m)})
	if err != nil {
		// The message is durable; the recipient will see it on the next
		// history fetch.
		log.Error("json:marshal push:", err)
		return m, nil
	}
	for _, c := range r.reg.Connections(recipient) {
		if !c.push(data) {
			log.Info("push dropped:", recipient, c.id)
		}
	}
	return m, nil
}
