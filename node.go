package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Node ties the registry, the presence broadcaster and the relay together
// behind the websocket endpoint. It owns the full registry for this process.
type Node struct {
	registry *Registry
	presence *Broadcaster
	relay    *Relay
	verifier *Verifier
	store    MessageStore

	upgrader websocket.Upgrader
}

func newNode(store MessageStore, verifier *Verifier) *Node {
	reg := NewRegistry()
	n := &Node{
		registry: reg,
		presence: NewBroadcaster(reg),
		relay:    NewRelay(store, reg),
		verifier: verifier,
		store:    store,
	}
	n.upgrader = websocket.Upgrader{
		ReadBufferSize:  DefConfig.Client.ReadBufferSize,
		WriteBufferSize: DefConfig.Client.WriteBufferSize,
	}
	n.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	return n
}

func (n *Node) register(c *Client) {
	c.log.Info("register")
	if n.registry.Register(c) {
		n.presence.Broadcast()
	}
}

func (n *Node) unregister(c *Client) {
	c.log.Info("unregister")
	removed, wentOffline := n.registry.Unregister(c.user, c.id)
	if removed {
		c.shutdown()
	}
	if wentOffline {
		n.presence.Broadcast()
	}
}

// handleFrame dispatches one inbound frame from a connection. A failure in
// here is isolated to this connection; nothing may take the process down.
func (n *Node) handleFrame(c *Client, data []byte) {
	f := SendFrame{}
	defer func() {
		if err := recover(); err != nil {
			c.log.Errorf("handler panic:%v\n", err)
			c.push(receipt(f.I, codeFail, fmt.Sprint(err)))
		}
	}()

	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Errorf("handler:json unmarshal: %+v\n", err.Error())
		return
	}

	switch f.T {
	case frameMessage:
		if f.To == "" {
			c.push(receipt(f.I, codeInvalid, "no recipient"))
			return
		}
		m, err := n.relay.Send(c.user, f.To, f.D)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidContent):
				c.push(receipt(f.I, codeInvalid, "empty message"))
			default:
				// The sender must retry explicitly; the relay does not.
				c.push(receipt(f.I, codeFail, "message not stored"))
			}
			return
		}
		c.push(sendReceipt(f.I, m))
	default:
		c.log.Errorf("handler error: unknown type:%v\n", f.T)
	}
}

// serveWs handles websocket requests from the peer. The credential rides the
// token query parameter; a handshake without a resolvable identity is
// refused before the upgrade.
func (n *Node) serveWs(w http.ResponseWriter, r *http.Request) {
	log := zap.S().With("method", "serveWs")

	user, err := n.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		log.Info("handshake rejected:", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(err)
		return
	}
	client := &Client{
		node:        n,
		id:          uuid.NewString(),
		user:        user,
		connectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, DefConfig.Client.SendQueueSize),
	}
	client.log = zap.S().With("user", client.user, "conn", client.id)
	if DefConfig.Client.Compression {
		client.conn.EnableWriteCompression(true)
		client.conn.SetCompressionLevel(DefConfig.Client.CompressionLevel)
	}
	client.conn.SetCloseHandler(func(code int, text string) error {
		client.log.Info("CloseHandler:", code, text)
		message := websocket.FormatCloseMessage(code, "")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		return nil
	})
	// Register before the pumps start: readPump's deferred unregister must
	// not be able to run first, or a transport that dies right after the
	// upgrade leaves a dead connection registered forever.
	n.register(client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}
