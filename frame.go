package main

import "encoding/json"

// Frame type tags, one letter each on the wire:
// "m" carries a message (inbound send, outbound push), "p" a presence
// snapshot, "r" a receipt answering an inbound frame.
const (
	frameMessage  = "m"
	framePresence = "p"
	frameReceipt  = "r"
)

const (
	codeOK      = "ok"
	codeInvalid = "invalid"
	codeFail    = "fail"
)

// SendFrame is the inbound sendMessage event.
type SendFrame struct {
	T  string `json:"t"`
	I  string `json:"i"`
	To string `json:"to"`
	D  string `json:"d"`
}

// PushMessage is a message as pushed to a live connection.
type PushMessage struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Ts           int64  `json:"ts"`
	Data         string `json:"data"`
}

// PushFrame is the outbound messagePushed event.
type PushFrame struct {
	T string      `json:"t"`
	M PushMessage `json:"m"`
}

// PresenceFrame is the outbound presenceUpdated event.
type PresenceFrame struct {
	T     string   `json:"t"`
	Users []string `json:"us"`
}

// ReceiptFrame answers an inbound frame by its request id. A send receipt
// with code "ok" carries the persisted message id and timestamp; that is the
// sender's confirmation the message went through.
type ReceiptFrame struct {
	T    string `json:"t"`
	I    string `json:"i"`
	Code string `json:"c"`
	Msg  string `json:"m,omitempty"`
	ID   string `json:"id,omitempty"`
	Ts   int64  `json:"ts,omitempty"`
}

func pushMessage(m *Message) PushMessage {
	return PushMessage{
		ID:           m.MessagesID,
		Conversation: m.Conversation,
		Sender:       m.Sender,
		Ts:           m.CreatedAt.Unix(),
		Data:         m.Data,
	}
}

func receipt(i, code, msg string) []byte {
	data, _ := json.Marshal(&ReceiptFrame{T: frameReceipt, I: i, Code: code, Msg: msg})
	return data
}

func sendReceipt(i string, m *Message) []byte {
	data, _ := json.Marshal(&ReceiptFrame{
		T:    frameReceipt,
		I:    i,
		Code: codeOK,
		ID:   m.MessagesID,
		Ts:   m.CreatedAt.Unix(),
	})
	return data
}
