package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type historyResponse struct {
	Code string          `json:"code"`
	Data json.RawMessage `json:"data"`
}

func historyRequest(t *testing.T, n *Node, method, target, token string) (*httptest.ResponseRecorder, historyResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	n.history(w, req)

	resp := historyResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return w, resp
}

func TestHistoryFetch(t *testing.T) {
	store := &fakeStore{}
	n := newNode(store, NewVerifier("secret", nil))
	relay := n.relay
	for _, body := range []string{"hi", "still there?"} {
		if _, err := relay.Send("u1", "u2", body); err != nil {
			t.Fatal(err)
		}
	}

	tok := makeToken(t, "secret", "u2", "", time.Now().Add(time.Hour))
	w, resp := historyRequest(t, n, http.MethodGet, "/history?peer=u1", tok)
	if w.Code != http.StatusOK || resp.Code != codeOK {
		t.Fatalf("status = %d code = %q, want 200 ok", w.Code, resp.Code)
	}

	ms := []PushMessage{}
	if err := json.Unmarshal(resp.Data, &ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 || ms[0].Data != "hi" || ms[1].Data != "still there?" {
		t.Fatalf("fetched %+v, want [hi, still there?] in order", ms)
	}
}

func TestHistoryMissingPeer(t *testing.T) {
	n := newNode(&fakeStore{}, NewVerifier("secret", nil))
	tok := makeToken(t, "secret", "u2", "", time.Now().Add(time.Hour))

	w, resp := historyRequest(t, n, http.MethodGet, "/history", tok)
	if w.Code != http.StatusBadRequest || resp.Code != codeInvalid {
		t.Fatalf("status = %d code = %q, want 400 invalid", w.Code, resp.Code)
	}
}

func TestHistoryUnauthorized(t *testing.T) {
	n := newNode(&fakeStore{}, NewVerifier("secret", nil))

	w, _ := historyRequest(t, n, http.MethodGet, "/history?peer=u1", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w, _ = historyRequest(t, n, http.MethodGet, "/history?peer=u1", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestHistoryMethodNotAllowed(t *testing.T) {
	n := newNode(&fakeStore{}, NewVerifier("secret", nil))
	tok := makeToken(t, "secret", "u2", "", time.Now().Add(time.Hour))

	w, resp := historyRequest(t, n, http.MethodPost, "/history?peer=u1", tok)
	if w.Code != http.StatusMethodNotAllowed || resp.Code != codeInvalid {
		t.Fatalf("status = %d code = %q, want 405 invalid", w.Code, resp.Code)
	}
}
