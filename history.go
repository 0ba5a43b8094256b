package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func historyresp(log *zap.SugaredLogger, w http.ResponseWriter, status int, code string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]interface{}{"code": code, "data": data})
	w.Write(body)
	log.Info("[HISTORYRESP]", status, code)
}

// history serves the REST fallback: a recipient that was offline fetches the
// conversation here and sees every durably recorded message in send order.
func (n *Node) history(w http.ResponseWriter, r *http.Request) {
	log := zap.S().With("method", "history")

	if r.Method != http.MethodGet {
		historyresp(log, w, http.StatusMethodNotAllowed, codeInvalid, "method")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	user, err := n.verifier.Verify(r.Context(), token)
	if err != nil {
		historyresp(log, w, http.StatusUnauthorized, codeFail, "unauthorized")
		return
	}

	peer := r.URL.Query().Get("peer")
	if peer == "" {
		historyresp(log, w, http.StatusBadRequest, codeInvalid, "peer")
		return
	}

	ms, err := n.store.Fetch(ConversationKey(user, peer))
	if err != nil {
		log.Error("db:find messages:", err)
		historyresp(log, w, http.StatusInternalServerError, codeFail, "fetch")
		return
	}
	out := make([]PushMessage, 0, len(ms))
	for i := range ms {
		out = append(out, pushMessage(&ms[i]))
	}
	historyresp(log, w, http.StatusOK, codeOK, out)
}
