package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"marianchat/pkg/chat"
	"marianchat/pkg/config"
	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
)

const signingKey = "test-signing-key"

func newTestServer(t *testing.T) (*httptest.Server, *chat.Service) {
	t.Helper()
	logger.InitWithLevel("error")
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	config.SetRuntime(&config.RuntimeConfig{
		BackendKeys: map[string]struct{}{signingKey: {}},
		SigningKeys: map[string]struct{}{signingKey: {}},
	})
	svc := chat.NewService(chat.Options{})
	ts := httptest.NewServer(Handler(svc))
	t.Cleanup(ts.Close)
	return ts, svc
}

// doBackend issues a request the way a trusted backend would: role header
// set by the gateway, user id supplied without a signature.
func doBackend(t *testing.T, ts *httptest.Server, method, path, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Role-Name", "backend")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func sign(userID string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSendAndListMessages(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doBackend(t, ts, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiver": "bob", "body": "hello bob"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	var sent models.Message
	decode(t, resp, &sent)
	if sent.ID == "" || sent.Sender != "alice" || sent.Receiver != "bob" {
		t.Fatalf("sent = %+v", sent)
	}

	resp = doBackend(t, ts, http.MethodGet, "/v1/messages?peer=alice", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed struct {
		Peer     string           `json:"peer"`
		Messages []models.Message `json:"messages"`
	}
	decode(t, resp, &listed)
	if len(listed.Messages) != 1 || listed.Messages[0].ID != sent.ID {
		t.Fatalf("listed = %+v", listed)
	}

	// peer param is mandatory
	resp = doBackend(t, ts, http.MethodGet, "/v1/messages", "bob", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no-peer status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSendValidationStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doBackend(t, ts, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiver": "alice", "body": "self"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self-send status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiver": "bob", "body": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank-body status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEditSeenDeleteStatuses(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doBackend(t, ts, http.MethodPost, "/v1/messages", "alice",
		map[string]string{"receiver": "bob", "body": "original"})
	var m models.Message
	decode(t, resp, &m)

	// non-sender edit is forbidden
	resp = doBackend(t, ts, http.MethodPut, "/v1/messages/"+m.ID, "bob",
		map[string]string{"body": "hacked"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign edit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodPut, "/v1/messages/"+m.ID, "alice",
		map[string]string{"body": "updated"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("edit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// only the receiver marks seen
	resp = doBackend(t, ts, http.MethodPost, "/v1/messages/"+m.ID+"/seen", "alice", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("sender seen status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doBackend(t, ts, http.MethodPost, "/v1/messages/"+m.ID+"/seen", "bob", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("seen status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodGet, "/v1/messages/"+m.ID, "bob", nil)
	var got models.Message
	decode(t, resp, &got)
	if got.Body != "updated" || !got.Edited || !got.Seen {
		t.Fatalf("got = %+v", got)
	}

	// outsiders cannot read the pair's messages
	resp = doBackend(t, ts, http.MethodGet, "/v1/messages/"+m.ID, "carol", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodDelete, "/v1/messages/"+m.ID, "alice", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doBackend(t, ts, http.MethodGet, "/v1/messages/"+m.ID, "alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnreadEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp := doBackend(t, ts, http.MethodPost, "/v1/messages", "bob",
			map[string]string{"receiver": "alice", "body": fmt.Sprintf("msg %d", i)})
		resp.Body.Close()
	}
	resp := doBackend(t, ts, http.MethodPost, "/v1/messages", "carol",
		map[string]string{"receiver": "alice", "body": "hi"})
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodGet, "/v1/unread", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unread status = %d", resp.StatusCode)
	}
	var out struct {
		Counts map[string]int `json:"counts"`
	}
	decode(t, resp, &out)
	if out.Counts["bob"] != 2 || out.Counts["carol"] != 1 {
		t.Fatalf("counts = %v", out.Counts)
	}
}

func TestPeersEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	users := []models.User{
		{ID: "mgr", Name: "Maria", Role: models.RoleManager},
		{ID: "asst", Name: "Anna", Role: models.RoleAssistant},
		{ID: "lead", Name: "Lena", Role: models.RoleProjectLead, Group: "g1"},
	}
	for _, u := range users {
		resp := doBackend(t, ts, http.MethodPut, "/v1/users/"+u.ID, "", u)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put user %s status = %d", u.ID, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := doBackend(t, ts, http.MethodPut, "/v1/groups/g1", "",
		models.Group{Name: "AgroSense", Members: []string{"lead"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put group status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// lead has messaged the manager, so lead sorts first
	resp = doBackend(t, ts, http.MethodPost, "/v1/messages", "lead",
		map[string]string{"receiver": "mgr", "body": "status report"})
	resp.Body.Close()

	resp = doBackend(t, ts, http.MethodGet, "/v1/peers", "mgr", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("peers status = %d", resp.StatusCode)
	}
	var out struct {
		Peers []models.PeerEntry `json:"peers"`
	}
	decode(t, resp, &out)
	if len(out.Peers) != 2 {
		t.Fatalf("peers = %+v", out.Peers)
	}
	if out.Peers[0].ID != "lead" || out.Peers[0].Unread != 1 {
		t.Fatalf("first peer = %+v", out.Peers[0])
	}
	if out.Peers[0].GroupName != "AgroSense" {
		t.Fatalf("lead group name = %q", out.Peers[0].GroupName)
	}
}

func TestAdminRejectsUnknownRole(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/users/u1",
		bytes.NewBufferString(`{"name":"X","role":"astronaut"}`))
	req.Header.Set("X-Role-Name", "backend")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown role status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSignedFrontendIdentity(t *testing.T) {
	ts, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"receiver":"bob","body":"signed hello"}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/messages", body)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("alice"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signed send status = %d", resp.StatusCode)
	}
	var m models.Message
	decode(t, resp, &m)
	if m.Sender != "alice" {
		t.Fatalf("sender = %q", m.Sender)
	}

	// bad signature is rejected before the handler runs
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/v1/messages",
		bytes.NewBufferString(`{"receiver":"bob","body":"forged"}`))
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", "deadbeef")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged send status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
