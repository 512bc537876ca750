package dialogue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/domain/record"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := record.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	records := record.NewService(store, zerolog.Nop())
	engine := NewEngine(healthyKnowledge(), records, zerolog.Nop())
	return NewHandler(NewRegistry(time.Minute), engine)
}

func postChat(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.Chat(c)
}

func TestChatAllocatesSession(t *testing.T) {
	h := newTestHandler(t)

	rec, err := postChat(t, h, `{"message":"hi"}`)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected an allocated session id")
	}
	if resp.Message == "" {
		t.Error("expected a non-empty reply")
	}
	if resp.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestChatReusesSession(t *testing.T) {
	h := newTestHandler(t)

	rec, err := postChat(t, h, `{"message":"hi"}`)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var first ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec, err = postChat(t, h, `{"session_id":"`+first.SessionID+`","message":"alice"}`)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var second ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed across turns: %s vs %s", first.SessionID, second.SessionID)
	}
	if !strings.Contains(second.Message, "alice") {
		t.Errorf("expected personalized welcome, got %q", second.Message)
	}

	sess, ok := h.registry.Lookup(first.SessionID)
	if !ok {
		t.Fatal("session missing from registry")
	}
	if sess.CurrentState() != StateMainMenu {
		t.Errorf("state = %s, want main_menu", sess.CurrentState())
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := newTestHandler(t)

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		err := h.Chat(newEchoContext(body))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("body %s: err = %v, want 400", body, err)
		}
	}
}

func newEchoContext(body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestHistoryUnknownSession(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/nope/history", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("session_id")
	c.SetParamValues("nope")

	err := h.History(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestHistoryReturnsTranscript(t *testing.T) {
	h := newTestHandler(t)

	rec, err := postChat(t, h, `{"message":"hi"}`)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := postChat(t, h, `{"session_id":"`+resp.SessionID+`","message":"alice"}`); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := postChat(t, h, `{"session_id":"`+resp.SessionID+`","message":"2"}`); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/"+resp.SessionID+"/history", nil)
	out := httptest.NewRecorder()
	c := e.NewContext(req, out)
	c.SetParamNames("session_id")
	c.SetParamValues(resp.SessionID)

	if err := h.History(c); err != nil {
		t.Fatalf("History: %v", err)
	}
	var entries []record.TranscriptEntry
	if err := json.Unmarshal(out.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected transcript entries after login")
	}
	if entries[len(entries)-1].Role != record.RoleBot {
		t.Errorf("last entry role = %q, want bot", entries[len(entries)-1].Role)
	}
}
