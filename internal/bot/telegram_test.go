package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTelegram answers getMe and sendMessage like the Bot API does.
// When hang is set, sendMessage never answers until the client gives up.
type fakeTelegram struct {
	mu       sync.Mutex
	sent     []map[string]string
	failSend bool
	hang     chan struct{}
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"monitor","username":"monitor_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		})
		fail := f.failSend
		f.mu.Unlock()

		if f.hang != nil {
			select {
			case <-r.Context().Done():
			case <-f.hang:
			}
			return
		}

		if fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestBot(t *testing.T, fake *fakeTelegram) *Bot {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 42, 0, 5*time.Second)
	require.NoError(t, err)
	return b
}

func TestNewWithEndpoint_ChecksToken(t *testing.T) {
	b := newTestBot(t, &fakeTelegram{})
	assert.Equal(t, "monitor_bot", b.API.Self.UserName)
}

func TestSend_Delivers(t *testing.T) {
	fake := &fakeTelegram{}
	b := newTestBot(t, fake)

	err := b.Send(context.Background(), "Price: 650")
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0]["chat_id"])
	assert.Equal(t, "Price: 650", fake.sent[0]["text"])
	assert.Equal(t, "MarkdownV2", fake.sent[0]["parse_mode"])
}

func TestSend_EscapesMarkdown(t *testing.T) {
	fake := &fakeTelegram{}
	b := newTestBot(t, fake)

	require.NoError(t, b.Send(context.Background(), "Link: https://www.kv.ee/3-toaline-korter"))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, `Link: https://www\.kv\.ee/3\-toaline\-korter`, fake.sent[0]["text"])
}

func TestSend_APIErrorIsReturned(t *testing.T) {
	fake := &fakeTelegram{failSend: true}
	b := newTestBot(t, fake)

	err := b.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSend_Unreachable(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	b, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 42, 0, 5*time.Second)
	require.NoError(t, err)
	srv.Close()

	assert.Error(t, b.Send(context.Background(), "hello"))
}

func TestSend_CancelledContextWhileThrottled(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 42, 0.001, 5*time.Second)
	require.NoError(t, err)

	// The first send takes the only token; the second would wait ~1000s.
	require.NoError(t, b.Send(context.Background(), "first"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, b.Send(ctx, "second"))
	assert.Len(t, fake.sent, 1)
}

func TestSend_UnansweredRequestTimesOut(t *testing.T) {
	fake := &fakeTelegram{hang: make(chan struct{})}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(fake.hang) })

	b, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 42, 0, 200*time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- b.Send(context.Background(), "hello") }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after the request timeout")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"50m²", "50m²"},
		{"1.5", `1\.5`},
		{"a_b*c", `a\_b\*c`},
		{"(x) [y]", `\(x\) \[y\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdown(tt.in), tt.in)
	}
}
