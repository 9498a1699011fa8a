package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

func newTestNotifier(t *testing.T, h http.Handler) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", logging.NewSilent())
	n.APIBase = srv.URL
	n.MaxRetries = 0
	return n
}

func TestSendPostsMessage(t *testing.T) {
	var got map[string]string
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))

	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendReportsAPIError(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"ok":false}`, http.StatusUnauthorized)
	}))

	err := n.Notify(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendWithRetryStopsOnCancel(t *testing.T) {
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := n.SendWithRetry(ctx, "hello", 5)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPollingDispatchesCommands(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		polls   atomic.Int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[` +
					`{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},` +
					`{"update_id":8},` +
					`{"update_id":9,"message":{"text":"/sync","chat":{"id":99,"username":"stranger"}}}]}`))
				return
			}
			assert.Equal(t, "10", r.URL.Query().Get("offset"))
			cancel()
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			replies = append(replies, body["text"])
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		}
	}))

	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			return "got " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"got /status"}, replies)
}

func TestUpdateFromChat(t *testing.T) {
	var update telegramUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":1,"message":{"text":"/sync","chat":{"id":-1001234,"username":"tdxops"}}}`), &update))

	tests := []struct {
		chatID string
		want   bool
	}{
		{"-1001234", true},
		{" -1001234 ", true},
		{"@tdxops", true},
		{"42", false},
		{"@someone", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, update.fromChat(tt.chatID), tt.chatID)
	}
	assert.False(t, telegramUpdate{UpdateID: 2}.fromChat("42"))
}

func TestFormatSyncReport(t *testing.T) {
	ok := FormatSyncReport(model.SyncResult{Downloaded: 2, TotalRemote: 40, Missing: []string{}}, 1500*time.Millisecond)
	assert.Contains(t, ok, "✅")
	assert.Contains(t, ok, "新下载: 2")
	assert.Contains(t, ok, "远程文件: 40")

	missing := make([]string, 12)
	for i := range missing {
		missing[i] = "gpcw.zip"
	}
	bad := FormatSyncReport(model.SyncResult{Missing: missing, Error: "list <failed>"}, time.Second)
	assert.Contains(t, bad, "⚠️")
	assert.Contains(t, bad, "下载失败 (12)")
	assert.Contains(t, bad, "另有 2 个")
	assert.Contains(t, bad, "list &lt;failed&gt;")
}

func TestFormatStatus(t *testing.T) {
	s := FormatStatus(Status{DataDir: "data", CachedReports: 3, LatestReport: "20240331"})
	assert.Contains(t, s, "已缓存财报: 3")
	assert.Contains(t, s, "20240331")
	assert.Contains(t, s, "未调度")
	assert.NotContains(t, s, "上次同步")

	next := time.Date(2024, 4, 1, 18, 0, 0, 0, time.Local)
	s = FormatStatus(Status{NextUpdate: next, LastSync: &SyncSummary{At: next, Trigger: "cron", Downloaded: 1}})
	assert.Contains(t, s, "2024-04-01 18:00:00")
	assert.Contains(t, s, "上次同步")
}

func TestNoopNotify(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}
