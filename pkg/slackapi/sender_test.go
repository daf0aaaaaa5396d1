package slackapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/retry"
)

type recorded struct {
	path string
	auth string
	form url.Values
}

type fakeSlack struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), form: r.PostForm})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = w.Write([]byte(f.body))
}

func newTestSender(t *testing.T, f *fakeSlack) *Sender {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewSender(zap.NewNop(), WithAPIURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestSendEphemeralText(t *testing.T) {
	f := &fakeSlack{body: `{"ok":true,"message_ts":"1.2"}`}
	s := newTestSender(t, f)

	err := s.SendEphemeralText(context.Background(), "xoxb-1", "C1", "U1", "hello")
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "/chat.postEphemeral", req.path)
	assert.Equal(t, "Bearer xoxb-1", req.auth)
	assert.Equal(t, "C1", req.form.Get("channel"))
	assert.Equal(t, "U1", req.form.Get("user"))
	assert.Equal(t, "hello", req.form.Get("text"))
}

func TestSendChannelBlocks(t *testing.T) {
	f := &fakeSlack{body: `{"ok":true,"channel":"C1","ts":"1.2"}`}
	s := newTestSender(t, f)

	blocks := `[{"type":"section","text":{"type":"mrkdwn","text":"*hi*"}}]`
	err := s.SendChannelBlocks(context.Background(), "xoxb-2", "C1", blocks, "hi")
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "/chat.postMessage", req.path)
	assert.Equal(t, "hi", req.form.Get("text"))
	assert.Contains(t, req.form.Get("blocks"), `"section"`)
}

func TestSendMalformedBlocks(t *testing.T) {
	f := &fakeSlack{body: `{"ok":true}`}
	s := newTestSender(t, f)

	err := s.SendEphemeralBlocks(context.Background(), "xoxb-1", "C1", "U1", "{not json", "fallback")
	require.Error(t, err)
	assert.True(t, retry.NewClassifier().IsBusinessInvariant(err))
	assert.Empty(t, f.requests)
}

func TestSendErrorClassification(t *testing.T) {
	classifier := retry.NewClassifier()

	t.Run("permanent slack error", func(t *testing.T) {
		s := newTestSender(t, &fakeSlack{body: `{"ok":false,"error":"channel_not_found"}`})
		err := s.SendChannelText(context.Background(), "xoxb-1", "C404", "hello")
		require.Error(t, err)
		assert.True(t, classifier.IsBusinessInvariant(err))
		assert.Contains(t, err.Error(), "channel_not_found")
	})

	t.Run("transient slack error", func(t *testing.T) {
		s := newTestSender(t, &fakeSlack{body: `{"ok":false,"error":"internal_error"}`})
		err := s.SendChannelText(context.Background(), "xoxb-1", "C1", "hello")
		require.Error(t, err)
		assert.False(t, classifier.IsBusinessInvariant(err))
	})

	t.Run("server error", func(t *testing.T) {
		s := newTestSender(t, &fakeSlack{status: http.StatusBadGateway, body: `oops`})
		err := s.SendEphemeralText(context.Background(), "xoxb-1", "C1", "U1", "hello")
		require.Error(t, err)
		assert.False(t, classifier.IsBusinessInvariant(err))
	})
}
