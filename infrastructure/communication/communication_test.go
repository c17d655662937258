package communication

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slackServer struct {
	mu       sync.Mutex
	channels []string
	texts    []string
}

func (s *slackServer) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		s.mu.Lock()
		s.channels = append(s.channels, r.FormValue("channel"))
		s.texts = append(s.texts, r.FormValue("text"))
		s.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
}

func TestSlackRoutesBySeverity(t *testing.T) {
	srv := &slackServer{}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	s := NewSlack("xoxb-test", SlackOption{InfoChannelID: "C-info", ErrorChannelID: "C-error"}, slack.OptionAPIURL(ts.URL+"/"))
	require.True(t, s.Enabled())

	require.NoError(t, s.Info("import finished"))
	require.NoError(t, s.Error("sweep failed"))

	assert.Equal(t, []string{"C-info", "C-error"}, srv.channels)
	assert.Equal(t, []string{"import finished", "sweep failed"}, srv.texts)
}

func TestSlackSkipsMissingChannel(t *testing.T) {
	srv := &slackServer{}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	s := NewSlack("xoxb-test", SlackOption{ErrorChannelID: "C-error"}, slack.OptionAPIURL(ts.URL+"/"))
	require.NoError(t, s.Info("dropped"))
	assert.Empty(t, srv.channels)

	assert.False(t, NewSlack("", SlackOption{}).Enabled())
}

func TestSlackReportsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer ts.Close()

	s := NewSlack("xoxb-test", SlackOption{InfoChannelID: "C-gone"}, slack.OptionAPIURL(ts.URL+"/"))
	err := s.Info("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}
