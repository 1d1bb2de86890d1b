package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/rgbd/internal/brightness"
	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/intake"
	"github.com/dokzlo13/rgbd/internal/ledger"
	"github.com/dokzlo13/rgbd/internal/pwm"
	"github.com/dokzlo13/rgbd/internal/transition"
)

type fakeHistory struct {
	entries []*ledger.Entry
	err     error
	limit   int
}

func (f *fakeHistory) Recent(limit int) ([]*ledger.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

func newTestServer(t *testing.T, history History, rps float64) (*httptest.Server, *transition.Engine) {
	t.Helper()
	rec := pwm.NewRecorder(0)
	require.NoError(t, rec.Configure(1000, pwm.Channels, []uint32{0, 1, 2}))
	engine := transition.New(brightness.New(1000, 3.0), rec, 30, color.Black)

	s := NewServer("unused", engine, intake.New(engine, nil), history, rps)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, engine
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestGetColor(t *testing.T) {
	ts, _ := newTestServer(t, nil, 0)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "000000", body)
	assert.Equal(t, "6", resp.Header.Get("Content-Length"))
}

func TestPostThenDrain(t *testing.T) {
	ts, engine := newTestServer(t, nil, 0)

	resp := post(t, ts.URL+"/", "ff8000")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	// GET reports the displayed colour, not the target.
	_, body := get(t, ts.URL+"/")
	assert.Equal(t, "000000", body)

	for i := 0; i < engine.Steps(); i++ {
		engine.Tick()
	}
	_, body = get(t, ts.URL+"/")
	assert.Equal(t, "ff8000", body)
}

func TestPostRejectsMalformed(t *testing.T) {
	ts, engine := newTestServer(t, nil, 0)

	for _, body := range []string{"", "fff", "ff8000\n", "ff80000", "xyzxyz", strings.Repeat("a", 4096)} {
		resp := post(t, ts.URL+"/", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
	}
	assert.Equal(t, color.Black, engine.Target())
	assert.False(t, engine.Transitioning())
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, nil, 0)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/", strings.NewReader("ffffff"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, nil, 1)

	assert.Equal(t, http.StatusNoContent, post(t, ts.URL+"/", "010203").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, post(t, ts.URL+"/", "010203").StatusCode)

	// reads are never limited
	resp, _ := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	ts, engine := newTestServer(t, nil, 0)
	post(t, ts.URL+"/", "ffffff")
	engine.Tick()

	resp, body := get(t, ts.URL+"/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		Color         string    `json:"color"`
		Target        string    `json:"target"`
		Transitioning bool      `json:"transitioning"`
		Duties        [3]uint32 `json:"duties"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, "090909", snap.Color)
	assert.Equal(t, "ffffff", snap.Target)
	assert.True(t, snap.Transitioning)
	assert.Equal(t, [3]uint32(engine.Duties()), snap.Duties)
}

func TestHistory(t *testing.T) {
	history := &fakeHistory{entries: []*ledger.Entry{
		{ID: 2, EventType: ledger.EventColorRequested, Source: "http", Payload: map[string]any{"color": "ff0000"}},
	}}
	ts, _ := newTestServer(t, history, 0)

	resp, body := get(t, ts.URL+"/history?limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, history.limit)
	assert.Contains(t, body, `"color":"ff0000"`)

	get(t, ts.URL+"/history?limit=999999")
	assert.Equal(t, maxHistoryLimit, history.limit)

	resp, _ = get(t, ts.URL+"/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	history.entries = nil
	_, body = get(t, ts.URL+"/history")
	assert.Equal(t, defaultHistoryLimit, history.limit)
	assert.JSONEq(t, `[]`, body)

	history.err = errors.New("disk gone")
	resp, _ = get(t, ts.URL+"/history")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHistoryDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil, 0)
	resp, _ := get(t, ts.URL+"/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
