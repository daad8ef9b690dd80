package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"engageflow/config"
	"engageflow/internal/notifier"
	"engageflow/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakePlatform counts every request and answers from a route table keyed
// by "METHOD /path".
type fakePlatform struct {
	mu     sync.Mutex
	paths  []string
	routes map[string]string
	status map[string]int
}

func (fp *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	fp.mu.Lock()
	fp.paths = append(fp.paths, key)
	fp.mu.Unlock()

	body, ok := fp.routes[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status := http.StatusOK
	if s, ok := fp.status[key]; ok {
		status = s
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (fp *fakePlatform) Requests() []string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]string(nil), fp.paths...)
}

func newTestServer(t *testing.T, fp *fakePlatform) *httptest.Server {
	t.Helper()
	_, ts := startServer(t, fp)
	return ts
}

func startServer(t *testing.T, fp *fakePlatform) (*Server, *httptest.Server) {
	t.Helper()
	remote := httptest.NewServer(fp)
	t.Cleanup(remote.Close)

	cfg := config.Default()
	cfg.Platform.BaseURL = remote.URL
	cfg.Platform.RequestsPerSecond = 0
	cfg.Campaign.Seeds = []config.CampaignSeed{{ID: "seed-1", Label: "Seed"}}
	cfg.Campaign.ValidateDelay = 0
	cfg.Spin.WinDelay = 0
	cfg.Spin.RetryDelay = 0

	srv := NewServer(&cfg, logger.Logger())
	handler, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		srv.drainSessions()
		srv.cleanup()
	})
	return srv, ts
}

// payloadToken wraps payload as the middle segment of an unsigned token.
func payloadToken(payload string) string {
	return "h." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".s"
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func postBalance(t *testing.T, ts *httptest.Server, tok string) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"token": tok})
	resp, err := http.Post(ts.URL+"/api/balance", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

// runSession dials path, sends the token and collects events until the
// server closes the connection.
func runSession(t *testing.T, ts *httptest.Server, path, tok string) []notifier.Event {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"token": tok}))

	var events []notifier.Event
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var e notifier.Event
		if err := conn.ReadJSON(&e); err != nil {
			var closeErr *websocket.CloseError
			if !assert.ErrorAs(t, err, &closeErr) {
				return events
			}
			assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
			return events
		}
		events = append(events, e)
	}
}

func cleanLines(events []notifier.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Clean
	}
	return out
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                           "0.0.0.0:8000",
		"  :9090  ":                  "0.0.0.0:9090",
		"localhost":                  "localhost:8000",
		"0.0.0.0:80":                 "0.0.0.0:80",
		"[::1]:443":                  "[::1]:443",
		"::1":                        "[::1]:8000",
		"*:8000":                     "0.0.0.0:8000",
		"http://13.200.112.203:8080": "13.200.112.203:8080",
		"https://13.200.112.203":     "13.200.112.203:8000",
		"http://:7070":               "0.0.0.0:7070",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBalanceInvalidTokenMakesNoRemoteCall(t *testing.T) {
	fp := &fakePlatform{}
	ts := newTestServer(t, fp)

	for _, tok := range []string{"garbage", "a.b", "Bearer x.!!!.y"} {
		resp, out := postBalance(t, ts, tok)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tok)
		assert.Equal(t, "Invalid token", out["detail"], tok)
	}
	assert.Empty(t, fp.Requests())
}

func TestBalanceRejectsTokenWithoutUser(t *testing.T) {
	fp := &fakePlatform{}
	ts := newTestServer(t, fp)

	for _, tok := range []string{payloadToken("{}"), payloadToken("null"), payloadToken(`{"role":"guest"}`)} {
		resp, out := postBalance(t, ts, tok)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tok)
		assert.Equal(t, "Invalid token", out["detail"], tok)
	}
	assert.Empty(t, fp.Requests())
}

func TestBalanceReport(t *testing.T) {
	fp := &fakePlatform{routes: map[string]string{
		"GET /users/me/profile":                              `{"email":"player@example.com","username":"p1"}`,
		"GET /platform-currency-manager/balances/p1/K_POINT": `{"balance":4200}`,
		"GET /wallets/tokens/balance/v2":                     `{"data":{"balances":[{"token":"RKGEN","amount":"2.5"}]}}`,
	}}
	ts := newTestServer(t, fp)

	resp, out := postBalance(t, ts, "Bearer "+signedToken(t, jwt.MapClaims{"username": "p1", "sub": "ignored"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p1", out["user_id"])
	assert.Equal(t, "player@example.com", out["display_name"])
	assert.Equal(t, map[string]any{"kpoint": 4200.0, "rkgen": 2.5}, out["balances"])
}

func TestBalanceFallsBackToUserID(t *testing.T) {
	fp := &fakePlatform{}
	ts := newTestServer(t, fp)

	resp, out := postBalance(t, ts, signedToken(t, jwt.MapClaims{"sub": "subject-7"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "subject-7", out["user_id"])
	assert.Equal(t, "subject-7", out["display_name"])
	assert.Equal(t, map[string]any{"kpoint": 0.0, "rkgen": 0.0}, out["balances"])
}

func TestTasksSessionStreamsRun(t *testing.T) {
	fp := &fakePlatform{routes: map[string]string{
		"GET /platform-campaign-hub/s2s/airdrop-campaign/campaigns": `{"campaigns":[]}`,
		"GET /platform-campaign-hub/s2s/airdrop-campaign/user-progress/p1/campaigns/seed-1": `{
			"campaignInfo":{"campaignTasks":[{"taskID":"t1","title":"Join Discord"},{"taskID":"t2","title":"Follow"}]},
			"userCampaignProgressInfo":{"progressDetails":[{"taskID":"t1","userCampaignTaskProgressState":"VALIDATED"}]}}`,
		"POST /platform-campaign-hub/s2s/airdrop-campaign/user-progress/p1/campaigns/seed-1/tasks/t2/validate": `{}`,
		"DELETE /social-auth/disconnect": `{"success":true}`,
	}}
	ts := newTestServer(t, fp)

	events := runSession(t, ts, "/ws/tasks", signedToken(t, jwt.MapClaims{"username": "p1"}))
	lines := cleanLines(events)
	require.NotEmpty(t, lines)

	assert.Equal(t, "👤 UID: p1", lines[0])
	assert.Contains(t, lines, "   🔥 Seed                      | Progress: 1/2")
	assert.Contains(t, lines, "      ✅ Follow...      ")
	assert.Equal(t, "✨ All tasks complete!", lines[len(lines)-1])
	assert.Equal(t, "log", events[0].Type)
}

func TestTasksSessionInvalidToken(t *testing.T) {
	fp := &fakePlatform{}
	ts := newTestServer(t, fp)

	events := runSession(t, ts, "/ws/tasks", "not-a-token")
	assert.Empty(t, events)
	assert.Empty(t, fp.Requests())
}

func TestTasksSessionTokenWithoutUser(t *testing.T) {
	fp := &fakePlatform{}
	ts := newTestServer(t, fp)

	for _, tok := range []string{payloadToken("{}"), payloadToken("null")} {
		events := runSession(t, ts, "/ws/tasks", tok)
		assert.Empty(t, events, tok)
	}
	assert.Empty(t, fp.Requests())
}

func TestSessionRefusedWhileDraining(t *testing.T) {
	fp := &fakePlatform{}
	srv, ts := startServer(t, fp)
	srv.drainSessions()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tasks"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, fp.Requests())
}

func TestSpinSessionDrainsLadder(t *testing.T) {
	fp := &fakePlatform{
		routes: map[string]string{
			"POST /rkade/kgen/v2/spin/wheel": `{"success":false,"error":{"code":"INSUFFICIENT_BALANCE","message":"not enough"}}`,
		},
		status: map[string]int{"POST /rkade/kgen/v2/spin/wheel": http.StatusBadRequest},
	}
	ts := newTestServer(t, fp)

	events := runSession(t, ts, "/ws/spin", "opaque-token")
	assert.Equal(t, []string{
		"⏳ Starting Smart Drain Loop...",
		"📉 Switching to 1000...",
		"📉 Switching to 500...",
		"📉 Switching to 100...",
		"🏁 Session Finished.",
	}, cleanLines(events))
	assert.Len(t, fp.Requests(), 4)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakePlatform{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/balance", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORSMiddlewareOrigins(t *testing.T) {
	mw, err := corsMiddleware(nil)
	require.NoError(t, err)
	assert.Nil(t, mw)

	mw, err = corsMiddleware([]string{"https://app.example.com", " * "})
	require.NoError(t, err)
	assert.NotNil(t, mw)

	_, err = corsMiddleware([]string{"app.example.com"})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakePlatform{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
