package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cafe360/local-commerce/backend/api-gateway/utils"
	applogger "github.com/cafe360/local-commerce/backend/services/common/logger"
	"github.com/cafe360/local-commerce/backend/services/common/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupGateway(t *testing.T, table Table) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.Use(applogger.RequestID())
	fwd := utils.NewForwarder(5*time.Second, time.Second, zap.NewNop(), nil)
	RegisterAllRoutes(r, table, fwd, zap.NewNop())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type seen struct {
	method string
	uri    string
	body   string
	header http.Header
	host   string
}

func recordingUpstream(t *testing.T, got chan<- seen) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{method: r.Method, uri: r.RequestURI, body: string(body), header: r.Header.Clone(), host: r.Host}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(up.Close)
	return up
}

func TestForward_RewritesAndRelays(t *testing.T) {
	got := make(chan seen, 1)
	up := recordingUpstream(t, got)
	gw := setupGateway(t, Table{{Prefix: "/users", Target: up.URL, Rewrite: Strip()}})

	req, err := http.NewRequest(http.MethodPut, gw.URL+"/users/42/profile?full=1&x=a%20b", strings.NewReader(`{"name":"Ali"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer t")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "rid-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	s := <-got
	assert.Equal(t, http.MethodPut, s.method)
	assert.Equal(t, "/42/profile?full=1&x=a%20b", s.uri)
	assert.Equal(t, `{"name":"Ali"}`, s.body)
	assert.Equal(t, "Bearer t", s.header.Get("Authorization"))
	assert.Equal(t, "rid-1", s.header.Get("X-Request-ID"))
	assert.Equal(t, "127.0.0.1", s.header.Get("X-Forwarded-For"))
	assert.Equal(t, strings.TrimPrefix(gw.URL, "http://"), s.header.Get("X-Forwarded-Host"))
	assert.Equal(t, "http", s.header.Get("X-Forwarded-Proto"))
	assert.Equal(t, strings.TrimPrefix(up.URL, "http://"), s.host)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.ElementsMatch(t, []string{"a=1", "b=2"}, resp.Header.Values("Set-Cookie"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestForward_UpstreamHeadersReplaceGatewayHeaders(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(up.Close)

	r := gin.New()
	r.Use(applogger.RequestID())
	r.Use(middleware.SecurityHeaders())
	fwd := utils.NewForwarder(5*time.Second, time.Second, zap.NewNop(), nil)
	RegisterAllRoutes(r, Table{{Prefix: "/shops", Target: up.URL, Rewrite: Passthrough()}}, fwd, zap.NewNop())
	gw := httptest.NewServer(r)
	t.Cleanup(gw.Close)

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/shops/1", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "rid-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"rid-7"}, resp.Header.Values("X-Request-ID"))
	assert.Equal(t, []string{"SAMEORIGIN"}, resp.Header.Values("X-Frame-Options"))
	assert.Equal(t, []string{"no-store"}, resp.Header.Values("Cache-Control"))
	assert.Equal(t, []string{"nosniff"}, resp.Header.Values("X-Content-Type-Options"))
}

func TestForward_DropsHopByHopHeaders(t *testing.T) {
	got := make(chan seen, 1)
	up := recordingUpstream(t, got)
	gw := setupGateway(t, Table{{Prefix: "/shops", Target: up.URL, Rewrite: Passthrough()}})

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/shops", nil)
	require.NoError(t, err)
	req.Header.Set("Connection", "X-Secret")
	req.Header.Set("X-Secret", "drop me")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("X-Keep", "yes")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	s := <-got
	assert.Equal(t, "/shops", s.uri)
	assert.Empty(t, s.header.Get("X-Secret"))
	assert.Empty(t, s.header.Get("Proxy-Authorization"))
	assert.Equal(t, "yes", s.header.Get("X-Keep"))
}

func TestForward_DoesNotFollowRedirects(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	t.Cleanup(up.Close)
	gw := setupGateway(t, Table{{Prefix: "/auth", Target: up.URL, Rewrite: Strip()}})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(gw.URL + "/auth/google")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestDispatch_UnmatchedIs404(t *testing.T) {
	gw := setupGateway(t, Table{{Prefix: "/users", Target: "http://127.0.0.1:1", Rewrite: Strip()}})

	resp, err := http.Get(gw.URL + "/usersx")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Route not found"}`, string(body))
}

func TestForward_UnreachableUpstreamIs502(t *testing.T) {
	gw := setupGateway(t, Table{{Prefix: "/users", Target: "http://127.0.0.1:1", Rewrite: Strip()}})

	resp, err := http.Get(gw.URL + "/users/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Service unreachable"}`, string(body))
}

func TestTunnel_RelaysWebSocketFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	paths := make(chan string, 1)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.RequestURI()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(up.Close)
	gw := setupGateway(t, Table{{Prefix: "/orders", Target: up.URL, Rewrite: Strip(), Upgrade: true}})

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(gw.URL, "http")+"/orders/ws?token=abc", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, "/ws?token=abc", <-paths)

	for _, msg := range []string{"first", "second"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "echo:"+msg, string(reply))
	}
}

func TestTunnel_UnreachableTargetFailsHandshake(t *testing.T) {
	gw := setupGateway(t, Table{{Prefix: "/orders", Target: "http://127.0.0.1:1", Rewrite: Strip(), Upgrade: true}})

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(gw.URL, "http")+"/orders/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDispatch_UpgradeOnPlainRuleIsForwarded(t *testing.T) {
	got := make(chan seen, 1)
	up := recordingUpstream(t, got)
	gw := setupGateway(t, Table{{Prefix: "/users", Target: up.URL, Rewrite: Strip()}})

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/users/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	s := <-got
	assert.Equal(t, http.MethodGet, s.method)
	assert.Empty(t, s.header.Get("Upgrade"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
