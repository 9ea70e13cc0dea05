package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	"github.com/drblury/socketbus/internal/runtime/jsoncodec"
	"github.com/drblury/socketbus/internal/runtime/system"
)

type postedRequest struct {
	Path string
	Body runtime.PostRequest
}

// fakeAPI mimics the inspection API of a running service.
type fakeAPI struct {
	mu     sync.Mutex
	posts  []postedRequest
	status int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{status: http.StatusAccepted}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sockets", func(w http.ResponseWriter, r *http.Request) {
		_ = jsoncodec.WriteJSON(w, http.StatusOK, []runtime.SocketInfo{
			{Name: "@system", Handle: "1:1", Pending: 0, Posted: 3, Dispatched: 3},
			{Name: "main", Handle: "2:1", Pending: 2, Posted: 5, Dispatched: 3},
		})
	})
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		_ = jsoncodec.WriteJSON(w, http.StatusOK, runtime.ServiceStatus{
			Sockets:         2,
			Capacity:        128,
			UpdateFrequency: 60,
			Uptime:          "1m0s",
		})
	})
	mux.HandleFunc("POST /api/sockets/{name}/messages", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req runtime.PostRequest
		require.NoError(t, jsoncodec.Unmarshal(raw, &req))

		api.mu.Lock()
		api.posts = append(api.posts, postedRequest{Path: r.PathValue("name"), Body: req})
		status := api.status
		api.mu.Unlock()

		if status >= http.StatusBadRequest {
			_ = jsoncodec.WriteJSON(w, status, map[string]string{"error": "socketbus: socket not found"})
			return
		}
		w.WriteHeader(status)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) setStatus(status int) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

func (a *fakeAPI) lastPost(t *testing.T) postedRequest {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.posts)
	return a.posts[len(a.posts)-1]
}

func TestSocketsCommand(t *testing.T) {
	_, srv := newFakeAPI(t)

	out, err := execute(t, "sockets", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "@system")
	assert.Contains(t, out, "main")

	out, err = execute(t, "sockets", "--addr", srv.URL, "--format", "json")
	require.NoError(t, err)
	var sockets []runtime.SocketInfo
	require.NoError(t, jsoncodec.Unmarshal([]byte(out), &sockets))
	require.Len(t, sockets, 2)
	assert.Equal(t, 2, sockets[1].Pending)
}

func TestStatusCommand(t *testing.T) {
	_, srv := newFakeAPI(t)

	out, err := execute(t, "status", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "sockets: 2/128")
	assert.Contains(t, out, "update frequency: 60 Hz")
	assert.Contains(t, out, "transport: none")
}

func TestInspectUnreachableService(t *testing.T) {
	_, srv := newFakeAPI(t)
	addr := srv.URL
	srv.Close()

	_, err := execute(t, "status", "--addr", addr)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPostCommand(t *testing.T) {
	api, srv := newFakeAPI(t)

	out, err := execute(t, "post", "main", "--addr", srv.URL,
		"--message", "greet", "--path", "player", "--fragment", "head", "--data", "hello")
	require.NoError(t, err)
	assert.Equal(t, "posted 5 bytes to main\n", out)

	got := api.lastPost(t)
	assert.Equal(t, "main", got.Path)
	assert.Equal(t, runtime.PostRequest{
		Message:  "greet",
		Path:     "player",
		Fragment: "head",
		Payload:  []byte("hello"),
	}, got.Body)
}

func TestPostCommandDataFile(t *testing.T) {
	api, srv := newFakeAPI(t)
	file := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(file, []byte{0, 1, 2}, 0o600))

	_, err := execute(t, "post", "@render", "--addr", srv.URL, "--id", "42", "--data-file", file)
	require.NoError(t, err)

	got := api.lastPost(t)
	assert.Equal(t, "@render", got.Path)
	assert.Equal(t, uint64(42), got.Body.MessageID)
	assert.Equal(t, []byte{0, 1, 2}, got.Body.Payload)
}

func TestPostCommandErrors(t *testing.T) {
	api, srv := newFakeAPI(t)

	_, err := execute(t, "post", "main", "--addr", srv.URL, "--message", "a", "--id", "1")
	require.Error(t, err, "message and id are exclusive")

	_, err = execute(t, "post", "main", "--addr", srv.URL, "--data-file", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	api.setStatus(http.StatusNotFound)
	_, err = execute(t, "post", "nowhere", "--addr", srv.URL, "--message", "a")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "socket not found")
}

func TestSystemExitCommand(t *testing.T) {
	api, srv := newFakeAPI(t)

	out, err := execute(t, "system", "exit", "--code", "3", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "sent system.Exit\n", out)

	got := api.lastPost(t)
	assert.Equal(t, system.SocketName, got.Path)
	assert.Equal(t, system.ExitDescriptor.NameHash, got.Body.MessageID)
	assert.Equal(t, "system.Exit", got.Body.Descriptor)

	var msg system.Exit
	require.NoError(t, ddf.Unmarshal(got.Body.Payload, &msg))
	assert.Equal(t, int32(3), msg.Code)
}

func TestSystemCommandPayloads(t *testing.T) {
	api, srv := newFakeAPI(t)

	_, err := execute(t, "system", "reboot", "game.projectc", "--verify", "--addr", srv.URL)
	require.Error(t, err, "unknown flags are rejected")

	_, err = execute(t, "system", "reboot", "--addr", srv.URL, "--", "game.projectc", "--verify")
	require.NoError(t, err)
	var reboot system.Reboot
	require.NoError(t, ddf.Unmarshal(api.lastPost(t).Body.Payload, &reboot))
	assert.Equal(t, "game.projectc", reboot.Args[0])
	assert.Equal(t, "--verify", reboot.Args[1])
	assert.Empty(t, reboot.Args[2])

	_, err = execute(t, "system", "start-record", "out.webm", "--fps", "60", "--addr", srv.URL)
	require.NoError(t, err)
	var record system.StartRecord
	require.NoError(t, ddf.Unmarshal(api.lastPost(t).Body.Payload, &record))
	assert.Equal(t, system.StartRecord{FileName: "out.webm", FramePeriod: 2, FPS: 60}, record)

	_, err = execute(t, "system", "set-update-frequency", "30", "--addr", srv.URL)
	require.NoError(t, err)
	var freq system.SetUpdateFrequency
	require.NoError(t, ddf.Unmarshal(api.lastPost(t).Body.Payload, &freq))
	assert.Equal(t, uint32(30), freq.Frequency)

	script := filepath.Join(t.TempDir(), "boot.lua")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')"), 0o600))
	_, err = execute(t, "system", "run-script", "boot", script, "--addr", srv.URL)
	require.NoError(t, err)
	var run system.RunScript
	require.NoError(t, ddf.Unmarshal(api.lastPost(t).Body.Payload, &run))
	assert.Equal(t, system.RunScript{Module: "boot", Source: "print('hi')"}, run)
}

func TestSystemCommandInvalidArgument(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := execute(t, "system", "set-vsync", "-1", "--addr", srv.URL)
	require.Error(t, err)

	_, err = execute(t, "system", "set-vsync", "many", "--addr", srv.URL)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
