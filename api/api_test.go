package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/medveille/medveille/api"
	migrations "github.com/medveille/medveille/db"
	"github.com/medveille/medveille/internal/backup"
	"github.com/medveille/medveille/internal/compliance"
	"github.com/medveille/medveille/internal/config"
	"github.com/medveille/medveille/internal/db"
	"github.com/medveille/medveille/internal/kvstore"
	"github.com/medveille/medveille/internal/session"
	"github.com/medveille/medveille/internal/store"
)

var dbSeq atomic.Int64

type testEnv struct {
	router *mux.Router
	store  *store.Store
	guard  *session.Guard
	token  string
}

// newTestEnv wires the full stack over an in-memory database, sets the PIN
// to 1234 and unlocks a session, returning a bearer token for protected
// calls.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.Default()

	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := db.New(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(ctx, conn, migrations.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine := &compliance.Engine{Now: func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	}}
	st := store.New(kvstore.New(conn, logger), engine, logger)
	guard := session.New(st, logger, time.Minute)

	cfg := &config.Config{
		JWTSecret:   "testsecret",
		IdleTimeout: time.Minute,
		Backup:      config.BackupConfig{Filename: "backup.json"},
	}
	spool := backup.NewDirStrategy("spool", t.TempDir())
	svc, err := backup.New(ctx, st, logger, cfg.Backup.Filename, spool)
	if err != nil {
		t.Fatalf("backup.New: %v", err)
	}
	st.SetChangeNotifier(svc.RegisterChange)

	if err := st.SetPIN(ctx, session.HashPIN("1234")); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	env := &testEnv{
		router: api.SetupRoutes(cfg, "test", "now", st, guard, svc, spool),
		store:  st,
		guard:  guard,
	}
	env.token = env.unlock(t, "1234")
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doRaw sends a preassembled body without JSON encoding.
func (e *testEnv) doRaw(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) unlock(t *testing.T, pin string) string {
	t.Helper()
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]string{"pin": pin})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unlock: status %d: %s", w.Code, w.Body.String())
	}
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ar); err != nil || ar.Token == "" {
		t.Fatalf("unlock token: %v %q", err, w.Body.String())
	}
	return ar.Token
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v: %s", err, w.Body.String())
	}
	return out
}
