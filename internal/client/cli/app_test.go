package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server"
	serverconfig "github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	app    *App
	out    *bytes.Buffer
	errOut *bytes.Buffer
	dsn    string
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = old })
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "auth.db")

	sc := &serverconfig.Config{}
	sc.LoadDefaults()
	sc.DatabaseDriver = serverconfig.DriverSQLite
	sc.DatabaseDSN = dsn
	sc.SecretKey = "cli-test-secret-0123456789abcdefgh"

	srvApp, err := server.NewApp(context.Background(), sc, logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { srvApp.Close() })

	srv := httptest.NewServer(srvApp.Handler())
	t.Cleanup(srv.Close)

	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, dsn: dsn}
	h.app, err = NewApp(&config.Config{ServerURL: srv.URL, RequestTimeout: 5 * time.Second}, strings.NewReader(""), h.out, h.errOut)
	require.NoError(t, err)
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	return h.app.Run(context.Background(), args)
}

func TestTokenctl_Lifecycle(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "password123")

	require.NoError(t, h.run(t, "useradd", "-driver", "sqlite", "-d", h.dsn, "-e", "alice@example.com", "-roles", "customer, staff"))
	assert.Contains(t, h.out.String(), `"CUSTOMER"`)

	require.NoError(t, h.run(t, "login", "-e", "alice@example.com"))
	var login client.LoginResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &login))
	assert.Equal(t, []string{"ROLE_CUSTOMER", "ROLE_STAFF"}, login.Roles)

	require.NoError(t, h.run(t, "whoami", "-t", login.AccessToken))
	assert.Contains(t, h.out.String(), `"alice@example.com"`)

	require.NoError(t, h.run(t, "refresh", "-r", login.RefreshToken))
	var pair client.LoginResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &pair))
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, login.AccessToken, pair.AccessToken)
	assert.Equal(t, login.Subject, pair.Subject)

	err := h.run(t, "refresh", "-r", login.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenRevoked)

	require.NoError(t, h.run(t, "sessions", "-t", pair.AccessToken))
	var sessions []client.Session
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	require.NoError(t, h.run(t, "setroles", "-driver", "sqlite", "-d", h.dsn, "-e", "alice@example.com", "-roles", "ADMIN"))
	assert.Contains(t, h.out.String(), `"ROLE_ADMIN"`)

	require.NoError(t, h.run(t, "logout", "-r", pair.RefreshToken))
	assert.Contains(t, h.out.String(), "logged out")

	require.NoError(t, h.run(t, "logout-all", "-t", pair.AccessToken))
	assert.Contains(t, h.out.String(), "revoked 0 session(s)")
}

func TestTokenctl_LoginPromptsForEmail(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "password123")
	require.NoError(t, h.run(t, "useradd", "-driver", "sqlite", "-d", h.dsn, "-e", "bob@example.com"))

	h.app.reader = bufio.NewReader(strings.NewReader("bob@example.com\n"))
	require.NoError(t, h.run(t, "login"))
	assert.Contains(t, h.errOut.String(), "Enter email")
	assert.Contains(t, h.out.String(), `"refreshToken"`)

	stubPassword(t, "wrong-password")
	err := h.run(t, "login", "-e", "bob@example.com")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestTokenctl_Usage(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.run(t), ErrUsage)
	assert.ErrorIs(t, h.run(t, "frobnicate"), ErrUsage)
	assert.NoError(t, h.run(t, "help"))
	assert.Contains(t, h.errOut.String(), "logout-all")

	assert.ErrorIs(t, h.run(t, "refresh"), ErrUsage)
	assert.ErrorIs(t, h.run(t, "whoami"), ErrUsage)
	assert.ErrorIs(t, h.run(t, "useradd", "-e", "x@example.com"), ErrUsage)
}

func TestTokenctl_Keygen(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "-a", "http://ignored", "keygen"))
	key := strings.TrimSpace(h.out.String())
	assert.Len(t, key, 43)
}

func TestTokenctl_PasswordError(t *testing.T) {
	h := newHarness(t)
	old := readPassword
	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	t.Cleanup(func() { readPassword = old })

	assert.Error(t, h.run(t, "login", "-e", "a@example.com"))
}

func TestFirstCommand(t *testing.T) {
	assert.Equal(t, "login", firstCommand([]string{"-a", "http://x", "login", "-e", "a"}))
	assert.Equal(t, "whoami", firstCommand([]string{"-timeout=2s", "whoami"}))
	assert.Equal(t, "", firstCommand([]string{"-c", "cfg.json"}))
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []string{"A", "b"}, splitRoles(" A,, b ,"))
	assert.Nil(t, splitRoles(""))
}
