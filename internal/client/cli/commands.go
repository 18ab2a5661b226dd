package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

func (a *App) keygen(_ context.Context, _ []string) error {
	key, err := cryptox.NewSigningKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, key)
	return err
}

type directoryFlags struct {
	driver string
	dsn    string
	email  string
	roles  string
}

func (a *App) parseDirectoryFlags(name string, args []string) (*directoryFlags, error) {
	f := &directoryFlags{}
	fs := newFlagSet(name)
	fs.StringVar(&f.driver, "driver", "postgres", "database driver (postgres|sqlite)")
	fs.StringVar(&f.dsn, "d", "", "database DSN")
	fs.StringVar(&f.email, "e", "", "account email")
	fs.StringVar(&f.roles, "roles", "", "comma-separated role names")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := required("d", f.dsn); err != nil {
		return nil, err
	}
	if err := required("e", f.email); err != nil {
		return nil, err
	}
	return f, nil
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// openDirectory opens the account store directly, bypassing the server.
func openDirectory(ctx context.Context, driver, dsn string) (*services.AccountDirectory, *sql.DB, error) {
	repos, err := repomanager.New(driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(repos.DriverName(), dsn)
	if err != nil {
		return nil, nil, err
	}
	if repos.DriverName() == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	dir, err := services.NewAccountDirectory(db, repos)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return dir, db, nil
}

func (a *App) userAdd(ctx context.Context, args []string) error {
	f, err := a.parseDirectoryFlags("useradd", args)
	if err != nil {
		return err
	}

	password, err := GetPassword(a.errOut)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(password)

	dir, db, err := openDirectory(ctx, f.driver, f.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	acc, err := dir.Register(ctx, f.email, string(password), splitRoles(f.roles))
	if err != nil {
		return err
	}
	return a.print(map[string]any{"id": acc.ID, "email": acc.Email, "roles": acc.Roles})
}

func (a *App) setRoles(ctx context.Context, args []string) error {
	f, err := a.parseDirectoryFlags("setroles", args)
	if err != nil {
		return err
	}

	dir, db, err := openDirectory(ctx, f.driver, f.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dir.SetRoles(ctx, f.email, splitRoles(f.roles)); err != nil {
		return err
	}
	roles, err := dir.Roles(ctx, f.email)
	if err != nil {
		return err
	}
	return a.print(map[string]any{"email": f.email, "roles": roles})
}

func (a *App) login(ctx context.Context, args []string) error {
	var email string
	fs := newFlagSet("login")
	fs.StringVar(&email, "e", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}

	if email == "" {
		var err error
		if email, err = GetSimpleText(a.reader, "Enter email", a.errOut); err != nil {
			return err
		}
	}

	password, err := GetPassword(a.errOut)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(password)

	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) refreshFlag(name string, args []string) (string, error) {
	var token string
	fs := newFlagSet(name)
	fs.StringVar(&token, "r", "", "refresh token")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	return token, required("r", token)
}

func (a *App) accessFlag(name string, args []string) (string, error) {
	var token string
	fs := newFlagSet(name)
	fs.StringVar(&token, "t", "", "access token")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	return token, required("t", token)
}

func (a *App) refresh(ctx context.Context, args []string) error {
	token, err := a.refreshFlag("refresh", args)
	if err != nil {
		return err
	}
	pair, err := a.api.Refresh(ctx, token)
	if err != nil {
		return err
	}
	return a.print(pair)
}

func (a *App) logout(ctx context.Context, args []string) error {
	token, err := a.refreshFlag("logout", args)
	if err != nil {
		return err
	}
	if err := a.api.Logout(ctx, token); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, "logged out")
	return err
}

func (a *App) whoami(ctx context.Context, args []string) error {
	token, err := a.accessFlag("whoami", args)
	if err != nil {
		return err
	}
	me, err := a.api.Me(ctx, token)
	if err != nil {
		return err
	}
	return a.print(me)
}

func (a *App) sessions(ctx context.Context, args []string) error {
	token, err := a.accessFlag("sessions", args)
	if err != nil {
		return err
	}
	list, err := a.api.Sessions(ctx, token)
	if err != nil {
		return err
	}
	return a.print(list)
}

func (a *App) logoutAll(ctx context.Context, args []string) error {
	token, err := a.accessFlag("logout-all", args)
	if err != nil {
		return err
	}
	n, err := a.api.LogoutAll(ctx, token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "revoked %d session(s)\n", n)
	return err
}
