// Package commands holds the stockctl subcommands. Each command builds the
// client stack from the shared globals, hydrates the persisted session, and
// talks to the API.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfelder/stockroom/internal/client"
)

type Globals struct {
	URL       string
	ConfigDir string
	Version   string
}

// stack is the wired client: one credential store backing both the token
// source and the session manager.
type stack struct {
	session  *client.SessionManager
	products *client.ProductService
}

func buildStack(g *Globals) (*stack, error) {
	dir := g.ConfigDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "stockctl")
	}

	creds := client.NewCredentialStore(dir)
	api := client.New(g.URL, creds)
	session := client.NewSessionManager(api, creds)
	return &stack{
		session:  session,
		products: client.NewProductService(api, session),
	}, nil
}

// hydratedStack builds the stack and restores any persisted session.
func hydratedStack(ctx context.Context, g *Globals) (*stack, error) {
	st, err := buildStack(g)
	if err != nil {
		return nil, err
	}
	st.session.Hydrate(ctx)
	return st, nil
}

// promptPassword reads a password from stdin when it was not supplied as a
// flag. Stdin may be a pipe in scripts, so no terminal tricks here.
func promptPassword(supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// renderError turns a client error into something worth printing: validation
// failures list the offending fields, everything else keeps its message.
func renderError(err error) error {
	ce, ok := err.(*client.Error)
	if !ok {
		return err
	}
	switch ce.Kind {
	case client.KindValidation:
		var b strings.Builder
		b.WriteString(ce.Message)
		for field, msgs := range ce.Fields {
			for _, msg := range msgs {
				fmt.Fprintf(&b, "\n  %s: %s", field, msg)
			}
		}
		return fmt.Errorf("%s", b.String())
	case client.KindNetwork:
		return fmt.Errorf("cannot reach server: %s", ce.Message)
	case client.KindUnauthenticated:
		return fmt.Errorf("not logged in, run `stockctl login` first")
	case client.KindSessionExpired:
		return fmt.Errorf("session expired, run `stockctl login` again")
	default:
		return fmt.Errorf("%s", ce.Message)
	}
}
