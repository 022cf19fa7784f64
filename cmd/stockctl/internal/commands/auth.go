package commands

import (
	"context"
	"fmt"
)

type RegisterCmd struct {
	Name     string `help:"Display name" required:""`
	Email    string `help:"Account email" required:""`
	Password string `help:"Password (prompted when omitted)"`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := promptPassword(c.Password)
	if err != nil {
		return err
	}

	st, err := buildStack(globals)
	if err != nil {
		return err
	}
	if err := st.session.Register(ctx, c.Name, c.Email, password); err != nil {
		return renderError(err)
	}

	sess := st.session.Current()
	fmt.Printf("Registered and logged in as %s <%s>\n", sess.Name, sess.Email)
	return nil
}

type LoginCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Password (prompted when omitted)"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := promptPassword(c.Password)
	if err != nil {
		return err
	}

	st, err := buildStack(globals)
	if err != nil {
		return err
	}
	if err := st.session.Login(ctx, c.Email, password); err != nil {
		return renderError(err)
	}

	sess := st.session.Current()
	fmt.Printf("Logged in as %s <%s>\n", sess.Name, sess.Email)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}
	if err := st.session.Logout(ctx); err != nil {
		return renderError(err)
	}
	fmt.Println("Logged out")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	st, err := hydratedStack(ctx, globals)
	if err != nil {
		return err
	}

	sess := st.session.Current()
	if !sess.Authenticated() {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s <%s> (user %d)\n", sess.Name, sess.Email, sess.UserID)
	fmt.Printf("Session expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
