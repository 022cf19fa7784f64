package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/jfelder/stockroom/cmd/stockctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Register commands.RegisterCmd `cmd:"" help:"Create an account and log in"`
		Login    commands.LoginCmd    `cmd:"" help:"Log in with an existing account"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and revoke the session"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the current session"`
		Products commands.ProductsCmd `cmd:"" help:"Manage your products"`

		URL       string `help:"Stockroom API base URL" env:"STOCKROOM_URL" default:"http://localhost:8080"`
		ConfigDir string `help:"Credential directory (defaults to the user config dir)" env:"STOCKCTL_CONFIG_DIR"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("stockctl"),
		kong.Description("Command-line client for the Stockroom inventory API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{URL: cli.URL, ConfigDir: cli.ConfigDir, Version: version})
	cmd.FatalIfErrorf(err)
}
