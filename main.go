package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/deadpyxel/shreddit-client/internal/config"
	"github.com/deadpyxel/shreddit-client/internal/log"
	"github.com/deadpyxel/shreddit-client/internal/store"
	"github.com/deadpyxel/shreddit-client/pkg/api"
)

type globals struct {
	Config   string `help:"Path to config file (YAML or JSON)." default:"config.json" env:"CONFIG_FILE" type:"path"`
	LogLevel string `help:"Log level: debug, info, warn, error. Overrides the config file." env:"LOG_LEVEL"`
	BaseURL  string `help:"Backend base URL. Overrides the config file." name:"base-url"`
}

var CLI struct {
	globals

	Health   healthCmd   `cmd:"" help:"Check that the backend is reachable."`
	Register registerCmd `cmd:"" help:"Create an account and store its token."`
	Login    loginCmd    `cmd:"" help:"Log in and store the token."`
	Logout   logoutCmd   `cmd:"" help:"Forget the stored token."`
	Whoami   whoamiCmd   `cmd:"" help:"Show the user the stored token belongs to."`
	Upload   uploadCmd   `cmd:"" help:"Upload a document."`
	Download downloadCmd `cmd:"" help:"Download a stored document."`
	Search   searchCmd   `cmd:"" help:"Full-text search across documents."`

	Documents struct {
		Ls     lsDocumentsCmd    `cmd:"" help:"List documents."`
		Get    getDocumentCmd    `cmd:"" help:"Show a single document."`
		Create createDocumentCmd `cmd:"" help:"Create a text document."`
		Rm     rmDocumentCmd     `cmd:"" help:"Delete a document."`
	} `cmd:"" help:"Manage documents."`

	Comments struct {
		Ls  lsCommentsCmd `cmd:"" help:"List comments on a document."`
		Add addCommentCmd `cmd:"" help:"Comment on a document."`
		Rm  rmCommentCmd  `cmd:"" help:"Delete a comment."`
	} `cmd:"" help:"Manage document comments."`

	Notes struct {
		Ls  lsNotesCmd `cmd:"" help:"List notes on a document."`
		Add addNoteCmd `cmd:"" help:"Add a note to a document."`
	} `cmd:"" help:"Manage document notes."`

	Fetch fetchCmd `cmd:"" help:"Send a raw request with the stored token and print the response."`
}

// App is handed to every command's Run method.
type App struct {
	context.Context

	Client *api.APIClient
	Store  *store.LocalStore
	Out    io.Writer
}

func newApp(ctx context.Context, g *globals) (*App, error) {
	cfg, err := config.ReadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.BaseURL != "" {
		cfg.BaseURL = g.BaseURL
	}
	log.SetLevel(cfg.LogLevel)

	localStore, err := store.Open(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Timeout.Duration()}
	client := api.NewAPIClient(cfg.BaseURL, api.NewDispatcher(httpClient, localStore))
	log.Debug("client ready", "client", client.String(), "storage", cfg.StoragePath)

	return &App{Context: ctx, Client: client, Store: localStore, Out: os.Stdout}, nil
}

func (app *App) Close() error {
	return app.Store.Close()
}

// runCommand runs the selected command and closes the local store. The command error is
// returned untouched so it is reported once by the caller.
func runCommand(app *App, run func(binds ...interface{}) error) error {
	err := run(app)
	if closeErr := app.Close(); closeErr != nil {
		log.Warn("cannot close local storage", "error", closeErr)
	}
	return err
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("shreddit"),
		kong.Description("Command-line client for the Shreddit document service."),
		kong.UsageOnError(),
	)

	app, err := newApp(context.Background(), &CLI.globals)
	ctx.FatalIfErrorf(err)

	ctx.FatalIfErrorf(runCommand(app, ctx.Run))
}
