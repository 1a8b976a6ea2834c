package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/dustin/go-humanize"
	progressbar "github.com/schollz/progressbar/v3"

	"github.com/deadpyxel/shreddit-client/internal/log"
	"github.com/deadpyxel/shreddit-client/pkg/api"
)

// usernameKey is stored next to the token so logout and whoami work offline.
const usernameKey = "username"

// askPassword prompts on the terminal. Tests replace it.
var askPassword = func() (string, error) {
	var password string
	err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(survey.Required))
	return password, err
}

type credentialsFlags struct {
	Username string `arg:"" help:"Account name."`
	Password string `help:"Account password. Prompted for when empty." env:"SHREDDIT_PASSWORD"`
}

func (c *credentialsFlags) password() (string, error) {
	if c.Password != "" {
		return c.Password, nil
	}
	return askPassword()
}

func storeSession(app *App, auth *api.AuthResponse) error {
	err := app.Store.SetItems(map[string]string{api.TokenKey: auth.Token, usernameKey: auth.Username})
	if err != nil {
		return fmt.Errorf("cannot store token: %w", err)
	}
	log.Info("session stored", "username", auth.Username)
	return nil
}

type healthCmd struct{}

func (c *healthCmd) Run(app *App) error {
	banner, err := app.Client.Health(app)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, banner)
	return nil
}

type registerCmd struct {
	credentialsFlags
}

func (c *registerCmd) Run(app *App) error {
	password, err := c.password()
	if err != nil {
		return err
	}
	auth, err := app.Client.Register(app, c.Username, password)
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	if err := storeSession(app, auth); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Registered and logged in as %s\n", auth.Username)
	return nil
}

type loginCmd struct {
	credentialsFlags
}

func (c *loginCmd) Run(app *App) error {
	password, err := c.password()
	if err != nil {
		return err
	}
	auth, err := app.Client.Login(app, c.Username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := storeSession(app, auth); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Logged in as %s\n", auth.Username)
	return nil
}

type logoutCmd struct{}

func (c *logoutCmd) Run(app *App) error {
	if err := app.Store.RemoveItem(api.TokenKey, usernameKey); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Logged out")
	return nil
}

type whoamiCmd struct{}

func (c *whoamiCmd) Run(app *App) error {
	user, err := app.Client.Me(app)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return errors.New("not logged in")
		}
		return err
	}
	fmt.Fprintln(app.Out, user.Username)
	return nil
}

type uploadCmd struct {
	Path  string `arg:"" type:"existingfile" help:"File to upload."`
	Title string `help:"Document title. Defaults to the file name."`
}

func (c *uploadCmd) Run(app *App) error {
	file, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}

	filename := filepath.Base(c.Path)
	log.Debug("uploading", "file", filename, "bytes", info.Size())
	result, err := app.Client.UploadDocument(app, c.Title, filename, file)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", filename, err)
	}
	fmt.Fprintf(app.Out, "Uploaded %s (%s) as document #%d, object %s\n",
		filename, humanize.Bytes(uint64(info.Size())), result.ID, result.ObjectName)
	return nil
}

type downloadCmd struct {
	Name       string `arg:"" help:"Object name returned by upload."`
	Output     string `short:"o" help:"Destination file. Defaults to the object's base name."`
	NoProgress bool   `help:"Do not draw a progress bar."`
}

func (c *downloadCmd) Run(app *App) error {
	body, size, err := app.Client.DownloadDocument(app, c.Name)
	if err != nil {
		return fmt.Errorf("download of %s failed: %w", c.Name, err)
	}
	defer body.Close()

	output := c.Output
	if output == "" {
		output = path.Base(c.Name)
	}
	file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer file.Close()

	var bar *progressbar.ProgressBar
	if c.NoProgress {
		bar = progressbar.NewOptions64(size, progressbar.OptionSetVisibility(false))
	} else {
		bar = progressbar.DefaultBytes(size, "downloading")
	}
	written, err := io.Copy(io.MultiWriter(file, bar), body)
	if err != nil {
		return fmt.Errorf("download of %s interrupted: %w", c.Name, err)
	}
	_ = bar.Finish()

	fmt.Fprintf(app.Out, "Saved %s (%s)\n", output, humanize.Bytes(uint64(written)))
	return nil
}

type searchCmd struct {
	Query []string `arg:"" help:"Search terms."`
}

func (c *searchCmd) Run(app *App) error {
	documents, err := app.Client.Search(app, strings.Join(c.Query, " "))
	if err != nil {
		return err
	}
	renderDocuments(app.Out, documents)
	return nil
}

type lsDocumentsCmd struct{}

func (c *lsDocumentsCmd) Run(app *App) error {
	documents, err := app.Client.ListDocuments(app)
	if err != nil {
		return err
	}
	renderDocuments(app.Out, documents)
	return nil
}

type getDocumentCmd struct {
	DocumentID int64 `arg:"" name:"document-id"`
}

func (c *getDocumentCmd) Run(app *App) error {
	document, err := app.Client.GetDocument(app, c.DocumentID)
	if err != nil {
		return err
	}
	renderDocuments(app.Out, []api.Document{*document})
	return nil
}

type createDocumentCmd struct {
	Title   string   `arg:"" help:"Document title."`
	Content []string `arg:"" optional:"" help:"Document text."`
}

func (c *createDocumentCmd) Run(app *App) error {
	document, err := app.Client.CreateDocument(app, c.Title, strings.Join(c.Content, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Created document #%d\n", document.ID)
	return nil
}

type rmDocumentCmd struct {
	DocumentID int64 `arg:"" name:"document-id"`
}

func (c *rmDocumentCmd) Run(app *App) error {
	if err := app.Client.DeleteDocument(app, c.DocumentID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Deleted document #%d\n", c.DocumentID)
	return nil
}

type lsCommentsCmd struct {
	DocumentID int64 `arg:"" name:"document-id"`
}

func (c *lsCommentsCmd) Run(app *App) error {
	comments, err := app.Client.ListComments(app, c.DocumentID)
	if err != nil {
		return err
	}
	renderComments(app.Out, comments)
	return nil
}

type addCommentCmd struct {
	DocumentID int64    `arg:"" name:"document-id"`
	Text       []string `arg:"" help:"Comment text."`
}

func (c *addCommentCmd) Run(app *App) error {
	comment, err := app.Client.AddComment(app, c.DocumentID, strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Added comment #%d to document #%d\n", comment.ID, c.DocumentID)
	return nil
}

type rmCommentCmd struct {
	CommentID int64 `arg:"" name:"comment-id"`
}

func (c *rmCommentCmd) Run(app *App) error {
	if err := app.Client.DeleteComment(app, c.CommentID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Deleted comment #%d\n", c.CommentID)
	return nil
}

type lsNotesCmd struct {
	DocumentID int64 `arg:"" name:"document-id"`
}

func (c *lsNotesCmd) Run(app *App) error {
	notes, err := app.Client.ListNotes(app, c.DocumentID)
	if err != nil {
		return err
	}
	renderNotes(app.Out, notes)
	return nil
}

type addNoteCmd struct {
	DocumentID int64    `arg:"" name:"document-id"`
	Content    []string `arg:"" help:"Note content."`
}

func (c *addNoteCmd) Run(app *App) error {
	note, err := app.Client.AddNote(app, c.DocumentID, strings.Join(c.Content, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Added note #%d to document #%d\n", note.ID, c.DocumentID)
	return nil
}

type fetchCmd struct {
	Path   string   `arg:"" help:"Endpoint relative to the base URL, or an absolute URL."`
	Method string   `short:"X" default:"GET" help:"HTTP method."`
	Header []string `short:"H" help:"Extra header as 'Name: value'. Repeatable."`
	Data   string   `short:"d" help:"String body, sent as JSON."`
	Form   []string `short:"F" help:"Form field as name=value. Repeatable. Sends multipart form data."`
	File   []string `help:"Form file as field=path. Repeatable. Sends multipart form data."`
}

func (c *fetchCmd) options() (*api.Options, func(), error) {
	opts := &api.Options{Method: strings.ToUpper(c.Method)}
	var files []*os.File
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
	}

	if len(c.Header) > 0 {
		opts.Headers = make(map[string]string, len(c.Header))
		for _, h := range c.Header {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, cleanup, fmt.Errorf("invalid header %q, want 'Name: value'", h)
			}
			opts.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	switch {
	case len(c.Form) > 0 || len(c.File) > 0:
		if c.Data != "" {
			return nil, cleanup, errors.New("--data cannot be combined with --form or --file")
		}
		form := api.NewFormData()
		for _, field := range c.Form {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, cleanup, fmt.Errorf("invalid form field %q, want name=value", field)
			}
			form.Set(name, value)
		}
		for _, field := range c.File {
			name, filePath, ok := strings.Cut(field, "=")
			if !ok {
				return nil, cleanup, fmt.Errorf("invalid form file %q, want field=path", field)
			}
			f, err := os.Open(filePath)
			if err != nil {
				return nil, cleanup, err
			}
			files = append(files, f)
			form.AddFile(name, filepath.Base(filePath), f)
		}
		opts.Body = form
	case c.Data != "":
		opts.Body = c.Data
	}
	return opts, cleanup, nil
}

func (c *fetchCmd) Run(app *App) error {
	opts, cleanup, err := c.options()
	defer cleanup()
	if err != nil {
		return err
	}

	response, err := app.Client.Fetch(app, c.Path, opts)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	fmt.Fprintln(app.Out, response.Status)
	_, err = io.Copy(app.Out, response.Body)
	return err
}
