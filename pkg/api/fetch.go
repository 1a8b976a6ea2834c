package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// TokenKey is the storage key the auth token is read from.
const TokenKey = "jwt"

const jsonContentType = "application/json"

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Storage is a synchronous key-value store. Only GetItem is used by the dispatcher.
type Storage interface {
	GetItem(key string) (string, error)
}

// StorageFunc adapts a plain function to Storage.
type StorageFunc func(key string) (string, error)

func (f StorageFunc) GetItem(key string) (string, error) {
	return f(key)
}

// Options are the per-call request settings. A nil *Options is the same as an empty one.
//
// Body may be nil, a string (pre-serialized JSON), a *FormData, a []byte or an io.Reader.
// An empty string is the same as no body. Any other value is sent as its fmt.Sprint text with
// no content type.
type Options struct {
	Method  string
	Headers map[string]string
	Body    any
}

// Dispatcher fills in default headers and the bearer token, then hands the request to its Doer.
type Dispatcher struct {
	client  Doer
	storage Storage
}

// NewDispatcher returns a dispatcher sending through client and reading the token from storage.
// A nil client means http.DefaultClient, a nil storage means requests never carry a token.
func NewDispatcher(client Doer, storage Storage) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{client: client, storage: storage}
}

// Fetch builds the request for url and sends it. The response and any transport error are
// returned as they come back from the Doer.
func (d *Dispatcher) Fetch(ctx context.Context, url string, opts *Options) (*http.Response, error) {
	opts = withDefaults(opts)
	header := d.Headers(opts)

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}
	if contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header = header

	return d.client.Do(req)
}

// Headers returns the headers Fetch would send for opts, before any multipart boundary is added.
func (d *Dispatcher) Headers(opts *Options) http.Header {
	opts = withDefaults(opts)

	header := http.Header{}
	header.Set("Accept", jsonContentType)
	if s, ok := opts.Body.(string); ok && s != "" {
		header.Set("Content-Type", jsonContentType)
	}
	for name, value := range opts.Headers {
		header.Set(name, value)
	}

	if token, ok := d.token(); ok {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

// token never fails: a storage error or panic is the same as no token.
func (d *Dispatcher) token() (token string, ok bool) {
	defer func() {
		if recover() != nil {
			token, ok = "", false
		}
	}()
	if d.storage == nil {
		return "", false
	}
	token, err := d.storage.GetItem(TokenKey)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

func withDefaults(opts *Options) *Options {
	merged := Options{Method: http.MethodGet}
	if opts == nil {
		return &merged
	}
	if opts.Method != "" {
		merged.Method = opts.Method
	}
	merged.Headers = opts.Headers
	merged.Body = opts.Body
	return &merged
}

// encodeBody returns the wire body and, for form data only, the content type carrying the boundary.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if b == "" {
			return nil, "", nil
		}
		return bytes.NewBufferString(b), "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case *FormData:
		return b.encode()
	case io.Reader:
		return b, "", nil
	default:
		return bytes.NewBufferString(fmt.Sprint(b)), "", nil
	}
}

type formFile struct {
	field    string
	filename string
	content  io.Reader
}

// FormData is a multipart/form-data body. Fields and files are written in the order they were added.
type FormData struct {
	fields [][2]string
	files  []formFile
}

func NewFormData() *FormData {
	return &FormData{}
}

func (f *FormData) Set(name, value string) {
	f.fields = append(f.fields, [2]string{name, value})
}

func (f *FormData) AddFile(field, filename string, content io.Reader) {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
}

func (f *FormData) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", fmt.Errorf("failed to read form file %s: %w", file.filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
