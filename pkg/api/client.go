package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deadpyxel/shreddit-client/internal/log"
)

type APIClient struct {
	baseURL    string
	dispatcher *Dispatcher
}

func (client APIClient) String() string {
	return fmt.Sprintf("API Client{baseURL: %s}", client.baseURL)
}

func NewAPIClient(baseURL string, dispatcher *Dispatcher) *APIClient {
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), dispatcher: dispatcher}
}

func (client *APIClient) makeRequest(ctx context.Context, endpoint string, opts *Options) (*http.Response, error) {
	method := http.MethodGet
	if opts != nil && opts.Method != "" {
		method = opts.Method
	}
	log.Debug("sending request", "method", method, "endpoint", endpoint)
	return client.dispatcher.Fetch(ctx, client.baseURL+endpoint, opts)
}

// fetchAndDecode sends the request and decodes a 2xx JSON body into targetType. A nil
// targetType discards the body.
func (client *APIClient) fetchAndDecode(ctx context.Context, endpoint string, opts *Options, targetType interface{}) error {
	response, err := client.makeRequest(ctx, endpoint, opts)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := checkResponse(response); err != nil {
		return err
	}
	if targetType == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, targetType)
	if err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}

	return nil
}

// checkResponse turns a non-2xx response into an *APIError. The body is consumed in that case.
func checkResponse(response *http.Response) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: response.StatusCode, Status: response.Status}

	body, err := io.ReadAll(response.Body)
	if err == nil && len(body) > 0 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

func jsonOptions(method string, payload interface{}) (*Options, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Options{Method: method, Body: string(data)}, nil
}

// Health returns the banner served on the backend root.
func (client *APIClient) Health(ctx context.Context) (string, error) {
	response, err := client.makeRequest(ctx, "/", nil)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if err := checkResponse(response); err != nil {
		return "", err
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

var ErrMissingCredentials = errors.New("username and password required")

func (client *APIClient) authenticate(ctx context.Context, endpoint, username, password string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingCredentials
	}
	opts, err := jsonOptions(http.MethodPost, Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	var auth AuthResponse
	err = client.fetchAndDecode(ctx, endpoint, opts, &auth)
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (client *APIClient) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	return client.authenticate(ctx, "/auth/register", username, password)
}

func (client *APIClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return client.authenticate(ctx, "/auth/login", username, password)
}

// Me returns the user the stored token belongs to.
func (client *APIClient) Me(ctx context.Context) (*User, error) {
	var user User
	err := client.fetchAndDecode(ctx, "/auth/me", nil, &user)
	return &user, err
}

func (client *APIClient) ListDocuments(ctx context.Context) ([]Document, error) {
	var documents []Document
	err := client.fetchAndDecode(ctx, "/documents", nil, &documents)
	return documents, err
}

func (client *APIClient) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	endpoint := fmt.Sprintf("/documents/%d", documentID)
	var document Document
	err := client.fetchAndDecode(ctx, endpoint, nil, &document)
	if err != nil {
		return nil, err
	}
	return &document, nil
}

var ErrBlankTitle = errors.New("document title must not be blank")

// CreateDocument stores a text document without a file behind it.
func (client *APIClient) CreateDocument(ctx context.Context, title, content string) (*Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrBlankTitle
	}
	opts, err := jsonOptions(http.MethodPost, Document{Title: title, Content: content})
	if err != nil {
		return nil, err
	}
	var document Document
	err = client.fetchAndDecode(ctx, "/documents", opts, &document)
	if err != nil {
		return nil, err
	}
	return &document, nil
}

func (client *APIClient) DeleteDocument(ctx context.Context, documentID int64) error {
	endpoint := fmt.Sprintf("/documents/%d", documentID)
	return client.fetchAndDecode(ctx, endpoint, &Options{Method: http.MethodDelete}, nil)
}

func (client *APIClient) Search(ctx context.Context, query string) ([]Document, error) {
	endpoint := "/search?q=" + url.QueryEscape(query)
	var documents []Document
	err := client.fetchAndDecode(ctx, endpoint, nil, &documents)
	return documents, err
}

// UploadDocument sends content as the multipart "file" field. An empty title lets the backend
// fall back to the file name.
func (client *APIClient) UploadDocument(ctx context.Context, title, filename string, content io.Reader) (*UploadResult, error) {
	form := NewFormData()
	if title != "" {
		form.Set("title", title)
	}
	form.AddFile("file", filename, content)

	var result UploadResult
	err := client.fetchAndDecode(ctx, "/documents/upload", &Options{Method: http.MethodPost, Body: form}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadDocument returns the object body and its length (-1 when unknown). The caller closes it.
func (client *APIClient) DownloadDocument(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	endpoint := "/documents/download/" + url.PathEscape(name)
	response, err := client.makeRequest(ctx, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if err := checkResponse(response); err != nil {
		response.Body.Close()
		return nil, 0, err
	}
	return response.Body, response.ContentLength, nil
}

func (client *APIClient) ListComments(ctx context.Context, documentID int64) ([]Comment, error) {
	endpoint := fmt.Sprintf("/documents/%d/comments", documentID)
	var comments []Comment
	err := client.fetchAndDecode(ctx, endpoint, nil, &comments)
	return comments, err
}

var ErrBlankComment = errors.New("comment text must not be blank")

func (client *APIClient) AddComment(ctx context.Context, documentID int64, text string) (*Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlankComment
	}
	endpoint := fmt.Sprintf("/documents/%d/comments", documentID)
	opts, err := jsonOptions(http.MethodPost, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var comment Comment
	err = client.fetchAndDecode(ctx, endpoint, opts, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (client *APIClient) DeleteComment(ctx context.Context, commentID int64) error {
	endpoint := fmt.Sprintf("/comments/%d", commentID)
	return client.fetchAndDecode(ctx, endpoint, &Options{Method: http.MethodDelete}, nil)
}

func (client *APIClient) ListNotes(ctx context.Context, documentID int64) ([]Note, error) {
	endpoint := fmt.Sprintf("/documents/%d/notes", documentID)
	var notes []Note
	err := client.fetchAndDecode(ctx, endpoint, nil, &notes)
	return notes, err
}

func (client *APIClient) AddNote(ctx context.Context, documentID int64, content string) (*Note, error) {
	endpoint := fmt.Sprintf("/documents/%d/notes", documentID)
	opts, err := jsonOptions(http.MethodPost, map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	var note Note
	err = client.fetchAndDecode(ctx, endpoint, opts, &note)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Fetch exposes the dispatcher for endpoints without a typed method. endpoint is relative to
// the base URL unless it is absolute.
func (client *APIClient) Fetch(ctx context.Context, endpoint string, opts *Options) (*http.Response, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return client.dispatcher.Fetch(ctx, endpoint, opts)
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return client.makeRequest(ctx, endpoint, opts)
}
