package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer fakes the subset of the backend the client talks to. Requests without the expected
// bearer token on protected routes get 401.
func testServer(t *testing.T, token string) *httptest.Server {
	mux := http.NewServeMux()

	authorized := func(req *http.Request) bool {
		return req.Header.Get("Authorization") == "Bearer "+token
	}
	writeJSON := func(rw http.ResponseWriter, code int, v interface{}) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		assert.NoError(t, json.NewEncoder(rw).Encode(v))
	}

	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			writeJSON(rw, http.StatusNotFound, map[string]interface{}{
				"status": 404, "error": "Not Found", "message": "Not found. Use /api/... from the UI (POST for login/register).",
			})
			return
		}
		fmt.Fprint(rw, "Shreddit backend is up")
	})
	mux.HandleFunc("/auth/login", func(rw http.ResponseWriter, req *http.Request) {
		var creds Credentials
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&creds))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		if creds.Username != "alice" || creds.Password != "secret" {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(rw, http.StatusOK, AuthResponse{Token: token, Username: creds.Username})
	})
	mux.HandleFunc("/auth/register", func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, http.StatusConflict, map[string]string{"error": "username already exists"})
	})
	mux.HandleFunc("/auth/me", func(rw http.ResponseWriter, req *http.Request) {
		if !authorized(req) {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
			return
		}
		writeJSON(rw, http.StatusOK, User{Username: "alice"})
	})
	mux.HandleFunc("/search", func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, http.StatusOK, []Document{{ID: 1, Title: "Result for " + req.URL.Query().Get("q")}})
	})
	mux.HandleFunc("/documents/upload", func(rw http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		file, header, err := req.FormFile("file")
		if !assert.NoError(t, err) {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		title := req.FormValue("title")
		if title == "" {
			title = header.Filename
		}
		writeJSON(rw, http.StatusCreated, UploadResult{ID: 7, Title: title, ObjectName: "alice/" + header.Filename, UploadedBy: "alice"})
	})
	mux.HandleFunc("/documents/download/", func(rw http.ResponseWriter, req *http.Request) {
		if !authorized(req) {
			rw.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(rw, "file contents")
	})
	mux.HandleFunc("/documents", func(rw http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeJSON(rw, http.StatusOK, []Document{{ID: 7, Title: "Invoice"}, {ID: 8, Title: "Receipt"}})
		case http.MethodPost:
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			var doc Document
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&doc))
			doc.ID = 9
			writeJSON(rw, http.StatusCreated, doc)
		default:
			rw.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/documents/7", func(rw http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeJSON(rw, http.StatusOK, Document{ID: 7, Title: "Invoice", Content: "total 42"})
		case http.MethodDelete:
			rw.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/documents/99999", func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "Document not found"})
	})
	mux.HandleFunc("/documents/7/comments", func(rw http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeJSON(rw, http.StatusOK, []Comment{{ID: 1, DocumentID: 7, Text: "first"}})
		case http.MethodPost:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			writeJSON(rw, http.StatusCreated, Comment{ID: 2, DocumentID: 7, Text: body["text"]})
		}
	})
	mux.HandleFunc("/comments/2", func(rw http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodDelete, req.Method)
		rw.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/documents/7/notes", func(rw http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeJSON(rw, http.StatusOK, []Note{{ID: 3, DocumentID: 7, Content: "remember"}})
		case http.MethodPost:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			writeJSON(rw, http.StatusCreated, Note{ID: 4, DocumentID: 7, Content: body["content"]})
		}
	})

	return httptest.NewServer(mux)
}

func newTestClient(ts *httptest.Server, storage Storage) *APIClient {
	return NewAPIClient(ts.URL+"/", NewDispatcher(ts.Client(), storage))
}

func TestAPIClient_String(t *testing.T) {
	client := NewAPIClient("http://localhost:8080/", nil)
	assert.Equal(t, "API Client{baseURL: http://localhost:8080}", client.String())
}

func TestAPIClient_Health(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()

	banner, err := newTestClient(ts, nil).Health(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "Shreddit backend is up", banner)
}

func TestAPIClient_Login(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, nil)

	tests := []struct {
		name       string
		username   string
		password   string
		wantToken  string
		wantErr    error
		wantStatus int
	}{
		{name: "Valid credentials return a token", username: " alice ", password: "secret", wantToken: "abc123"},
		{name: "Invalid credentials return 401", username: "alice", password: "wrong", wantStatus: http.StatusUnauthorized},
		{name: "Blank username is rejected locally", username: "  ", password: "secret", wantErr: ErrMissingCredentials},
		{name: "Blank password is rejected locally", username: "alice", password: "", wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := client.Login(context.Background(), tt.username, tt.password)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantStatus != 0:
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				assert.Equal(t, "invalid credentials", apiErr.Message)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, auth.Token)
				assert.Equal(t, "alice", auth.Username)
			}
		})
	}
}

func TestAPIClient_Register_Conflict(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()

	_, err := newTestClient(ts, nil).Register(context.Background(), "alice", "secret")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "API request error: StatusCode=409 Conflict, Message: username already exists", err.Error())
}

func TestAPIClient_Me(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()

	user, err := newTestClient(ts, tokenStorage("abc123")).Me(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = newTestClient(ts, failingStorage()).Me(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestAPIClient_Search(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()

	documents, err := newTestClient(ts, nil).Search(context.Background(), "tax & fees")
	assert.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "Result for tax & fees", documents[0].Title)
}

func TestAPIClient_UploadDocument(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, tokenStorage("abc123"))

	result, err := client.UploadDocument(context.Background(), "", "scan.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ID)
	assert.Equal(t, "scan.pdf", result.Title)
	assert.Equal(t, "alice/scan.pdf", result.ObjectName)

	result, err = client.UploadDocument(context.Background(), "Tax 2024", "scan.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Tax 2024", result.Title)
}

func TestAPIClient_DownloadDocument(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()

	body, size, err := newTestClient(ts, tokenStorage("abc123")).DownloadDocument(context.Background(), "alice/scan.pdf")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	assert.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
	assert.Equal(t, int64(len("file contents")), size)

	_, _, err = newTestClient(ts, nil).DownloadDocument(context.Background(), "alice/scan.pdf")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestAPIClient_Documents(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, tokenStorage("abc123"))
	ctx := context.Background()

	documents, err := client.ListDocuments(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []Document{{ID: 7, Title: "Invoice"}, {ID: 8, Title: "Receipt"}}, documents)

	document, err := client.GetDocument(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "total 42", document.Content)

	created, err := client.CreateDocument(ctx, "Notes", "some text")
	require.NoError(t, err)
	assert.Equal(t, Document{ID: 9, Title: "Notes", Content: "some text"}, *created)

	_, err = client.CreateDocument(ctx, " ", "some text")
	assert.ErrorIs(t, err, ErrBlankTitle)

	assert.NoError(t, client.DeleteDocument(ctx, 7))
}

func TestAPIClient_Documents_NotFound(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, nil)

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := client.GetDocument(context.Background(), 99999); return err }},
		{"delete", func() error { return client.DeleteDocument(context.Background(), 99999) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *APIError
			require.True(t, errors.As(tt.call(), &apiErr))
			assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
			assert.Equal(t, "Document not found", apiErr.Message)
		})
	}
}

func TestAPIClient_Comments(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, tokenStorage("abc123"))
	ctx := context.Background()

	comments, err := client.ListComments(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, []Comment{{ID: 1, DocumentID: 7, Text: "first"}}, comments)

	comment, err := client.AddComment(ctx, 7, "second")
	assert.NoError(t, err)
	assert.Equal(t, "second", comment.Text)

	_, err = client.AddComment(ctx, 7, "   ")
	assert.ErrorIs(t, err, ErrBlankComment)

	assert.NoError(t, client.DeleteComment(ctx, 2))
}

func TestAPIClient_Notes(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, nil)
	ctx := context.Background()

	notes, err := client.ListNotes(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, []Note{{ID: 3, DocumentID: 7, Content: "remember"}}, notes)

	note, err := client.AddNote(ctx, 7, "follow up")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), note.ID)
	assert.Equal(t, "follow up", note.Content)
}

func TestAPIClient_Fetch(t *testing.T) {
	ts := testServer(t, "abc123")
	defer ts.Close()
	client := newTestClient(ts, nil)

	for _, endpoint := range []string{"missing", "/missing", ts.URL + "/missing"} {
		resp, err := client.Fetch(context.Background(), endpoint, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		wantMsg string
		wantErr bool
	}{
		{name: "2xx is not an error", code: http.StatusNoContent},
		{name: "error field", code: http.StatusBadRequest, body: `{"error":"username and password required"}`, wantMsg: "username and password required", wantErr: true},
		{name: "message field wins", code: http.StatusNotFound, body: `{"error":"Not Found","message":"use /api"}`, wantMsg: "use /api", wantErr: true},
		{name: "plain text body", code: http.StatusBadRequest, body: "Please upload a file\n", wantMsg: "Please upload a file", wantErr: true},
		{name: "empty body", code: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.code,
				Status:     fmt.Sprintf("%d %s", tt.code, http.StatusText(tt.code)),
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			err := checkResponse(resp)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}
