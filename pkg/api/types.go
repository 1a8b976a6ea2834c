package api

import "fmt"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type User struct {
	Username string `json:"username"`
}

type Document struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UploadResult is what the backend answers to a multipart upload.
type UploadResult struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	CreatedAt  string `json:"createdAt"`
	Filename   string `json:"filename"`
	ObjectName string `json:"objectName"` // storage object name, used for downloads
	Bucket     string `json:"bucket"`
	UploadedBy string `json:"uploadedBy"`
}

type Comment struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"documentId"`
	Text       string `json:"text"`
	Author     string `json:"author,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

type Note struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"documentId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// APIError is returned by APIClient for any non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request error: StatusCode=%s", e.Status)
	}
	return fmt.Sprintf("API request error: StatusCode=%s, Message: %s", e.Status, e.Message)
}

// errorBody covers both error shapes the backend emits.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
