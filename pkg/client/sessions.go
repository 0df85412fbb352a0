package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
)

const sessionsPath = "/api/v1/sessions"

// SessionsClient drives filing sessions.
type SessionsClient struct {
	client *Client
}

// UploadRequest describes a file to attach to a session.
type UploadRequest struct {
	Name      string
	MediaType string
	Category  string
	Content   io.Reader
}

func sessionPath(id string, parts ...string) string {
	p := sessionsPath + "/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Create starts a session. filingType may be empty to choose later.
func (s *SessionsClient) Create(ctx context.Context, filingType string) (*Session, error) {
	var body interface{}
	if filingType != "" {
		body = map[string]string{"filingType": filingType}
	}
	var out Session
	if err := s.client.post(ctx, sessionsPath, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the session with id.
func (s *SessionsClient) Get(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := s.client.get(ctx, sessionPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Discard drops a session without saving it.
func (s *SessionsClient) Discard(ctx context.Context, id string) error {
	return s.client.delete(ctx, sessionPath(id), nil)
}

// SelectFilingType sets the filing type of an unstarted session.
func (s *SessionsClient) SelectFilingType(ctx context.Context, id, filingType string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPut, sessionPath(id, "filing-type"), map[string]string{"filingType": filingType})
}

// Advance moves to the next step when the current one is complete.
func (s *SessionsClient) Advance(ctx context.Context, id string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "advance"), nil)
}

// Retreat moves to the previous step.
func (s *SessionsClient) Retreat(ctx context.Context, id string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "retreat"), nil)
}

// Reset clears the session back to unstarted.
func (s *SessionsClient) Reset(ctx context.Context, id string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "reset"), nil)
}

// MergeFields merges fields into the record. A nil value removes a field.
func (s *SessionsClient) MergeFields(ctx context.Context, id string, fields map[string]interface{}) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPatch, sessionPath(id, "record"), fields)
}

// Import replaces the record with doc.
func (s *SessionsClient) Import(ctx context.Context, id string, doc Document) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "import"), doc)
}

// Export returns the record as a portable document.
func (s *SessionsClient) Export(ctx context.Context, id string) (*Document, error) {
	var out Document
	if err := s.client.get(ctx, sessionPath(id, "export"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks step; step <= 0 checks the current step.
func (s *SessionsClient) Validate(ctx context.Context, id string, step int) (*StepResult, error) {
	path := sessionPath(id, "validate")
	if step > 0 {
		path += "?step=" + strconv.Itoa(step)
	}
	var out StepResult
	if err := s.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report returns the compliance report of the record.
func (s *SessionsClient) Report(ctx context.Context, id string) (*ComplianceReport, error) {
	var out ComplianceReport
	if err := s.client.get(ctx, sessionPath(id, "report"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestSuggestions starts a background suggestion task for field.
func (s *SessionsClient) RequestSuggestions(ctx context.Context, id, field string, autoApply bool) (*Mutation, error) {
	body := map[string]interface{}{"field": field, "autoApply": autoApply}
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "suggestions"), body)
}

// GenerateDocument starts a background document task for kind.
func (s *SessionsClient) GenerateDocument(ctx context.Context, id, kind string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodPost, sessionPath(id, "documents"), map[string]string{"kind": kind})
}

// Upload attaches a file to the session.
func (s *SessionsClient) Upload(ctx context.Context, id string, up UploadRequest) (*Mutation, error) {
	if up.Content == nil {
		return nil, fmt.Errorf("upload %q has no content", up.Name)
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("category", up.Category); err != nil {
		return nil, err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.Name))
	mediaType := up.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, fmt.Errorf("failed to read upload %q: %w", up.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out Mutation
	err = s.client.send(ctx, request{
		method:      http.MethodPost,
		path:        sessionPath(id, "uploads"),
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveUpload detaches an upload.
func (s *SessionsClient) RemoveUpload(ctx context.Context, id, uploadID string) (*Mutation, error) {
	return s.mutate(ctx, http.MethodDelete, sessionPath(id, "uploads", url.PathEscape(uploadID)), nil)
}

// Save persists the session as an application.
func (s *SessionsClient) Save(ctx context.Context, id string) (*Application, error) {
	var out Application
	if err := s.client.post(ctx, sessionPath(id, "save"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionsClient) mutate(ctx context.Context, method, path string, body interface{}) (*Mutation, error) {
	var out Mutation
	if err := s.client.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//Personal.AI order the ending
