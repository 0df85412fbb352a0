package client

import (
	"context"
	"net/url"
)

const applicationsPath = "/api/v1/applications"

// ApplicationsClient reads and manages saved applications.
type ApplicationsClient struct {
	client *Client
}

func applicationPath(id string, parts ...string) string {
	p := applicationsPath + "/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// List returns the caller's applications. Admins may pass another owner.
func (a *ApplicationsClient) List(ctx context.Context, owner string) (*ApplicationList, error) {
	path := applicationsPath
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out ApplicationList
	if err := a.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the application with id.
func (a *ApplicationsClient) Get(ctx context.Context, id string) (*Application, error) {
	var out Application
	if err := a.client.get(ctx, applicationPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the application with id.
func (a *ApplicationsClient) Delete(ctx context.Context, id string) error {
	return a.client.delete(ctx, applicationPath(id), nil)
}

// Resume opens a new session from the application.
func (a *ApplicationsClient) Resume(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := a.client.post(ctx, applicationPath(id, "resume"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//Personal.AI order the ending
