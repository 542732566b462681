package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// Repo is the subset of repository metadata the publisher needs.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// EnsureRepo creates a public repository under the authenticated user,
// returning the existing one when the name is already taken.
func (c *Client) EnsureRepo(ctx context.Context, name, description string) (Repo, error) {
	var repo Repo
	err := c.do(ctx, http.MethodPost, "/user/repos", map[string]any{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   true,
	}, &repo)
	if err == nil {
		return repo, nil
	}
	if !IsAlreadyExists(err) {
		return Repo{}, fmt.Errorf("create repository %s: %w", name, err)
	}
	if getErr := c.do(ctx, http.MethodGet, "/repos/"+c.owner+"/"+name, nil, &repo); getErr != nil {
		return Repo{}, fmt.Errorf("fetch existing repository %s: %w", name, getErr)
	}
	return repo, nil
}

// PutFile creates or updates path in repo on its default branch and returns
// the commit SHA. An existing file needs its blob SHA sent back, so updates
// cost one extra GET.
func (c *Client) PutFile(ctx context.Context, repo, path, message string, data []byte) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, path)

	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(data),
	}
	var existing struct {
		SHA string `json:"sha"`
	}
	switch err := c.do(ctx, http.MethodGet, endpoint, nil, &existing); {
	case err == nil && existing.SHA != "":
		body["sha"] = existing.SHA
	case err == nil || IsNotFound(err):
		// New file.
	default:
		return "", fmt.Errorf("check existing %s: %w", path, err)
	}

	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := c.do(ctx, http.MethodPut, endpoint, body, &out); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return out.Commit.SHA, nil
}

// EnablePages turns on GitHub Pages for repo, serving branch from the
// repository root. Pages already being enabled is not an error.
func (c *Client) EnablePages(ctx context.Context, repo, branch string) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo), map[string]any{
		"source": map[string]string{"branch": branch, "path": "/"},
	}, nil)
	if err == nil || IsConflict(err) || IsAlreadyExists(err) {
		return nil
	}
	return fmt.Errorf("enable pages on %s: %w", repo, err)
}
