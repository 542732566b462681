package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"task-receiver/internal/config"
	"task-receiver/internal/github"
	"task-receiver/internal/models"
)

// maxAttachmentBytes caps a single attachment download.
const maxAttachmentBytes = int64(10 << 20)

// notifyAttempts bounds completion-notice delivery to the evaluator.
const notifyAttempts = 3

// Generator produces site content from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Publisher provisions a repository and uploads generated files.
type Publisher interface {
	EnsureRepo(ctx context.Context, name, description string) (github.Repo, error)
	PutFile(ctx context.Context, repo, path, message string, data []byte) (string, error)
	EnablePages(ctx context.Context, repo, branch string) error
}

// Solver is the production job handler: it turns a submission brief into a
// static site, publishes it to GitHub Pages, and notifies the evaluator.
type Solver struct {
	cfg        config.Config
	logger     *slog.Logger
	generator  Generator
	publisher  Publisher
	httpClient *http.Client
}

// NewSolver wires the solver against real or test collaborators.
func NewSolver(cfg config.Config, logger *slog.Logger, gen Generator, pub Publisher) *Solver {
	return &Solver{
		cfg:        cfg,
		logger:     logger,
		generator:  gen,
		publisher:  pub,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type completionNotice struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Handle solves one submission end to end. Every step honors ctx so a
// shutdown can abort mid-pipeline.
func (s *Solver) Handle(ctx context.Context, sub models.TaskSubmission) error {
	s.logger.Info("processing task", "task", sub.Task, "round", sub.Round)

	attachments, err := s.fetchAttachments(ctx, sub.Attachments)
	if err != nil {
		return fmt.Errorf("fetch attachments: %w", err)
	}

	raw, err := s.generator.Generate(ctx, buildPrompt(sub, attachments))
	if err != nil {
		return fmt.Errorf("generate site: %w", err)
	}
	page := extractHTML(raw)

	repoName := repoNameFor(sub.Task)
	repo, err := s.publisher.EnsureRepo(ctx, repoName, "Generated site for task "+sub.Task)
	if err != nil {
		return err
	}
	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	commitMsg := fmt.Sprintf("Publish round %d", sub.Round)
	for _, att := range attachments {
		if _, err := s.publisher.PutFile(ctx, repoName, att.Name, commitMsg, att.Data); err != nil {
			return err
		}
	}
	commit, err := s.publisher.PutFile(ctx, repoName, "index.html", commitMsg, []byte(page))
	if err != nil {
		return err
	}
	if err := s.publisher.EnablePages(ctx, repoName, branch); err != nil {
		return err
	}

	pagesURL := s.pagesURL(repoName)
	if sub.EvaluationURL != "" {
		if err := s.notifyEvaluator(ctx, sub, repo.HTMLURL, commit, pagesURL); err != nil {
			return fmt.Errorf("notify evaluator: %w", err)
		}
	}

	s.logger.Info("finished task", "task", sub.Task, "repo", repo.HTMLURL, "pages", pagesURL)
	return nil
}

func (s *Solver) pagesURL(repoName string) string {
	base := strings.TrimRight(s.cfg.GithubPagesBase, "/")
	return base + "/" + repoName + "/"
}

func (s *Solver) fetchAttachments(ctx context.Context, list []models.Attachment) ([]attachment, error) {
	out := make([]attachment, 0, len(list))
	for _, a := range list {
		data, contentType, err := s.fetchOne(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		out = append(out, attachment{Name: sanitizeName(a.Name), ContentType: contentType, Data: data})
	}
	return out, nil
}

func (s *Solver) fetchOne(ctx context.Context, a models.Attachment) ([]byte, string, error) {
	if strings.HasPrefix(a.URL, "data:") {
		return decodeDataURI(a.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxAttachmentBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxAttachmentBytes {
		return nil, "", fmt.Errorf("attachment too large (>%d bytes)", maxAttachmentBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// notifyEvaluator posts the completion notice, retrying a couple of times
// because the evaluation endpoint may come up after the task is dispatched.
func (s *Solver) notifyEvaluator(ctx context.Context, sub models.TaskSubmission, repoURL, commit, pagesURL string) error {
	payload, err := json.Marshal(completionNotice{
		Email:     sub.Email,
		Task:      sub.Task,
		Round:     sub.Round,
		Nonce:     sub.Nonce,
		RepoURL:   repoURL,
		CommitSHA: commit,
		PagesURL:  pagesURL,
	})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= notifyAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.EvaluationURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build notice request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode < http.StatusMultipleChoices {
			return nil
		}
		lastErr = fmt.Errorf("evaluator returned status %d", resp.StatusCode)
	}
	return lastErr
}

func buildPrompt(sub models.TaskSubmission, attachments []attachment) string {
	var b strings.Builder
	b.WriteString("Build a complete, self-contained index.html page that fulfils the brief below.\n")
	b.WriteString("Return only the HTML document with inline CSS and JavaScript, no commentary.\n\n")
	fmt.Fprintf(&b, "Task: %s (round %d)\n\nBrief:\n%s\n", sub.Task, sub.Round, sub.Brief)
	for _, att := range attachments {
		if isTextual(att.ContentType, att.Data) {
			fmt.Fprintf(&b, "\nAttachment %s:\n%s\n", att.Name, att.Data)
		} else {
			fmt.Fprintf(&b, "\nAttachment %s (%s, %d bytes) is published next to index.html; reference it by relative path.\n", att.Name, att.ContentType, len(att.Data))
		}
	}
	return b.String()
}

// extractHTML unwraps the fenced code block the model sometimes returns
// instead of a bare document.
func extractHTML(out string) string {
	trimmed := strings.TrimSpace(out)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data uri")
	}
	contentType := meta
	if strings.HasSuffix(meta, ";base64") {
		contentType = strings.TrimSuffix(meta, ";base64")
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode base64 payload: %w", err)
		}
		return raw, defaultContentType(contentType), nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("unescape payload: %w", err)
	}
	return []byte(unescaped), defaultContentType(contentType), nil
}

func defaultContentType(ct string) string {
	if ct == "" {
		return "text/plain"
	}
	return ct
}

func isTextual(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.Contains(ct, "json"), strings.Contains(ct, "xml"), strings.Contains(ct, "csv"):
		return true
	}
	return ct == "" && utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}

// sanitizeName confines an attachment name to a safe repository path.
func sanitizeName(name string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+name), "/")
	if cleaned == "" || cleaned == "." {
		return "attachment"
	}
	return cleaned
}

// repoNameFor derives a stable repository name from the task identifier,
// so later rounds of the same task update the same repository.
func repoNameFor(task string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(task) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "task-site"
	}
	if len(name) > 60 {
		name = strings.Trim(name[:60], "-")
	}
	return name
}
