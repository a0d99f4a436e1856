package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL  = "https://firestore.googleapis.com/v1"
	DefaultDatabase = "(default)"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 300

	maxErrorBody = 512
)

var (
	ErrConfiguration = errors.New("docstore: configuration error")
	ErrUnavailable   = errors.New("docstore: store unavailable")
	ErrNotFound      = errors.New("docstore: document not found")
)

// Store is the subset of the client the order layer depends on.
type Store interface {
	ListCollection(ctx context.Context, collection string) ([]Document, error)
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]Value) error
}

type Options struct {
	BaseURL   string
	ProjectID string
	Database  string
	Timeout   time.Duration
	PageSize  int
	Tokens    oauth2.TokenSource
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base http.RoundTripper
}

type Client struct {
	http      *http.Client
	baseURL   string
	projectID string
	database  string
	pageSize  int
}

func NewClient(opts Options) (*Client, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id is empty", ErrConfiguration)
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token source is nil", ErrConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: opts.Tokens, Base: base},
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		projectID: opts.ProjectID,
		database:  opts.Database,
		pageSize:  opts.PageSize,
	}, nil
}

func (c *Client) ProjectID() string { return c.projectID }

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/projects/%s/databases/%s/documents/%s",
		c.baseURL, url.PathEscape(c.projectID), c.database, url.PathEscape(collection))
}

func (c *Client) documentURL(collection, id string) string {
	return c.collectionURL(collection) + "/" + url.PathEscape(id)
}

type wireDocument struct {
	Name       string           `json:"name"`
	Fields     map[string]Value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

func (w wireDocument) toDocument() Document {
	doc := Document{
		ID:     path.Base(w.Name),
		Name:   w.Name,
		Fields: w.Fields,
	}
	if doc.Fields == nil {
		doc.Fields = map[string]Value{}
	}
	if t, err := time.Parse(time.RFC3339Nano, w.CreateTime); err == nil {
		doc.CreateTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, w.UpdateTime); err == nil {
		doc.UpdateTime = t
	}
	return doc
}

type listResponse struct {
	Documents     []wireDocument `json:"documents"`
	NextPageToken string         `json:"nextPageToken"`
}

// ListCollection reads every document of the collection, following page tokens.
func (c *Client) ListCollection(ctx context.Context, collection string) ([]Document, error) {
	var (
		docs      []Document
		pageToken string
	)
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		body, err := c.do(ctx, http.MethodGet, c.collectionURL(collection)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: decode list of %s: %v", ErrUnavailable, collection, err)
		}
		for _, w := range page.Documents {
			docs = append(docs, w.toDocument())
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	log.Debug().Str("collection", collection).Int("documents", len(docs)).Msg("docstore: collection listed")
	return docs, nil
}

// GetDocument returns ErrNotFound when the document is missing or has no fields.
func (c *Client) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	body, err := c.do(ctx, http.MethodGet, c.documentURL(collection, id), nil)
	if err != nil {
		return nil, err
	}

	var w wireDocument
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: decode document %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	if len(w.Fields) == 0 {
		return nil, ErrNotFound
	}

	doc := w.toDocument()
	if doc.ID == "" || doc.ID == "." {
		doc.ID = id
	}
	return &doc, nil
}

// UpdateDocument patches only the given fields and requires the document to exist.
func (c *Client) UpdateDocument(ctx context.Context, collection, id string, fields map[string]Value) error {
	if len(fields) == 0 {
		return nil
	}

	q := url.Values{}
	for _, p := range FieldPaths(fields) {
		q.Add("updateMask.fieldPaths", p)
	}
	q.Set("currentDocument.exists", "true")

	payload, err := json.Marshal(struct {
		Fields map[string]Value `json:"fields"`
	}{Fields: fields})
	if err != nil {
		return fmt.Errorf("docstore: encode patch for %s/%s: %w", collection, id, err)
	}

	_, err = c.do(ctx, http.MethodPatch, c.documentURL(collection, id)+"?"+q.Encode(), payload)
	return err
}

// Ping lists a single document of the collection to check reachability and credentials.
func (c *Client) Ping(ctx context.Context, collection string) error {
	q := url.Values{}
	q.Set("pageSize", "1")
	_, err := c.do(ctx, http.MethodGet, c.collectionURL(collection)+"?"+q.Encode(), nil)
	if errors.Is(err, ErrNotFound) {
		// пустая коллекция это не ошибка
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("docstore: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, redact(target), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s: status %d: %s",
			ErrUnavailable, method, redact(target), resp.StatusCode, truncate(respBody))
	}
	return respBody, nil
}

func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
