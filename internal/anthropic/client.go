// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package anthropic is a small client for the Messages API with citations
// enabled. It sends caller-supplied documents together with a prompt and
// normalizes the response, batch or streamed, into the types the cite
// package formats.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultBaseURL is the Messages API endpoint.
const DefaultBaseURL = "https://api.anthropic.com/v1/messages"

const apiVersion = "2023-06-01"

// ErrAPI is matched by every *APIError.
var ErrAPI = errors.New("messages API error")

// APIError is a non-2xx response from the Messages API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("messages API returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("messages API returned %d (%s): %s", e.Status, e.Type, e.Message)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// Document is a source document attached to a request. When Pages is set
// each page becomes one content block of the document, so the API can cite
// pages by block index; otherwise Text is sent as a plain-text document.
type Document struct {
	Title   string
	Context string
	Text    string
	Pages   []types.Page
}

// Request is one question over a set of documents.
type Request struct {
	// Model overrides the client's model. Display names are resolved with
	// types.ResolveModel.
	Model string

	// MaxTokens overrides the client's limit.
	MaxTokens int

	System    string
	Documents []Document
	Prompt    string
	Sampling  types.SamplingConfig
}

// Client calls the Messages API.
type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	UserAgent  string
	HTTP       *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg types.AIConfig) *Client {
	return &Client{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
		HTTP:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Send performs a non-streaming request and returns the normalized response.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return DecodeMessage(resp.Body)
}

// Stream performs a streaming request and calls fn with every normalized
// event as it arrives. It returns when the stream ends, fn returns an error
// or ctx is cancelled. An upstream error event is delivered to fn like any
// other event and does not make Stream fail.
func (c *Client) Stream(ctx context.Context, req Request, fn func(types.StreamEvent) error) error {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := DecodeEvents(resp.Body, fn); err != nil {
		return fmt.Errorf("streaming response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	body, err := c.buildRequest(req, stream)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.BaseURL
	if url == "" {
		url = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, httpReq, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling messages API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
	var body wireErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		apiErr.Type = body.Error.Type
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

// buildRequest lays out the user turn as every document (citations
// enabled) followed by the prompt text.
func (c *Client) buildRequest(req Request, stream bool) (wireRequest, error) {
	if req.Prompt == "" {
		return wireRequest{}, errors.New("building request: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = c.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = types.DefaultMaxTokens
	}

	content := make([]wireInput, 0, len(req.Documents)+1)
	for _, d := range req.Documents {
		content = append(content, documentInput(d))
	}
	content = append(content, wireInput{Type: "text", Text: req.Prompt})

	return wireRequest{
		Model:       types.ResolveModel(model),
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []wireMessage{{Role: "user", Content: content}},
		Stream:      stream,
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		TopK:        req.Sampling.TopK,
	}, nil
}

func documentInput(d Document) wireInput {
	in := wireInput{
		Type:      "document",
		Title:     d.Title,
		Context:   d.Context,
		Citations: &wireCiteOptions{Enabled: true},
	}
	if len(d.Pages) == 0 {
		in.Source = &wireSource{Type: "text", MediaType: "text/plain", Data: d.Text}
		return in
	}
	pages := make([]wireInput, len(d.Pages))
	for i, p := range d.Pages {
		pages[i] = wireInput{Type: "text", Text: p.Text}
	}
	in.Source = &wireSource{Type: "content", Content: pages}
	return in
}

// DocumentsFromSources converts stored question sources into request
// documents, one page per content block.
func DocumentsFromSources(sources []types.Source) []Document {
	docs := make([]Document, len(sources))
	for i, s := range sources {
		docs[i] = Document{
			Title:   s.Title,
			Context: "Document from source materials: " + s.Title,
			Pages:   s.Pages,
		}
	}
	return docs
}
