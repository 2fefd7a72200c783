// Package batchapi wraps the OpenAI Batch API as the pipeline's external
// job collaborator: submit request groups, poll until terminal, download
// raw reply blobs. The reconciliation core stays agnostic to everything in
// here.
package batchapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Request is one request group destined for the provider, keyed by the
// batch id it answers to.
type Request struct {
	GroupID string
	System  string
	User    string
}

// Status is the collaborator-level job state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job will not change state anymore.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// JobStatus is a typed poll result. ErrorFileID is empty when the provider
// reported no error file.
type JobStatus struct {
	JobID        string
	Status       Status
	OutputFileID string
	ErrorFileID  string
	Completed    int
	Failed       int
	Total        int
}

// Config carries provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client talks to the OpenAI Files and Batches endpoints.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// NewClient builds a collaborator client. An empty BaseURL keeps the
// provider default.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4o
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16000
	}
	return &Client{api: openai.NewClientWithConfig(apiCfg), model: model, maxTokens: maxTokens}, nil
}

// Submit uploads the request JSONL and creates the batch job, returning
// the provider's job handle.
func (c *Client) Submit(ctx context.Context, reqs []Request) (string, error) {
	if len(reqs) == 0 {
		return "", errors.New("no requests to submit")
	}
	payload, err := BuildRequestLines(reqs, c.model, c.maxTokens)
	if err != nil {
		return "", err
	}

	file, err := c.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    "batch_requests.jsonl",
		Bytes:   payload,
		Purpose: openai.PurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("upload batch file: %w", err)
	}

	job, err := c.api.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: "24h",
	})
	if err != nil {
		return "", fmt.Errorf("create batch job: %w", err)
	}
	return job.ID, nil
}

// Poll retrieves the current job state.
func (c *Client) Poll(ctx context.Context, jobID string) (JobStatus, error) {
	job, err := c.api.RetrieveBatch(ctx, jobID)
	if err != nil {
		return JobStatus{}, fmt.Errorf("retrieve batch %s: %w", jobID, err)
	}

	status := JobStatus{
		JobID:     job.ID,
		Status:    mapStatus(job.Status),
		Completed: job.RequestCounts.Completed,
		Failed:    job.RequestCounts.Failed,
		Total:     job.RequestCounts.Total,
	}
	if job.OutputFileID != nil {
		status.OutputFileID = *job.OutputFileID
	}
	if job.ErrorFileID != nil {
		status.ErrorFileID = *job.ErrorFileID
	}
	return status, nil
}

// Wait polls at the given interval until the job reaches a terminal state.
// Batch jobs routinely run for hours; the interval belongs to the caller
// and cancellation arrives through ctx.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration, onPoll func(JobStatus)) (JobStatus, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	for {
		status, err := c.Poll(ctx, jobID)
		if err != nil {
			return JobStatus{}, err
		}
		if onPoll != nil {
			onPoll(status)
		}
		if status.Status.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return JobStatus{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// FetchResults downloads the output file and parses it into a group_id ->
// reply content mapping.
func (c *Client) FetchResults(ctx context.Context, fileID string) (map[string]string, error) {
	raw, err := c.api.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("download results %s: %w", fileID, err)
	}
	defer raw.Close()

	replies, _, err := ParseReplies(raw)
	return replies, err
}

// FetchErrors downloads the provider's error file, when one exists.
func (c *Client) FetchErrors(ctx context.Context, fileID string) (string, error) {
	raw, err := c.api.GetFileContent(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("download errors %s: %w", fileID, err)
	}
	defer raw.Close()

	body, err := io.ReadAll(raw)
	if err != nil {
		return "", fmt.Errorf("read errors %s: %w", fileID, err)
	}
	return string(body), nil
}

func mapStatus(s string) Status {
	switch s {
	case "validating":
		return StatusPending
	case "in_progress", "finalizing", "cancelling":
		return StatusRunning
	case "completed":
		return StatusCompleted
	case "failed", "expired", "cancelled":
		return StatusFailed
	default:
		return StatusRunning
	}
}

// requestLine is one JSONL entry of the batch input file. The body is
// written explicitly, rather than through the SDK request type, so that
// temperature 0 actually reaches the wire.
type requestLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     requestBody `json:"body"`
}

type requestBody struct {
	Model       string           `json:"model"`
	Messages    []requestMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestLines serializes request groups into the batch input JSONL.
func BuildRequestLines(reqs []Request, model string, maxTokens int) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range reqs {
		if strings.TrimSpace(r.GroupID) == "" {
			return nil, errors.New("request group id is empty")
		}
		line := requestLine{
			CustomID: r.GroupID,
			Method:   "POST",
			URL:      string(openai.BatchEndpointChatCompletions),
			Body: requestBody{
				Model:       model,
				Temperature: 0,
				MaxTokens:   maxTokens,
				Messages: []requestMessage{
					{Role: "system", Content: r.System},
					{Role: "user", Content: r.User},
				},
			},
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode request %s: %w", r.GroupID, err)
		}
	}
	return buf.Bytes(), nil
}

// replyLine mirrors one entry of the batch output JSONL.
type replyLine struct {
	CustomID string          `json:"custom_id"`
	Error    json.RawMessage `json:"error"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
}

// ParseReplies reads a batch output JSONL stream and returns group_id ->
// reply content. Entries carrying a provider error, a non-200 status, or
// no message content map to empty content; malformed lines are skipped.
// The second result counts entries that yielded no content. A bad line
// never aborts the parse.
func ParseReplies(r io.Reader) (map[string]string, int, error) {
	replies := map[string]string{}
	failed := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry replyLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			failed++
			continue
		}
		if entry.CustomID == "" {
			failed++
			continue
		}
		content, ok := replyContent(entry)
		if !ok {
			replies[entry.CustomID] = ""
			failed++
			continue
		}
		replies[entry.CustomID] = content
	}
	if err := scanner.Err(); err != nil {
		return nil, failed, fmt.Errorf("read replies: %w", err)
	}
	return replies, failed, nil
}

func replyContent(entry replyLine) (string, bool) {
	if len(entry.Error) > 0 && !bytes.Equal(entry.Error, []byte("null")) {
		return "", false
	}
	if entry.Response == nil {
		return "", false
	}
	if entry.Response.StatusCode != 0 && entry.Response.StatusCode != 200 {
		return "", false
	}
	if len(entry.Response.Body.Choices) == 0 {
		return "", false
	}
	content := entry.Response.Body.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}
