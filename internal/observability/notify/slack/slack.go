// Package slack posts pipeline failure notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/target/repodoc/internal/observability/notify"
)

// Config configures the webhook client.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Backoff is the base delay between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
}

// Client delivers failure notifications. It implements notify.Sink.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	backoff    time.Duration
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "repodoc"
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		retryLimit: max(cfg.RetryLimit, 0),
		backoff:    backoff,
		client:     hc,
	}, nil
}

// SendJobFailure posts payload, retrying non-2xx responses and transport errors.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryLimit; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(lastErr, ctx.Err())
			case <-timer.C:
			}
		}
		if lastErr = c.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
}

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks,omitempty"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) text { return text{Type: "mrkdwn", Text: s} }

// buildMessage renders the payload as Block Kit with a plain-text fallback.
func (c *Client) buildMessage(p notify.JobFailurePayload) message {
	occurred := p.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	severity := p.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}

	headline := "*Pipeline failure*"
	if p.FailedStage != "" {
		headline += " at `" + p.FailedStage + "`"
	}
	repo := formatRepositoryValue(p.Repository, p.SourceURL)

	var fields []text
	for _, f := range [][2]string{
		{"Repository", repo},
		{"Severity", severity},
		{"Reference", escape(p.ReferenceID)},
		{"Job", codeSpan(p.JobID)},
		{"Error class", codeSpan(p.ErrorClass)},
	} {
		if strings.TrimSpace(f[1]) != "" {
			fields = append(fields, mrkdwn("*"+f[0]+"*\n"+f[1]))
		}
	}

	blocks := []block{{Type: "section", Text: &text{Type: "mrkdwn", Text: headline}, Fields: fields}}
	if p.Error != "" {
		blocks = append(blocks, block{Type: "section", Text: &text{Type: "mrkdwn", Text: "```" + escape(p.Error) + "```"}})
	}
	if summary := stageSummary(p.Stages); summary != "" {
		blocks = append(blocks, block{Type: "section", Text: &text{Type: "mrkdwn", Text: summary}})
	}
	blocks = append(blocks, block{Type: "context", Elements: contextElements(p.Metadata, occurred)})

	fallback := fmt.Sprintf("Pipeline failure: %s", strings.TrimSpace(p.Repository))
	if p.FailedStage != "" {
		fallback += " at " + p.FailedStage
	}
	if p.Error != "" {
		fallback += ": " + p.Error
	}
	return message{Text: fallback, Username: c.username, Channel: c.channel, Blocks: blocks}
}

func stageSummary(lines []notify.StageLine) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s `%s` %s", stageIcon(l.Status), l.Stage, l.Status)
	}
	return b.String()
}

func stageIcon(status string) string {
	switch status {
	case "completed":
		return ":white_check_mark:"
	case "failed":
		return ":x:"
	case "skipped":
		return ":fast_forward:"
	default:
		return ":hourglass:"
	}
}

func contextElements(metadata map[string]string, occurred time.Time) []text {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]text, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, mrkdwn(escape(k)+": "+escape(metadata[k])))
	}
	return append(out, mrkdwn(occurred.UTC().Format(time.RFC3339)))
}

func codeSpan(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return ""
	}
	return "`" + s + "`"
}

// formatRepositoryValue links the repository name to its browsable URL when one can be derived.
func formatRepositoryValue(repository, sourceURL string) string {
	name := escape(strings.TrimSpace(repository))
	link := repositoryLink(sourceURL)
	switch {
	case link != "" && name != "":
		return "<" + link + "|" + name + ">"
	case link != "":
		return "<" + link + ">"
	default:
		return name
	}
}

// repositoryLink strips credentials, query and ".git" so tokens never reach Slack.
func repositoryLink(sourceURL string) string {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	u.User = nil
	u.Path = strings.TrimSuffix(u.Path, ".git")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;") //nolint:gochecknoglobals // stateless

func escape(s string) string {
	return escaper.Replace(s)
}
