package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{WebhookURL: " https://hooks.slack.com/services/x ", RetryLimit: -3})
	require.NoError(t, err)
	assert.Equal(t, "repodoc", c.username)
	assert.Equal(t, 0, c.retryLimit)
}

func renderedText(msg message) string {
	var b strings.Builder
	for _, blk := range msg.Blocks {
		if blk.Text != nil {
			b.WriteString(blk.Text.Text + "\n")
		}
		for _, f := range blk.Fields {
			b.WriteString(f.Text + "\n")
		}
		for _, e := range blk.Elements {
			b.WriteString(e.Text + "\n")
		}
	}
	return b.String()
}

func TestBuildMessage(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test", Channel: "#docs", Username: "bot"})
	require.NoError(t, err)

	msg := client.buildMessage(notify.JobFailurePayload{
		JobID:       "123",
		Repository:  "widgets",
		SourceURL:   "https://ghp_secret@github.com/acme/widgets.git",
		ReferenceID: "TICKET-9",
		FailedStage: "DOC_UAT",
		Error:       "exit status 2",
		ErrorClass:  "exec_exiterror",
		OccurredAt:  time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
		Stages: []notify.StageLine{
			{Stage: "CLONE", Status: "completed"},
			{Stage: "DOC_UAT", Status: "failed"},
			{Stage: "DELETE", Status: "pending"},
		},
		Metadata: map[string]string{"duration": "2s"},
	})

	assert.Equal(t, "bot", msg.Username)
	assert.Equal(t, "#docs", msg.Channel)
	assert.Equal(t, "Pipeline failure: widgets at DOC_UAT: exit status 2", msg.Text)

	body := renderedText(msg)
	for _, want := range []string{
		"*Pipeline failure* at `DOC_UAT`",
		"<https://github.com/acme/widgets|widgets>",
		"TICKET-9",
		"`123`",
		"`exec_exiterror`",
		"*Severity*\ncritical",
		":x: `DOC_UAT` failed",
		":white_check_mark: `CLONE` completed",
		"duration: 2s",
		"2024-03-05T14:30:00Z",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "ghp_secret")

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"context"`)
}

func TestBuildMessageEscapes(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	require.NoError(t, err)

	body := renderedText(client.buildMessage(notify.JobFailurePayload{Repository: "test & <repo>", Error: "<boom>"}))
	assert.Contains(t, body, "test &amp; &lt;repo&gt;")
	assert.Contains(t, body, "&lt;boom&gt;")
}

func TestFormatRepositoryValue(t *testing.T) {
	tests := []struct {
		name   string
		repo   string
		source string
		want   string
	}{
		{name: "name with link", repo: "widgets", source: "https://github.com/acme/widgets.git", want: "<https://github.com/acme/widgets|widgets>"},
		{name: "credentials stripped", repo: "widgets", source: "https://ghp_secret@github.com/acme/widgets.git?ref=x", want: "<https://github.com/acme/widgets|widgets>"},
		{name: "link only", source: "https://github.com/acme/widgets.git", want: "<https://github.com/acme/widgets>"},
		{name: "ssh source", repo: "widgets", source: "git@github.com:acme/widgets.git", want: "widgets"},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatRepositoryValue(tt.repo, tt.source))
		})
	}
}

func TestSendJobFailureRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 1, Backoff: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendJobFailureGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 2, Backoff: time.Millisecond})
	require.NoError(t, err)
	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_service")
}
