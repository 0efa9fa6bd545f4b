package smtp

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{From: "digest@example.com"}, nil)
	assert.Error(t, err, "host is required")

	_, err = New(Config{Host: "smtp.example.com"}, nil)
	assert.Error(t, err, "from is required")

	m, err := New(Config{Host: "smtp.example.com", From: "digest@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 587, m.cfg.Port)
	assert.Equal(t, "Stock News", m.cfg.FromName)
}

func TestBuildMessageEncodesHTMLBody(t *testing.T) {
	t.Parallel()

	m, err := New(Config{
		Host:     "smtp.example.com",
		From:     "digest@example.com",
		FromName: "Digest",
	}, nil)
	require.NoError(t, err)

	body := "<html><body>" + strings.Repeat("<p>news</p>", 200) + "</body></html>"
	msg := m.buildMessage("user@example.com", "Daily digest", body)

	assert.Contains(t, msg, "From: Digest <digest@example.com>\r\n")
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Subject: Daily digest\r\n")
	assert.Contains(t, msg, "Content-Transfer-Encoding: base64\r\n")

	// Encoded body must round-trip and keep lines within the MIME limit.
	parts := strings.SplitN(msg, "\r\n\r\n", 2)
	require.Len(t, parts, 2)
	encoded := strings.TrimSpace(parts[1])
	for _, line := range strings.Split(encoded, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestSendRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	m, err := New(Config{Host: "smtp.example.com", From: "digest@example.com"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Send(ctx, "user@example.com", "s", "<p>b</p>"))
}

func TestSendRequiresRecipient(t *testing.T) {
	t.Parallel()

	m, err := New(Config{Host: "smtp.example.com", From: "digest@example.com"}, nil)
	require.NoError(t, err)
	assert.Error(t, m.Send(context.Background(), "", "s", "<p>b</p>"))
}
