package mail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"CatalogSync/internal/config"
	"CatalogSync/internal/ports"
)

func TestComposeBuildsMessageWithAttachment(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("video_id\n"), 0o600))

	mailer := NewMailer(config.MailConfig{From: "support@example.org"})
	msg, err := mailer.compose(ports.Message{
		Subject:        "staging catalog sync - invalid items",
		Recipients:     []string{"ops@example.org", "qa@example.org"},
		Body:           "see attachment",
		AttachmentName: "invalid_items_2024-05-07.csv",
		AttachmentPath: path,
	})
	require.NoError(t, err)

	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ops@example.org", "qa@example.org"}, recipients)
	assert.Equal(t, []string{"staging catalog sync - invalid items"}, msg.GetGenHeader(gomail.HeaderSubject))

	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "invalid_items_2024-05-07.csv", attachments[0].Name)
}

func TestSendRequiresRecipients(t *testing.T) {
	t.Parallel()

	mailer := NewMailer(config.MailConfig{Host: "localhost", From: "support@example.org"})
	err := mailer.Send(context.Background(), ports.Message{Subject: "x"})
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestComposeRejectsBadAddress(t *testing.T) {
	t.Parallel()

	mailer := NewMailer(config.MailConfig{From: "support@example.org"})
	_, err := mailer.compose(ports.Message{Recipients: []string{"not an address"}})
	require.Error(t, err)
}
