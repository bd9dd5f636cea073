package source

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestLocalDir_Items(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)
	for name, content := range map[string]string{
		"b-report.XLSM": "second",
		"a-report.xlsx": "first",
		"legacy.xls":    "old",
		"notes.txt":     "ignore",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.xlsx"), 0o755))

	items, err := LocalDir{Dir: dir, Logger: testLogger()}.Items(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "a-report.xlsx", items[0].Source)
	assert.Equal(t, []byte("first"), items[0].Payload)
	assert.True(t, items[0].ModTime.Equal(mtime))
	assert.True(t, items[0].Timestamp.IsZero())
	assert.Equal(t, "b-report.XLSM", items[1].Source)
}

func TestLocalDir_MissingFolder(t *testing.T) {
	_, err := LocalDir{Dir: filepath.Join(t.TempDir(), "absent"), Logger: testLogger()}.Items(context.Background())
	require.Error(t, err)
}

type testAttachment struct {
	name, contentType string
	data              []byte
}

// buildMessage renders a multipart/mixed message whose first part is a
// multipart/alternative body, followed by base64 attachments.
func buildMessage(from, date string, attachments ...testAttachment) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: ops@example.com\r\n")
	b.WriteString("Subject: Daily report\r\n")
	if date != "" {
		b.WriteString("Date: " + date + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"outer\"\r\n\r\n")

	b.WriteString("--outer\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"inner\"\r\n\r\n")
	b.WriteString("--inner\r\nContent-Type: text/plain\r\n\r\nSee attached.\r\n")
	b.WriteString("--inner\r\nContent-Type: text/html\r\n\r\n<p>See attached.</p>\r\n")
	b.WriteString("--inner--\r\n")

	for _, a := range attachments {
		b.WriteString("--outer\r\n")
		b.WriteString("Content-Type: " + a.contentType + "; name=\"" + a.name + "\"\r\n")
		b.WriteString("Content-Disposition: attachment; filename=\"" + a.name + "\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		enc := base64.StdEncoding.EncodeToString(a.data)
		for len(enc) > 76 {
			b.WriteString(enc[:76] + "\r\n")
			enc = enc[76:]
		}
		b.WriteString(enc + "\r\n")
	}
	b.WriteString("--outer--\r\n")
	return b.String()
}

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func TestMailbox_Items(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(strings.Repeat("workbook-bytes-", 20))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write("a.eml", buildMessage("VemCount <no-reply@vemcount.com>", "Wed, 08 Oct 2025 22:01:46 +0000",
		testAttachment{name: "Daily Traffic MEL.xlsx", contentType: xlsxType, data: payload},
		testAttachment{name: "summary.xlsx", contentType: xlsxType, data: []byte("other")},
		testAttachment{name: "traffic.png", contentType: "image/png", data: []byte("png")},
	))
	write("b.eml", buildMessage("someone@example.com", "Wed, 08 Oct 2025 22:05:00 +0000",
		testAttachment{name: "traffic.xlsx", contentType: xlsxType, data: payload},
	))
	write("c.eml", buildMessage("no-reply@vemcount.com", "Fri, 01 Aug 2025 22:00:00 +0000",
		testAttachment{name: "traffic.xlsx", contentType: xlsxType, data: payload},
	))
	write("notes.txt", "not a message")

	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC))
	mb := Mailbox{Dir: dir, Sender: DefaultSender, Backfill: 30, Clock: clock, Logger: testLogger()}

	items, err := mb.Items(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "a.eml/Daily Traffic MEL.xlsx", items[0].Source)
	assert.Equal(t, payload, items[0].Payload)
	assert.True(t, items[0].Timestamp.Equal(time.Date(2025, 10, 8, 22, 1, 46, 0, time.UTC)))
	assert.False(t, items[0].ModTime.IsZero())
}

func TestMailbox_NoFilters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.eml"), []byte(buildMessage(
		"someone@example.com", "Fri, 01 Aug 2025 22:00:00 +0000",
		testAttachment{name: "mel.xlsx", contentType: xlsxType, data: []byte("x")},
	)), 0o600))

	items, err := Mailbox{Dir: dir, Logger: testLogger()}.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMailbox_MissingDateFallsBackToModTime(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "undated.eml"), []byte(buildMessage(
		"no-reply@vemcount.com", "",
		testAttachment{name: "traffic.xlsx", contentType: xlsxType, data: []byte("x")},
	)), 0o600))

	items, err := Mailbox{Dir: dir, Sender: DefaultSender, Logger: testLogger()}.Items(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.True(t, items[0].Timestamp.IsZero())
	assert.False(t, items[0].ModTime.IsZero())
}

func TestMailbox_FirstReportAttachmentOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.eml"), []byte(buildMessage(
		"no-reply@vemcount.com", "Wed, 08 Oct 2025 22:01:46 +0000",
		testAttachment{name: "notes.txt", contentType: "text/plain", data: []byte("n")},
		testAttachment{name: "traffic.xlsx", contentType: xlsxType, data: []byte("first")},
		testAttachment{name: "Traffic MEL.xlsx", contentType: xlsxType, data: []byte("second")},
	)), 0o600))

	items, err := Mailbox{Dir: dir, Sender: DefaultSender, Logger: testLogger()}.Items(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "two.eml/traffic.xlsx", items[0].Source)
	assert.Equal(t, []byte("first"), items[0].Payload)
}

func TestIsReportAttachment(t *testing.T) {
	assert.True(t, isReportAttachment("Foot Traffic.xlsx"))
	assert.True(t, isReportAttachment("MEL_daily.XLSX"))
	assert.False(t, isReportAttachment("traffic.xls"))
	assert.False(t, isReportAttachment("traffic.csv"))
	assert.False(t, isReportAttachment("sydney.xlsx"))
	assert.False(t, isReportAttachment(""))
}

func TestFromSender(t *testing.T) {
	assert.True(t, fromSender("VemCount <No-Reply@VemCount.com>", DefaultSender))
	assert.True(t, fromSender("a@example.com, no-reply@vemcount.com", DefaultSender))
	assert.False(t, fromSender("someone@example.com", DefaultSender))
}
