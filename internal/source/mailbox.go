package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// DefaultSender is the address the vendor mails daily reports from.
const DefaultSender = "no-reply@vemcount.com"

// attachmentKeywords select report attachments by file name.
var attachmentKeywords = []string{"traffic", "mel"}

// Mailbox reads a folder of exported .eml messages. The first matching
// attachment of each message becomes one item stamped with its Date header.
type Mailbox struct {
	Dir string
	// Sender filters messages by From address. Empty accepts every sender.
	Sender string
	// Backfill limits messages to the last Backfill days. Zero disables the
	// window.
	Backfill int
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

func (m Mailbox) Items(ctx context.Context) ([]domain.Item, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return nil, fmt.Errorf("read mailbox %s: %w", m.Dir, err)
	}

	var since time.Time
	if m.Backfill > 0 {
		clock := m.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		since = clock.Now().AddDate(0, 0, -m.Backfill)
	}

	var items []domain.Item
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			continue
		}
		found, err := m.readMessage(filepath.Join(m.Dir, e.Name()), since)
		if err != nil {
			m.Logger.Warn("skipping unreadable message", "source", e.Name(), "error", err)
			continue
		}
		items = append(items, found...)
	}
	m.Logger.Info("found report attachments", "mailbox", m.Dir, "count", len(items), "sender", m.Sender, "backfill_days", m.Backfill)
	return items, nil
}

func (m Mailbox) readMessage(path string, since time.Time) ([]domain.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	name := filepath.Base(path)

	from := env.GetHeader("From")
	if m.Sender != "" && !fromSender(from, m.Sender) {
		m.Logger.Debug("skipping message from other sender", "source", name, "from", from)
		return nil, nil
	}

	// A missing or malformed Date leaves Timestamp zero; the item then falls
	// back to the file modification time.
	sent, dateErr := mail.ParseDate(env.GetHeader("Date"))
	if dateErr != nil {
		sent = time.Time{}
		m.Logger.Warn("message has no usable Date header", "source", name, "error", dateErr)
	}
	if !since.IsZero() && dateErr == nil && sent.Before(since) {
		return nil, nil
	}

	part := reportAttachment(env)
	if part == nil {
		return nil, nil
	}
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	return []domain.Item{{
		Payload:   part.Content,
		Timestamp: sent,
		ModTime:   modTime,
		Source:    name + "/" + part.FileName,
	}}, nil
}

func fromSender(from, sender string) bool {
	addrs, err := mail.ParseAddressList(from)
	if err != nil {
		return strings.Contains(strings.ToLower(from), strings.ToLower(sender))
	}
	for _, a := range addrs {
		if strings.EqualFold(a.Address, sender) {
			return true
		}
	}
	return false
}

// reportAttachment returns the first report workbook in the message, in
// part order. Later matches are ignored.
func reportAttachment(env *enmime.Envelope) *enmime.Part {
	for _, parts := range [][]*enmime.Part{env.Attachments, env.Inlines, env.OtherParts} {
		for _, p := range parts {
			if isReportAttachment(p.FileName) {
				return p
			}
		}
	}
	return nil
}

func isReportAttachment(filename string) bool {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".xlsx") {
		return false
	}
	for _, k := range attachmentKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
