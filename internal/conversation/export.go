package conversation

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/storage"
)

// Export renders the conversation as plain text: one
// "[<timestamp>] <label>: <content>" entry per message, in order, separated
// by a blank line.
func (s *Store) Export() string {
	messages := s.Messages()

	entries := make([]string, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, fmt.Sprintf("[%s] %s: %s",
			m.Timestamp.In(s.opts.Location).Format(s.opts.TimestampLayout),
			s.Label(m.Sender),
			m.Content,
		))
	}
	return strings.Join(entries, "\n\n")
}

// Label returns the display label of sender.
func (s *Store) Label(sender Sender) string {
	if sender == User {
		return s.opts.UserLabel
	}
	return s.opts.ProductLabel
}

// ExportFilename returns the export artifact name for the given day:
// "<product>-conversation-YYYY-MM-DD.txt".
func (s *Store) ExportFilename(now time.Time) string {
	return ExportFilename(s.opts.ProductLabel, now)
}

// ExportFilename builds "<product>-conversation-YYYY-MM-DD.txt" with product
// lowercased and reduced to filename-safe characters.
func ExportFilename(product string, now time.Time) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(product)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	name := b.String()
	if name == "" {
		name = "mathgpt"
	}
	return fmt.Sprintf("%s-conversation-%s.txt", name, now.Format("2006-01-02"))
}

// WriteExport writes Export() into dir and returns the file's path.
func (s *Store) WriteExport(dir string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	path := filepath.Join(dir, s.ExportFilename(now))
	if err := storage.WriteFileAtomic(path, []byte(s.Export()+"\n"), 0o644); err != nil {
		return "", mgErrors.NewStorageError("export", "could not write export file", err)
	}
	return path, nil
}
