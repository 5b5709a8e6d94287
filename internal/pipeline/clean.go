package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/insightflow/insightflow/internal/connectors"
	"github.com/insightflow/insightflow/internal/helpers"
)

// dedupPrefixRunes bounds how much normalized text participates in the
// dedup key. Two records agreeing on source, URL and this prefix are
// considered the same document.
const dedupPrefixRunes = 200

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeCompanyName validates a raw company name and returns the
// normalized identifier plus a display form. The identifier doubles as
// the vector collection namespace.
func NormalizeCompanyName(raw string) (id, display string, err error) {
	display = strings.TrimSpace(whitespaceRe.ReplaceAllString(raw, " "))
	if display == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidCompany)
	}
	if utf8.RuneCountInString(display) > 120 {
		return "", "", fmt.Errorf("%w: longer than 120 characters", ErrInvalidCompany)
	}
	hasAlnum := false
	for _, r := range display {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasAlnum = true
			break
		}
	}
	if !hasAlnum {
		return "", "", fmt.Errorf("%w: no letters or digits", ErrInvalidCompany)
	}
	return strings.ToLower(display), display, nil
}

// CleanText strips markup and noise from raw text and bounds its
// length so embedding cost stays predictable.
func CleanText(s string, maxChars int) string {
	s = norm.NFKC.String(s)
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if maxChars > 0 && len(s) > maxChars {
		cut := s[:maxChars]
		// avoid splitting a multi-byte rune at the boundary
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		s = strings.TrimSpace(cut)
	}
	return s
}

// DedupKey computes the stable content identity of a record: a sha256
// over source type, canonical URL and the normalized text prefix.
func DedupKey(sourceType connectors.SourceType, rawURL, normalizedText string) string {
	canonical, err := helpers.CanonicalURL(rawURL)
	if err != nil {
		canonical = strings.TrimSpace(strings.ToLower(rawURL))
	}
	prefix := normalizedText
	if utf8.RuneCountInString(prefix) > dedupPrefixRunes {
		runes := []rune(prefix)
		prefix = string(runes[:dedupPrefixRunes])
	}
	h := sha256.Sum256([]byte(string(sourceType) + "|" + canonical + "|" + prefix))
	return hex.EncodeToString(h[:])
}

// CleanStats counts per-item drops during the cleaning stage. Drops
// are recoverable signals, never pipeline failures.
type CleanStats struct {
	Kept       int
	Duplicates int
	TooShort   int
}

// Clean normalizes raw records into deduplicated documents, preserving
// first-seen order. Records below minChars after cleaning are dropped.
func Clean(records []connectors.RawRecord, maxChars, minChars int) ([]Document, CleanStats) {
	var (
		docs  []Document
		stats CleanStats
		seen  = make(map[string]struct{}, len(records))
	)
	for _, rec := range records {
		title := CleanText(rec.Title, 300)
		content := CleanText(rec.Text, maxChars)
		if len(content) < minChars {
			stats.TooShort++
			continue
		}
		key := DedupKey(rec.SourceType, rec.URL, content)
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		docs = append(docs, Document{
			DedupKey:   key,
			SourceType: rec.SourceType,
			Title:      title,
			URL:        rec.URL,
			Content:    content,
			FetchedAt:  rec.FetchedAt,
		})
		stats.Kept++
	}
	return docs, stats
}
