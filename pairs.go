package formtree

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// Reserved transport keys. They are never valid field names.
const (
	// KeyEmptyNull marks a submission whose root was null ("null") or an empty
	// object ("{}").
	KeyEmptyNull = "emptyNull"
	// KeyHasJS marks a pair stream written by a type-preserving encoder.
	KeyHasJS = "hasJS"
)

func isReservedKey(key string) bool {
	return key == KeyEmptyNull || key == KeyHasJS
}

// Pair is one flat transport entry. Exactly one of Text and Blob is
// meaningful: Blob is used when non-nil.
type Pair struct {
	Key  string
	Text string
	Blob *Blob
}

// TextPair returns a text pair.
func TextPair(key, text string) Pair { return Pair{Key: key, Text: text} }

// BlobPair returns a binary pair.
func BlobPair(key string, b *Blob) Pair { return Pair{Key: key, Blob: b} }

// IsBlob reports whether p carries a binary payload.
func (p Pair) IsBlob() bool { return p.Blob != nil }

// Pairs is an ordered sequence of transport pairs. Keys may repeat.
type Pairs []Pair

// Get returns the first pair with the given key.
func (ps Pairs) Get(key string) (Pair, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p, true
		}
	}
	return Pair{}, false
}

// URLEncode renders the pairs as an application/x-www-form-urlencoded body,
// keeping pair order. That encoding cannot carry binary data, so each blob is
// replaced by its file name and a warning is logged.
func (ps Pairs) URLEncode() string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.text()))
	}
	return b.String()
}

func (p Pair) text() string {
	if p.Blob == nil {
		return p.Text
	}
	log().Warn("form: binary payload cannot be url-encoded, sending file name only",
		slog.String("key", p.Key),
		slog.String("file", p.Blob.Name),
		slog.Int64("size", p.Blob.Size()))
	return p.Blob.Name
}

// WriteMultipart writes the pairs as parts of a multipart/form-data body in
// order. It does not close w.
func (ps Pairs) WriteMultipart(w *multipart.Writer) error {
	for _, p := range ps {
		if p.Blob == nil {
			if err := w.WriteField(p.Key, p.Text); err != nil {
				return fmt.Errorf("form: write field %q: %w", p.Key, err)
			}
			continue
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(p.Key), escapeQuotes(p.Blob.Name)))
		ct := p.Blob.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("form: create part %q: %w", p.Key, err)
		}
		if _, err := part.Write(p.Blob.Data); err != nil {
			return fmt.Errorf("form: write part %q: %w", p.Key, err)
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// ParsePairs parses an application/x-www-form-urlencoded string, or a URL
// query, into pairs in the order they appear. Unlike [url.ParseQuery] it
// keeps the relative order of distinct keys.
func ParsePairs(query string) (Pairs, error) {
	var ps Pairs
	for query != "" {
		var field string
		field, query, _ = strings.Cut(query, "&")
		if strings.Contains(field, ";") {
			return nil, fmt.Errorf("form: invalid semicolon separator in query")
		}
		if field == "" {
			continue
		}
		key, value, _ := strings.Cut(field, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("form: invalid form data: %w", err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("form: invalid form data: %w", err)
		}
		ps = append(ps, TextPair(k, v))
	}
	return ps, nil
}
