package formtree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Encoding types understood by [NewRequest].
const (
	EncTypeMultipart  = "multipart/form-data"
	EncTypeURLEncoded = "application/x-www-form-urlencoded"
)

// IsGet reports whether r reads its values from the URL query.
func IsGet(r *http.Request) bool {
	return strings.EqualFold(r.Method, http.MethodGet)
}

// ParseRequest decodes the values submitted with r. GET requests are read from
// the URL query with [DecodeQuery]; all other methods from the body.
func ParseRequest(r *http.Request, opts DecodeOptions) (Value, error) {
	if IsGet(r) {
		return DecodeQuery(r.URL.RawQuery, opts)
	}
	ps, err := ReadRequestPairs(r)
	if err != nil {
		return Value{}, err
	}
	return Decode(ps, opts)
}

// ReadRequestPairs reads the pairs of a multipart/form-data or
// application/x-www-form-urlencoded request body in submission order. File
// parts become blob pairs.
func ReadRequestPairs(r *http.Request) (Pairs, error) {
	if r.Body == nil {
		return nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = EncTypeURLEncoded
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("form: invalid content type: %w", err)
	}

	switch mediaType {
	case EncTypeURLEncoded:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("form: failed to read body: %w", err)
		}
		return ParsePairs(strings.TrimSpace(string(body)))
	case EncTypeMultipart:
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("form: multipart body without boundary")
		}
		return readMultipart(multipart.NewReader(r.Body, boundary))
	}
	return nil, fmt.Errorf("form: unsupported content type %q", mediaType)
}

func readMultipart(mr *multipart.Reader) (Pairs, error) {
	var ps Pairs
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return ps, nil
		}
		if err != nil {
			return nil, fmt.Errorf("form: read part: %w", err)
		}

		name := part.FormName()
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("form: read part %q: %w", name, err)
		}
		if name == "" {
			continue
		}

		if filename := part.FileName(); filename != "" {
			ps = append(ps, BlobPair(name, &Blob{
				Name:        filename,
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			}))
			continue
		}
		ps = append(ps, TextPair(name, string(data)))
	}
}

// Submission describes where and how values are sent. It is passed through
// to the request untouched.
type Submission struct {
	// Method defaults to POST.
	Method string
	// Action is the target URL.
	Action string
	// EncType selects the body encoding and defaults to multipart/form-data.
	// It is ignored for GET, which always uses the URL query.
	EncType string
}

// NewRequest builds the request that submits values. The top-level fields of
// extra are laid over values before encoding, so callers can inject fields the
// form does not hold.
func NewRequest(ctx context.Context, sub Submission, values, extra Value, opts EncodeOptions) (*http.Request, error) {
	for _, f := range extra.Fields() {
		values = values.With(f.Key, f.Value)
	}
	ps, err := Encode(values, opts)
	if err != nil {
		return nil, err
	}

	method := sub.Method
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	if method == http.MethodGet {
		u, err := url.Parse(sub.Action)
		if err != nil {
			return nil, fmt.Errorf("form: invalid action: %w", err)
		}
		q := ps.URLEncode()
		if u.RawQuery != "" {
			q = u.RawQuery + "&" + q
		}
		u.RawQuery = q
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	}

	var (
		body bytes.Buffer
		ct   string
	)
	switch sub.EncType {
	case EncTypeURLEncoded:
		body.WriteString(ps.URLEncode())
		ct = EncTypeURLEncoded
	case "", EncTypeMultipart:
		w := multipart.NewWriter(&body)
		if err := ps.WriteMultipart(w); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("form: close multipart body: %w", err)
		}
		ct = w.FormDataContentType()
	default:
		return nil, fmt.Errorf("form: unsupported encoding type %q", sub.EncType)
	}

	req, err := http.NewRequestWithContext(ctx, method, sub.Action, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ct)
	return req, nil
}
