package formtree

import (
	"fmt"
	"io"
	"strings"
)

// Decoder reads form-urlencoded data from an [io.Reader] and decodes it into a
// value tree.
type Decoder struct {
	r    io.Reader
	opts DecodeOptions
}

// NewDecoder creates a new [Decoder] that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// PreserveStringified makes the decoder keep text leaves as raw strings.
func (d *Decoder) PreserveStringified() *Decoder {
	d.opts.PreserveStringified = true
	return d
}

// Decode reads the remaining input and decodes it.
func (d *Decoder) Decode() (Value, error) {
	body, err := io.ReadAll(d.r)
	if err != nil {
		return Value{}, fmt.Errorf("form: failed to read body: %w", err)
	}
	ps, err := ParsePairs(strings.TrimSpace(string(body)))
	if err != nil {
		return Value{}, err
	}
	return Decode(ps, d.opts)
}

// Encoder writes form-urlencoded data to an [io.Writer].
type Encoder struct {
	w    io.Writer
	opts EncodeOptions
}

// NewEncoder creates a new [Encoder] that writes to w with
// [DefaultEncodeOptions].
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, opts: DefaultEncodeOptions}
}

// SetOptions replaces the encoding options.
func (e *Encoder) SetOptions(opts EncodeOptions) {
	e.opts = opts
}

// Encode classifies x with [ValueOf], flattens it and writes it to the
// underlying [io.Writer].
func (e *Encoder) Encode(x any) error {
	ps, err := MarshalPairs(x, e.opts)
	if err != nil {
		return err
	}

	_, err = io.WriteString(e.w, ps.URLEncode())
	return err
}
