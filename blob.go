package formtree

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"reflect"
)

// Blob is a binary payload carried through the codec untouched. It stands in
// for an uploaded file.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewBlob returns a blob holding a copy of data.
func NewBlob(name, contentType string, data []byte) *Blob {
	return &Blob{Name: name, ContentType: contentType, Data: append([]byte(nil), data...)}
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int64 { return int64(len(b.Data)) }

// Reader returns a reader over the payload.
func (b *Blob) Reader() io.Reader { return bytes.NewReader(b.Data) }

// Equal reports whether both blobs carry the same name, type and bytes.
func (b *Blob) Equal(o *Blob) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Name == o.Name && b.ContentType == o.ContentType && bytes.Equal(b.Data, o.Data)
}

func (b *Blob) descriptor() map[string]any {
	return map[string]any{"name": b.Name, "type": b.ContentType, "size": b.Size()}
}

// BlobSource is implemented by binary payload types other than [Blob]. The
// classifier converts them to blobs.
type BlobSource interface {
	BlobName() string
	BlobContentType() string
	BlobBytes() ([]byte, error)
}

// IsBlob reports whether x is a binary payload: a [Blob], a multipart file
// header, a [BlobSource] or a [Value] holding a blob.
func IsBlob(x any) bool {
	switch b := x.(type) {
	case *Blob:
		return b != nil
	case Blob:
		return true
	case *multipart.FileHeader:
		return b != nil
	case BlobSource:
		return !isNilPointer(b)
	case Value:
		return b.kind == KindBlob
	}
	return false
}

// isNilPointer reports whether x holds a typed nil pointer, which compares
// unequal to nil once stored in an interface.
func isNilPointer(x any) bool {
	rv := reflect.ValueOf(x)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// toBlob converts any payload accepted by IsBlob into a *Blob.
func toBlob(x any) (*Blob, error) {
	switch b := x.(type) {
	case *Blob:
		return b, nil
	case Blob:
		return &b, nil
	case *multipart.FileHeader:
		return blobFromFileHeader(b)
	case BlobSource:
		data, err := b.BlobBytes()
		if err != nil {
			return nil, fmt.Errorf("form: read blob %q: %w", b.BlobName(), err)
		}
		return &Blob{Name: b.BlobName(), ContentType: b.BlobContentType(), Data: data}, nil
	case Value:
		return b.blob, nil
	}
	return nil, fmt.Errorf("form: %T is not a blob", x)
}

func blobFromFileHeader(fh *multipart.FileHeader) (*Blob, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("form: open file %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("form: read file %q: %w", fh.Filename, err)
	}
	return &Blob{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}
