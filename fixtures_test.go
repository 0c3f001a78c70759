package formtree_test

import (
	"time"

	"github.com/tomasbasham/formtree"
)

var (
	baseTime  = time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC)
	fixedZone = time.FixedZone("JST", 9*60*60)
)

type Person struct {
	Name     string   `form:"name"`
	Age      int      `form:"age,omitempty"`
	Pronouns []string `form:"pronouns"`
}

type ComplexPerson struct {
	ID        int       `form:"id"`
	Name      string    `form:"name"`
	Age       int       `form:"age,omitempty"`
	Pronouns  []string  `form:"pronouns,omitempty"`
	CreatedAt MyDate    `form:"created_at"`
	Joined    time.Time `json:"joined,omitempty"`
	Private   string    `form:"-"`
	Optional  *string   `form:"optional,omitempty"`
}

type User struct {
	Name    string  `form:"name"`
	Age     int     `form:"age,omitempty"`
	Address Address `form:"address"`
}

type Address struct {
	Street string `form:"street"`
	City   string `form:"city"`
	State  string `form:"state"`
	Zip    string `form:"zip"`
}

type Upload struct {
	Title      string         `json:"title"`
	Attachment *formtree.Blob `form:"attachment"`
	hidden     string
}

type MyDate time.Time

func (d MyDate) MarshalForm() (string, error) {
	return time.Time(d).Format("2006.01.02"), nil
}

func (d *MyDate) UnmarshalForm(s string) error {
	t, err := time.Parse("2006.01.02", s)
	if err != nil {
		return err
	}
	*d = MyDate(t)
	return nil
}

// staticSource is a binary payload that is not a *formtree.Blob.
type staticSource struct {
	name string
	data string
}

func (s staticSource) BlobName() string           { return s.name }
func (s staticSource) BlobContentType() string    { return "text/plain" }
func (s staticSource) BlobBytes() ([]byte, error) { return []byte(s.data), nil }

// fileSource implements the payload methods on its pointer.
type fileSource struct {
	name string
}

func (f *fileSource) BlobName() string           { return f.name }
func (f *fileSource) BlobContentType() string    { return "application/octet-stream" }
func (f *fileSource) BlobBytes() ([]byte, error) { return []byte(f.name), nil }

func textBlob(name, data string) *formtree.Blob {
	return formtree.NewBlob(name, "text/plain", []byte(data))
}

func field(key string, v formtree.Value) formtree.Field {
	return formtree.Field{Key: key, Value: v}
}

func str(s string) formtree.Value { return formtree.StringValue(s) }

func num(f float64) formtree.Value { return formtree.NumberValue(f) }

func obj(fields ...formtree.Field) formtree.Value { return formtree.ObjectValue(fields...) }

func arr(items ...formtree.Value) formtree.Value { return formtree.ArrayValue(items...) }

func text(key, value string) formtree.Pair { return formtree.TextPair(key, value) }
