package formtree_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomasbasham/formtree"
)

func fieldStep(name string) formtree.Step { return formtree.Step{Kind: formtree.StepField, Field: name} }

func indexStep(i int) formtree.Step { return formtree.Step{Kind: formtree.StepIndex, Index: i} }

var appendStep = formtree.Step{Kind: formtree.StepAppend}

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   string
		want    []formtree.Step
		wantErr bool
	}{
		"single field": {
			input: "name",
			want:  []formtree.Step{fieldStep("name")},
		},
		"dotted fields": {
			input: "user.name.first",
			want:  []formtree.Step{fieldStep("user"), fieldStep("name"), fieldStep("first")},
		},
		"canonical index": {
			input: "tags.[0]",
			want:  []formtree.Step{fieldStep("tags"), indexStep(0)},
		},
		"bracket suffix index": {
			input: "tags[12]",
			want:  []formtree.Step{fieldStep("tags"), indexStep(12)},
		},
		"bare numeric index": {
			input: "user.roles.2",
			want:  []formtree.Step{fieldStep("user"), fieldStep("roles"), indexStep(2)},
		},
		"empty brackets": {
			input: "car[]",
			want:  []formtree.Step{fieldStep("car"), appendStep},
		},
		"bracketed field names": {
			input: "data[level1][level2]",
			want:  []formtree.Step{fieldStep("data"), fieldStep("level1"), fieldStep("level2")},
		},
		"consecutive indices": {
			input: "matrix[0][1]",
			want:  []formtree.Step{fieldStep("matrix"), indexStep(0), indexStep(1)},
		},
		"index then field": {
			input: "users.[3].name",
			want:  []formtree.Step{fieldStep("users"), indexStep(3), fieldStep("name")},
		},
		"numeric first segment is a key": {
			input: "0.a",
			want:  []formtree.Step{fieldStep("0"), fieldStep("a")},
		},
		"leading bracket index is a key": {
			input: "[0]",
			want:  []formtree.Step{fieldStep("0")},
		},
		"empty path": {
			input:   "",
			wantErr: true,
		},
		"empty segment": {
			input:   "a..b",
			wantErr: true,
		},
		"leading dot": {
			input:   ".a",
			wantErr: true,
		},
		"unclosed bracket": {
			input:   "a[b",
			wantErr: true,
		},
		"stray closing bracket": {
			input:   "a]b",
			wantErr: true,
		},
		"text after brackets": {
			input:   "a[0]x",
			wantErr: true,
		},
		"nested brackets": {
			input:   "a[[0]]",
			wantErr: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := formtree.ParsePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if tt.wantErr {
				var pe *formtree.PathError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *PathError, got %T", err)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input string
		want  string
	}{
		"canonical stays canonical": {input: "a.[0].b", want: "a.[0].b"},
		"bracket suffix":            {input: "a[0][1]", want: "a.[0].[1]"},
		"bare numeric":              {input: "a.0.b", want: "a.[0].b"},
		"empty brackets":            {input: "car[]", want: "car.[]"},
		"bracketed fields":          {input: "a[b][c]", want: "a.b.c"},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			steps, err := formtree.ParsePath(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := formtree.FormatPath(steps); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
