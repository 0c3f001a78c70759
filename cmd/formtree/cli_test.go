package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestEncodeCmd(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		"json with defaults": {
			stdin: `{"name":"Jo","age":3}`,
			args:  []string{"encode"},
			want:  "hasJS=true\nage=3\nname=\"Jo\"\n",
		},
		"plain options": {
			stdin: `{"name":"Jo","age":3}`,
			args:  []string{"encode", "--stringify-all=false", "--has-js=false"},
			want:  "age=3\nname=Jo\n",
		},
		"yaml input": {
			stdin: "name: Jo\ntags: [a, b]\n",
			args:  []string{"encode", "-f", "yaml"},
			want:  "hasJS=true\nname=\"Jo\"\ntags.[0]=\"a\"\ntags.[1]=\"b\"\n",
		},
		"urlencoded line": {
			stdin: `{"name":"Jo","age":3}`,
			args:  []string{"encode", "--urlencoded"},
			want:  "hasJS=true&age=3&name=%22Jo%22\n",
		},
		"null document": {
			stdin: `null`,
			args:  []string{"encode"},
			want:  "emptyNull=null\n",
		},
		"array document": {
			stdin:   `[1, 2]`,
			args:    []string{"encode"},
			wantErr: true,
		},
		"unknown format": {
			stdin:   `{}`,
			args:    []string{"encode", "-f", "toml"},
			wantErr: true,
		},
		"bad log level": {
			stdin:   `{}`,
			args:    []string{"--log-level", "loud", "encode"},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := run(t, tt.stdin, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if !tt.wantErr {
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestDecodeCmd(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		stdin   string
		args    []string
		want    any
		wantErr bool
	}{
		"argument": {
			args: []string{"decode", "hasJS=true&user.name=%22Jo%22&user.age=3"},
			want: map[string]any{"user": map[string]any{"name": "Jo", "age": 3.0}},
		},
		"stdin": {
			stdin: "name=Jo&tags.0=a&tags.1=b\n",
			args:  []string{"decode"},
			want:  map[string]any{"name": "Jo", "tags": []any{"a", "b"}},
		},
		"query": {
			args: []string{"decode", "-q", "?car[]=Ford&car[]=Chevy"},
			want: map[string]any{"car": []any{"Ford", "Chevy"}},
		},
		"preserve stringified": {
			args: []string{"decode", "--preserve-stringified", "hasJS=true&age=3"},
			want: map[string]any{"age": "3"},
		},
		"shape conflict": {
			args:    []string{"decode", "a=1&a.b=2"},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := run(t, tt.stdin, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			var got any
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeCmd(t *testing.T) {
	t.Parallel()

	local := writeFile(t, "local.json", `{"username": {"message": "required", "type": "required"}}`)
	remote := writeFile(t, "remote.yaml", "username: taken\nsecret:\n  message: hidden\nroot.server:\n  message: down\n")
	values := writeFile(t, "values.yaml", "secret: x\n")

	tests := map[string]struct {
		args    []string
		want    any
		wantErr bool
	}{
		"allow list": {
			args: []string{"merge", "--local", local, "--remote", remote, "--valid-keys", "username"},
			want: map[string]any{
				"username":    map[string]any{"message": "taken", "type": "backend"},
				"root.server": map[string]any{"message": "down", "type": "backend"},
			},
		},
		"keys from values": {
			args: []string{"merge", "--local", local, "--remote", remote, "--values", values},
			want: map[string]any{
				"username":    map[string]any{"message": "required", "type": "required"},
				"secret":      map[string]any{"message": "hidden", "type": "backend"},
				"root.server": map[string]any{"message": "down", "type": "backend"},
			},
		},
		"no local tree": {
			args: []string{"merge", "--remote", remote, "--valid-keys", "secret"},
			want: map[string]any{
				"secret":      map[string]any{"message": "hidden", "type": "backend"},
				"root.server": map[string]any{"message": "down", "type": "backend"},
			},
		},
		"remote is required": {
			args:    []string{"merge", "--local", local},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := run(t, "", tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			var got any
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeysCmd(t *testing.T) {
	t.Parallel()

	got, err := run(t, `{"user.name":"Jo","email":"x"}`, "keys")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "email\nname\nroot\nuser\nuser.name\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	got, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "formtree ") {
		t.Errorf("unexpected output %q", got)
	}
}
