package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomasbasham/formtree"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{logLevel: "warn"}
	cmd := &cobra.Command{
		Use:           "formtree",
		Short:         "Flatten, rebuild and merge form value trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			formtree.SetLogger(l)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newEncodeCmd(),
		newDecodeCmd(),
		newMergeCmd(),
		newKeysCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

type encodeOptions struct {
	format       string
	stringifyAll bool
	hasJS        bool
	urlencoded   bool
}

func newEncodeCmd() *cobra.Command {
	opts := encodeOptions{stringifyAll: true, hasJS: true}
	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Flatten a JSON or YAML document into form pairs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args, opts.format)
			if err != nil {
				return err
			}
			v, err := formtree.ValueOf(doc)
			if err != nil {
				return err
			}
			ps, err := formtree.Encode(v, formtree.EncodeOptions{
				StringifyAll: opts.stringifyAll,
				HasJS:        opts.hasJS,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.urlencoded {
				_, err = fmt.Fprintln(out, ps.URLEncode())
				return err
			}
			for _, p := range ps {
				if _, err := fmt.Fprintf(out, "%s=%s\n", p.Key, p.Text); err != nil {
					return err
				}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.format, "format", "f", "", "input format: json or yaml (default: from file extension, else json)")
	fs.BoolVar(&opts.stringifyAll, "stringify-all", opts.stringifyAll, "JSON-encode string leaves")
	fs.BoolVar(&opts.hasJS, "has-js", opts.hasJS, "tag the stream as type-preserving")
	fs.BoolVar(&opts.urlencoded, "urlencoded", false, "print a single urlencoded line")
	return cmd
}

type decodeOptions struct {
	query               bool
	preserveStringified bool
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions
	cmd := &cobra.Command{
		Use:   "decode [data]",
		Short: "Rebuild a value tree from urlencoded form data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArgOrStdin(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			raw = strings.TrimSpace(raw)

			dopts := formtree.DecodeOptions{PreserveStringified: opts.preserveStringified}
			var v formtree.Value
			if opts.query {
				v, err = formtree.DecodeQuery(strings.TrimPrefix(raw, "?"), dopts)
			} else {
				var ps formtree.Pairs
				if ps, err = formtree.ParsePairs(raw); err == nil {
					v, err = formtree.Decode(ps, dopts)
				}
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}
	fs := cmd.Flags()
	fs.BoolVarP(&opts.query, "query", "q", false, "treat input as a URL query and number repeated [] keys")
	fs.BoolVar(&opts.preserveStringified, "preserve-stringified", false, "keep leaves as raw strings")
	return cmd
}

type mergeOptions struct {
	local     string
	remote    string
	values    string
	validKeys []string
}

func newMergeCmd() *cobra.Command {
	var opts mergeOptions
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a remote error tree into a local one",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := readErrorFile(opts.local)
			if err != nil {
				return err
			}
			remote, err := readErrorFile(opts.remote)
			if err != nil {
				return err
			}

			keys := opts.validKeys
			if opts.values != "" {
				doc, err := readDocument(nil, []string{opts.values}, "")
				if err != nil {
					return err
				}
				v, err := formtree.ValueOf(doc)
				if err != nil {
					return err
				}
				keys = append(keys, formtree.ValidKeys(v)...)
			}
			if local == nil {
				local = formtree.ErrorTree{}
			}
			return writeJSON(cmd.OutOrStdout(), formtree.Merge(local, remote, keys))
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.local, "local", "", "local error tree (JSON or YAML)")
	fs.StringVar(&opts.remote, "remote", "", "remote error tree (JSON or YAML)")
	fs.StringVar(&opts.values, "values", "", "form values document; its keys are added to --valid-keys")
	fs.StringSliceVar(&opts.validKeys, "valid-keys", nil, "top-level keys the remote tree may set")
	_ = cmd.MarkFlagRequired("remote")
	return cmd
}

func newKeysCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "keys [file]",
		Short: "List the keys a remote validator may report for a values document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args, format)
			if err != nil {
				return err
			}
			v, err := formtree.ValueOf(doc)
			if err != nil {
				return err
			}
			for _, k := range formtree.ValidKeys(v) {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			version := "(devel)"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "formtree "+version)
			return err
		},
	}
}

func readArgOrStdin(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// readDocument reads a JSON or YAML document from the named file, or from
// stdin when no file is given.
func readDocument(stdin io.Reader, args []string, format string) (any, error) {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 && args[0] != "-" {
		// #nosec G304 -- the path is supplied by the user running the tool.
		data, err = os.ReadFile(args[0])
		if format == "" {
			format = formatFromExt(args[0])
		}
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var doc any
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "", "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return doc, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// readErrorFile reads an error tree. An empty path yields a nil tree.
func readErrorFile(path string) (formtree.ErrorTree, error) {
	if path == "" {
		return nil, nil
	}
	doc, err := readDocument(nil, []string{path}, "")
	if err != nil {
		return nil, err
	}
	// Route YAML documents through JSON so both share the error node rules.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return formtree.ReadErrors(bytes.NewReader(b))
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
