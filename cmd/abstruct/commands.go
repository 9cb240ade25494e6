package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wippyai/abstruct/formats"
	"github.com/wippyai/abstruct/schema"
)

func formatsCmd() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "List the built-in formats and the schemas found in --schema-dir",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			w := c.Root().Writer
			for _, f := range formats.All() {
				fmt.Fprintf(w, "%-10s %-14s %s\n", f.Name, f.Root.Name(), f.Description)
			}
			for _, name := range e.registry.Names() {
				fmt.Fprintf(w, "%-10s %-14s %s\n", "-", name, "user schema")
			}
			return nil
		},
	}
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a file and print its field tree",
		ArgsUsage: "<file>",
		Flags: append(decodeFlags(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "only show the subtree at this field path"},
			&cli.BoolFlag{Name: "json", Usage: "print the tree as JSON"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "browse the tree in a terminal UI"},
			&cli.BoolFlag{Name: "color", Usage: "colorize output (default: when stdout is a terminal)"},
			&cli.IntFlag{Name: "preview", Usage: "bytes shown per byte field (0 = all)", Value: defaultPreview},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			root, decodeErr := e.decode(path)
			if root == nil {
				return decodeErr
			}
			sub, err := subtree(root, c.String("path"))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			switch {
			case c.Bool("interactive"):
				if !isTerminal(os.Stdout) {
					return fmt.Errorf("--interactive needs a terminal")
				}
				if err := runBrowser(path, sub, decodeErr, e.preview); err != nil {
					return err
				}
			case c.Bool("json"):
				if err := writeJSON(w, sub); err != nil {
					return err
				}
			default:
				if err := (printer{w: w, color: e.color}).tree(rows(sub, e.preview)); err != nil {
					return err
				}
			}
			return decodeErr
		},
	}
}

func layoutCmd() *cli.Command {
	return &cli.Command{
		Name:      "layout",
		Usage:     "Print the byte ranges of a chunk's fields",
		ArgsUsage: "<file>",
		Flags: append(decodeFlags(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "chunk to lay out (default: the root)"},
			&cli.BoolFlag{Name: "json", Usage: "print the spans as JSON"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			root, err := e.decode(path)
			if err != nil {
				return err
			}
			sub, err := subtree(root, c.String("path"))
			if err != nil {
				return err
			}
			chunk, ok := sub.(*schema.Chunk)
			if !ok {
				return fmt.Errorf("%s is a %s, not a chunk", c.String("path"), kindOf(sub))
			}

			w := c.Root().Writer
			if c.Bool("json") {
				data, err := gojson.MarshalIndent(chunk.LayoutList(), "", "  ")
				if err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
				_, err = fmt.Fprintf(w, "%s\n", data)
				return err
			}
			return printer{w: w}.spans(chunk.LayoutList())
		},
	}
}

func repackCmd() *cli.Command {
	return &cli.Command{
		Name:      "repack",
		Usage:     "Decode a file, apply edits and encode it again",
		ArgsUsage: "<file>",
		Flags: append(decodeFlags(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the encoded file here"},
			&cli.StringSliceFlag{Name: "set", Usage: "assign a field before encoding, as path=value (hex: prefix for bytes)"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			root, err := e.decode(path)
			if err != nil {
				return err
			}
			for _, assignment := range c.StringSlice("set") {
				if err := assign(root, assignment); err != nil {
					return err
				}
			}
			out, err := schema.Pack(root)
			if err != nil {
				return fmt.Errorf("encode %s: %w", path, err)
			}

			w := c.Root().Writer
			if dst := c.String("output"); dst != "" {
				if err := os.WriteFile(dst, out, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", dst, err)
				}
				e.log.Debug("wrote file", zap.String("path", dst), zap.Int("size", len(out)))
				_, err := fmt.Fprintf(w, "wrote %d bytes to %s\n", len(out), dst)
				return err
			}

			orig, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			// a root may cover only a prefix of the file
			orig = orig[:min(len(orig), len(out))]
			if at := firstDiff(orig, out); at >= 0 {
				_, err = fmt.Fprintf(w, "re-encoded %d bytes, first difference at %#x\n", len(out), at)
				return err
			}
			_, err = fmt.Fprintf(w, "re-encoded %d bytes, identical\n", len(out))
			return err
		},
	}
}

func subtree(root *schema.Chunk, path string) (schema.Field, error) {
	if path == "" {
		return root, nil
	}
	f, err := root.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", path, err)
	}
	return f, nil
}

// assign parses "path=value" and sets the field. Values parse as
// integers where possible, hex: marks raw bytes, anything else is used
// as a string (an enum name or literal bytes).
func assign(root *schema.Chunk, assignment string) error {
	path, raw, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("--set %q: expected path=value", assignment)
	}
	f, err := root.Lookup(path)
	if err != nil {
		return fmt.Errorf("--set %s: %w", path, err)
	}
	v, err := parseValue(raw)
	if err != nil {
		return fmt.Errorf("--set %s: %w", path, err)
	}
	if err := f.SetValue(v); err != nil {
		return fmt.Errorf("--set %s: %w", path, err)
	}
	return nil
}

func parseValue(s string) (any, error) {
	if h, ok := strings.CutPrefix(s, "hex:"); ok {
		return hex.DecodeString(h)
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n, nil
	}
	return s, nil
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return i
		}
	}
	return min(len(a), len(b))
}
