package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wippyai/abstruct/formats"
	"github.com/wippyai/abstruct/schema"
)

// magicLen is how much of a file format detection looks at.
const magicLen = 16

func decodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "format or schema name (detected when omitted)"},
		&cli.BoolFlag{Name: "strict", Usage: "fail on magic, checksum and enum violations"},
	}
}

// resolveSchema finds the schema to decode path with: a named built-in
// format, a named user schema, or the format detected from head.
func (e *env) resolveSchema(path string, head []byte) (*schema.Schema, error) {
	if e.format != "" {
		if f, ok := formats.Lookup(e.format); ok {
			return f.Root, nil
		}
		if s, ok := e.registry.Lookup(e.format); ok {
			return s, nil
		}
		known := append(formats.Names(), e.registry.Names()...)
		return nil, fmt.Errorf("unknown format %q (known: %s)", e.format, strings.Join(known, ", "))
	}
	f, ok := formats.Detect(path, head)
	if !ok {
		return nil, fmt.Errorf("cannot detect the format of %s, use --format", path)
	}
	e.log.Debug("detected format", zap.String("path", path), zap.String("format", f.Name))
	return f.Root, nil
}

// decode unpacks the file at path. A partially decoded tree comes back
// with the error when decoding fails midway.
func (e *env) decode(path string) (*schema.Chunk, error) {
	head, err := readHead(path, magicLen)
	if err != nil {
		return nil, err
	}
	s, err := e.resolveSchema(path, head)
	if err != nil {
		return nil, err
	}
	root, err := schema.Open(s, path, e.options()...)
	if err != nil {
		return root, fmt.Errorf("decode %s as %s: %w", path, s.Name(), err)
	}
	return root, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	got, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf[:got], nil
}

func fileArg(c *cli.Command) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("%s: expected one file argument", c.Name)
	}
	return c.Args().First(), nil
}
