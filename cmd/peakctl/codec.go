package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/peaklink/internal/protocol"
)

func runDecode(args []string, stdin io.Reader, out io.Writer) error {
	fs := newFlagSet("decode")
	dump := fs.Bool("dump", true, "print a hex dump of the input first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	buf, err := readHexInput(fs.Args(), stdin)
	if err != nil {
		return err
	}
	if *dump {
		fmt.Fprint(out, hex.Dump(buf))
	}
	return printMessages(out, buf)
}

// printMessages decodes every message in buf back to back.
func printMessages(out io.Writer, buf []byte) error {
	for off := 0; off < len(buf); {
		m, n, err := protocol.DecodeMessage(buf[off:])
		if missing, ok := protocol.MissingBytes(err); ok {
			return fmt.Errorf("incomplete message at offset %d: missing %d bytes: %w", off, missing, err)
		}
		if err != nil {
			return fmt.Errorf("offset %d: %w", off, err)
		}
		fmt.Fprintf(out, "%04x  %v\n", off, m)
		if data, ok := m.(protocol.DataMessage); ok {
			for i, p := range data.Peaks {
				fmt.Fprintf(out, "      [%d] %v\n", i, p)
			}
		}
		off += n
	}
	return nil
}

func runRaw(args []string, stdin io.Reader, out io.Writer) error {
	fs := newFlagSet("raw")
	if err := fs.Parse(args); err != nil {
		return err
	}
	buf, err := readHexInput(fs.Args(), stdin)
	if err != nil {
		return err
	}
	peaks, err := protocol.DecodeRawPeaks(buf)
	if err != nil {
		return err
	}
	for i, p := range peaks {
		fmt.Fprintf(out, "[%d] %v\n    canonical %s\n", i, p, hex.EncodeToString(p.Encode()))
	}
	return nil
}

var errNoInput = errors.New("no input")

// readHexInput joins args, or reads stdin when there are none, and decodes
// the hex. Whitespace, colons and 0x prefixes are ignored.
func readHexInput(args []string, stdin io.Reader) ([]byte, error) {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return parseHex(text)
}

func parseHex(text string) ([]byte, error) {
	var b strings.Builder
	for _, field := range strings.Fields(strings.ReplaceAll(text, ":", " ")) {
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		b.WriteString(field)
	}
	if b.Len() == 0 {
		return nil, errNoInput
	}
	buf, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("parse hex: %w", err)
	}
	return buf, nil
}
