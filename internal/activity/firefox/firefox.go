// Package firefox lists the open tabs of a Firefox profile from its
// session-restore file.
package firefox

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/tidwall/gjson"
)

// Magic prefixes mozLz4 files (recovery.jsonlz4).
var Magic = []byte("mozLz40\x00")

const (
	headerSize = 12

	// maxDecodedSize bounds the allocation taken from an untrusted header.
	maxDecodedSize = 256 << 20
)

// ErrBadFrame is returned for mozLz4 data with a truncated or invalid header.
var ErrBadFrame = errors.New("firefox: malformed mozLz4 frame")

// Reader reads tab titles from a recovery file on every call.
type Reader struct {
	path string
}

// New returns a reader for the session-restore file at path. Both the
// mozLz4 framed and the plain JSON variants are accepted.
func New(path string) *Reader {
	return &Reader{path: path}
}

// TabTitles returns the title of the current history entry of every tab in
// every window.
func (r *Reader) TabTitles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	return Titles(doc)
}

// Decode strips mozLz4 framing from data. Data without the magic prefix is
// returned unchanged.
func Decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, Magic) {
		return data, nil
	}
	if len(data) < headerSize {
		return nil, ErrBadFrame
	}

	size := binary.LittleEndian.Uint32(data[len(Magic):headerSize])
	if size > maxDecodedSize {
		return nil, fmt.Errorf("%w: declared size %d", ErrBadFrame, size)
	}

	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return dst[:n], nil
}

// Titles extracts tab titles from a decoded session document. A tab's
// current entry is entries[index-1]; when index is missing or out of range
// the last entry is used.
func Titles(doc []byte) ([]string, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("session file is not valid JSON")
	}

	var titles []string
	gjson.GetBytes(doc, "windows").ForEach(func(_, window gjson.Result) bool {
		window.Get("tabs").ForEach(func(_, tab gjson.Result) bool {
			entries := tab.Get("entries").Array()
			if len(entries) == 0 {
				return true
			}
			index := int(tab.Get("index").Int())
			if index < 1 || index > len(entries) {
				index = len(entries)
			}
			if title := entries[index-1].Get("title").String(); title != "" {
				titles = append(titles, title)
			}
			return true
		})
		return true
	})

	return titles, nil
}
