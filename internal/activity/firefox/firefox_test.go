package firefox

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pierrec/lz4/v4"
)

const session = `{
  "version": ["sessionrestore", 1],
  "windows": [
    {
      "tabs": [
        {"entries": [{"title": "New Tab"}, {"title": "Lofi beats - YouTube"}], "index": 2},
        {"entries": [{"title": "Twitch"}, {"title": "Inbox"}], "index": 1}
      ]
    },
    {
      "tabs": [
        {"entries": [{"title": "Docs"}, {"title": "Netflix"}]},
        {"entries": [{"title": "Home"}, {"title": "Disney+"}], "index": 9},
        {"entries": []}
      ]
    }
  ]
}`

var wantTitles = []string{"Lofi beats - YouTube", "Twitch", "Netflix", "Disney+"}

func encodeMozLz4(t *testing.T, src []byte) []byte {
	t.Helper()

	block := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, block, nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if n == 0 {
		t.Fatal("compress: test document is incompressible")
	}

	out := make([]byte, headerSize, headerSize+n)
	copy(out, Magic)
	binary.LittleEndian.PutUint32(out[len(Magic):headerSize], uint32(len(src)))
	return append(out, block[:n]...)
}

func writeSession(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTitles(t *testing.T) {
	got, err := Titles([]byte(session))
	if err != nil {
		t.Fatalf("Titles() error = %v", err)
	}
	if !reflect.DeepEqual(got, wantTitles) {
		t.Errorf("Titles() = %v, want %v", got, wantTitles)
	}
}

func TestTitlesInvalid(t *testing.T) {
	if _, err := Titles([]byte(`{"windows": [`)); err == nil {
		t.Fatal("Titles() succeeded on truncated JSON")
	}
}

func TestTabTitlesPlainAndCompressed(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"plain json", "recovery.json", []byte(session)},
		{"mozlz4", "recovery.jsonlz4", encodeMozLz4(t, []byte(session))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := New(writeSession(t, tt.file, tt.data))

			got, err := reader.TabTitles(context.Background())
			if err != nil {
				t.Fatalf("TabTitles() error = %v", err)
			}
			if !reflect.DeepEqual(got, wantTitles) {
				t.Errorf("TabTitles() = %v, want %v", got, wantTitles)
			}
		})
	}
}

func TestTabTitlesMissingFile(t *testing.T) {
	reader := New(filepath.Join(t.TempDir(), "recovery.jsonlz4"))
	if _, err := reader.TabTitles(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("TabTitles() error = %v, want not exist", err)
	}
}

func TestDecodeBadFrame(t *testing.T) {
	valid := encodeMozLz4(t, []byte(session))

	oversized := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(oversized[len(Magic):headerSize], maxDecodedSize+1)

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", append(append([]byte(nil), Magic...), 0x01)},
		{"corrupt block", append(append([]byte(nil), valid[:headerSize]...), 0xff, 0xff, 0xff)},
		{"oversized", oversized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrBadFrame) {
				t.Errorf("Decode() error = %v, want ErrBadFrame", err)
			}
		})
	}
}
