// Package snapshot streams note-graph export files without materializing the
// whole document. Exports are a single JSON object with formatVersion, docs,
// editors and workspaces keys; docs can run to millions of records, so the
// reader walks the docs array with a token decoder and hands records to a
// callback one at a time.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/tanatools/supertag/internal/sterr"
)

// FormatVersion is the only export format this reader understands.
const FormatVersion = 1

// FilePattern matches dated export filenames, e.g. "Workspace@2025-11-03.json".
var FilePattern = regexp.MustCompile(`@\d{4}-\d{2}-\d{2}\.json$`)

// Record is one raw document record. Props is kept verbatim so fields the
// indexer does not normalize survive round-trips.
type Record struct {
	ID       string          `json:"id"`
	Props    json.RawMessage `json:"props"`
	Children []string        `json:"children"`
}

// DocType returns props._docType, or "" for plain nodes.
func (r *Record) DocType() string {
	return gjson.GetBytes(r.Props, "_docType").String()
}

// Name returns props.name and whether it was present.
func (r *Record) Name() (string, bool) {
	v := gjson.GetBytes(r.Props, "name")
	return v.String(), v.Exists()
}

// Description returns props.description, or "".
func (r *Record) Description() string {
	return gjson.GetBytes(r.Props, "description").String()
}

// Color returns props.color, or "".
func (r *Record) Color() string {
	return gjson.GetBytes(r.Props, "color").String()
}

// Created returns props.created in epoch ms, 0 when absent.
func (r *Record) Created() int64 { return gjson.GetBytes(r.Props, "created").Int() }

// Updated returns props.updated in epoch ms, 0 when absent.
func (r *Record) Updated() int64 { return gjson.GetBytes(r.Props, "updated").Int() }

// DoneAt returns props.done_at in epoch ms, 0 when absent.
func (r *Record) DoneAt() int64 { return gjson.GetBytes(r.Props, "done_at").Int() }

// Flags returns props.flags, 0 when absent.
func (r *Record) Flags() int64 { return gjson.GetBytes(r.Props, "flags").Int() }

// EntityOverride returns props._entity_override.
func (r *Record) EntityOverride() bool {
	return gjson.GetBytes(r.Props, "_entity_override").Bool()
}

// IsEntity reports whether the source marks this record as an entity:
// an explicit override, or an odd flags value.
func (r *Record) IsEntity() bool {
	return r.EntityOverride() || r.Flags()%2 == 1
}

// Reader streams records from one export file. Every call to Each reopens
// the file, so the sequence is restartable.
type Reader struct {
	path string
}

// Open validates the top-level shape of the export and returns a Reader.
// The whole file is not read here; only enough to reject non-exports early.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "open snapshot %s", path)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: not a JSON object", path)
	}
	// Scan top-level keys, checking formatVersion and that docs is an
	// array. Key order is not fixed, so a version serialized after docs
	// still gets validated; the docs array is only token-walked when the
	// version has not been seen yet.
	sawDocs := false
	sawVersion := false
	for dec.More() {
		key, err := expectString(dec)
		if err != nil {
			return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: bad top-level key", path)
		}
		switch key {
		case "formatVersion":
			var v int
			if err := dec.Decode(&v); err != nil {
				return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: formatVersion", path)
			}
			if v != FormatVersion {
				return nil, sterr.New(sterr.CorruptSnapshot, "snapshot %s: unsupported formatVersion %d", path, v)
			}
			sawVersion = true
		case "docs":
			if err := expectDelim(dec, '['); err != nil {
				return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: docs is not an array", path)
			}
			sawDocs = true
			if !sawVersion {
				for dec.More() {
					if err := skipValue(dec); err != nil {
						return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: docs array", path)
					}
				}
				if err := expectDelim(dec, ']'); err != nil {
					return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: docs array end", path)
				}
			}
		default:
			if err := skipValue(dec); err != nil {
				return nil, sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: key %q", path, key)
			}
		}
		if sawDocs && sawVersion {
			break
		}
	}
	if !sawDocs {
		return nil, sterr.New(sterr.CorruptSnapshot, "snapshot %s: missing docs array", path)
	}
	return &Reader{path: path}, nil
}

// Path returns the snapshot file path.
func (r *Reader) Path() string { return r.path }

// Each streams every record in the docs array to fn. Malformed individual
// records are the caller's concern (fn sees raw bytes via Record.Props);
// a malformed array or object shape aborts with CorruptSnapshot.
// fn returning an error stops the stream and propagates the error.
func (r *Reader) Each(fn func(rec *Record) error) error {
	f, err := os.Open(r.path)
	if err != nil {
		return sterr.Wrap(sterr.CorruptSnapshot, err, "open snapshot %s", r.path)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	if err := expectDelim(dec, '{'); err != nil {
		return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: not a JSON object", r.path)
	}
	for dec.More() {
		key, err := expectString(dec)
		if err != nil {
			return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: bad top-level key", r.path)
		}
		if key != "docs" {
			if err := skipValue(dec); err != nil {
				return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: key %q", r.path, key)
			}
			continue
		}
		if err := expectDelim(dec, '['); err != nil {
			return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: docs is not an array", r.path)
		}
		for dec.More() {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: record decode", r.path)
			}
			if err := fn(&rec); err != nil {
				return err
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return sterr.Wrap(sterr.CorruptSnapshot, err, "snapshot %s: docs array end", r.path)
		}
		return nil
	}
	return sterr.New(sterr.CorruptSnapshot, "snapshot %s: missing docs array", r.path)
}

// LatestExport returns the lexicographically-greatest dated export file in
// dir, or "" when none exists.
func LatestExport(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read export dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !FilePattern.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func expectString(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %v", tok)
	}
	return s, nil
}

// skipValue consumes one complete JSON value (scalar, object or array).
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar
	}
	if d != '{' && d != '[' {
		return fmt.Errorf("unexpected delimiter %v", d)
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
