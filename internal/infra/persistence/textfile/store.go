// Package textfile persists the record set as a pipe-delimited text file,
// one member per line. Saves are staged in a temporary file next to the live
// file and moved into place with a rename, so an interrupted write never
// truncates the committed data.
package textfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gymledger/pkg/domain"
)

// DefaultPath is used when no data file is configured.
const DefaultPath = "members.txt"

var _ domain.Persister = (*Store)(nil)

// test hooks
var (
	rename     = os.Rename
	createTemp = os.CreateTemp
)

// Store reads and writes the member file at a fixed path.
type Store struct {
	path string
}

// New returns a store for path, creating the parent directory if needed.
func New(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the live file location.
func (s *Store) Path() string { return s.path }

// Describe identifies the backend in logs.
func (s *Store) Describe() string { return "text:" + s.path }

// Load reads every line, keeping the ones that decode and validate. A missing
// file is an empty store, not an error.
func (s *Store) Load(ctx context.Context) (domain.LoadResult, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.LoadResult{}, nil
	}
	if err != nil {
		return domain.LoadResult{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(ctx, f)
}

// MaxLineBytes bounds one persisted line, terminator included. Longer lines
// are skipped without being buffered whole.
const MaxLineBytes = 4096

// Decode reads members from r. Blank lines are ignored; lines that fail to
// decode or exceed MaxLineBytes are counted as skipped and do not stop the
// scan.
func Decode(ctx context.Context, r io.Reader) (domain.LoadResult, error) {
	var res domain.LoadResult
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return domain.LoadResult{}, err
		}
		line, overlong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return domain.LoadResult{}, fmt.Errorf("read members: %w", err)
		}
		switch {
		case overlong:
			res.Skip(lineNo, fmt.Sprintf("line exceeds %d bytes", MaxLineBytes))
		case line == "":
		default:
			m, derr := DecodeLine(line)
			if derr != nil {
				res.Skip(lineNo, derr.Error())
				break
			}
			res.Members = append(res.Members, m)
		}
		if err != nil {
			return res, nil
		}
	}
}

// readLine returns the next line without its terminator. Once a line grows
// past MaxLineBytes the rest of it is discarded and overlong is reported.
func readLine(br *bufio.Reader) (line string, overlong bool, err error) {
	var buf []byte
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !overlong {
			if len(buf)+len(chunk) > MaxLineBytes {
				overlong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		buf = bytes.TrimSuffix(buf, []byte("\n"))
		buf = bytes.TrimSuffix(buf, []byte("\r"))
		return string(buf), overlong, rerr
	}
}

// Encode renders members in order, one line each, with no header or trailer.
func Encode(members []domain.Member) []byte {
	var buf bytes.Buffer
	for _, m := range members {
		buf.WriteString(EncodeLine(m))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Save writes the full record set to a staging file and renames it over the
// live file. On failure the staging file is removed and the live file is left
// as it was.
func (s *Store) Save(ctx context.Context, members []domain.Member) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := createTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	staged := tmp.Name()
	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(staged)
		}
	}()
	if _, err := tmp.Write(Encode(members)); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := rename(staged, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
