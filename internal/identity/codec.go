package identity

import (
	"io"
	"os"

	"github.com/objectfs/storenode/pkg/errors"
)

// FileName is the name of the ids file inside a backend history directory.
const FileName = "ids"

const fileMode = 0644

// Validate checks an ids file size against the record layout.
func Validate(size int64) error {
	if err := validateSize(size); err != nil {
		return err
	}
	return nil
}

func validateSize(size int64) *errors.NodeError {
	if size%IDSize != 0 {
		return errors.Format(errors.ErrCodeFormatSize,
			"ids file size (%d) is wrong, must be modulo of raw id size (%d)", size, IDSize).
			WithDetail("size", size)
	}
	if size == 0 {
		return errors.Format(errors.ErrCodeFormatEmpty, "no ids read")
	}
	return nil
}

// Encode lays ids out as consecutive fixed-size records.
func Encode(ids Set) []byte {
	buf := make([]byte, 0, len(ids)*IDSize)
	for _, id := range ids {
		buf = append(buf, id[:]...)
	}
	return buf
}

// Decode parses consecutive records. It applies the same validation as ReadFile.
func Decode(data []byte) (Set, error) {
	if err := Validate(int64(len(data))); err != nil {
		return nil, err
	}
	ids := make(Set, len(data)/IDSize)
	for i := range ids {
		copy(ids[i][:], data[i*IDSize:])
	}
	return ids, nil
}

// ReadFile loads and validates an ids file.
func ReadFile(path string) (Set, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()
	return readOpen(f, path)
}

func readOpen(f *os.File, path string) (Set, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, errors.IO(errors.ErrCodeIORead, err, "failed to stat ids file '%s'", path)
	}
	if verr := validateSize(st.Size()); verr != nil {
		return nil, verr.WithContext("path", path)
	}

	data := make([]byte, st.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, errors.IO(errors.ErrCodeIORead, err, "failed to read ids file '%s'", path)
	}
	return Decode(data)
}

func openError(path string, err error) error {
	if os.IsNotExist(err) {
		return errors.IO(errors.ErrCodeNotFound, err, "ids file '%s' does not exist", path)
	}
	return errors.IO(errors.ErrCodeIOOpen, err, "failed to open ids file '%s'", path)
}

// WriteFile replaces path with ids. On failure the partial file is removed.
// An empty set is rejected and path is left untouched.
func WriteFile(path string, ids Set) error {
	if len(ids) == 0 {
		return errors.Format(errors.ErrCodeFormatEmpty, "refusing to write an empty ids set").
			WithContext("path", path)
	}
	a, err := CreateAppender(path)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := a.Append(id); err != nil {
			a.Abort()
			return err
		}
	}
	return a.Close()
}

// Appender writes records one at a time so that every id reaches the file as
// soon as it exists.
type Appender struct {
	path string
	w    io.WriteCloser
	n    int
}

// CreateAppender opens path with create, truncate and append.
func CreateAppender(path string) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, fileMode)
	if err != nil {
		return nil, errors.IO(errors.ErrCodeIOOpen, err, "failed to open/create ids file '%s'", path)
	}
	return &Appender{path: path, w: f}, nil
}

// NewAppender wraps an already created file. The appender owns w.
func NewAppender(path string, w io.WriteCloser) *Appender {
	return &Appender{path: path, w: w}
}

// Append writes one record. A short write is an error.
func (a *Appender) Append(id RawID) error {
	n, err := a.w.Write(id[:])
	if err == nil && n != IDSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		code := errors.ErrCodeIOWrite
		if err == io.ErrShortWrite {
			code = errors.ErrCodeShortWrite
		}
		return errors.IO(code, err, "failed to write id into ids file '%s'", a.path).
			WithDetail("written", a.n)
	}
	a.n++
	return nil
}

// Count returns the number of records written so far.
func (a *Appender) Count() int {
	return a.n
}

// Close flushes and closes the file.
func (a *Appender) Close() error {
	if err := a.w.Close(); err != nil {
		_ = os.Remove(a.path)
		return errors.IO(errors.ErrCodeIOWrite, err, "failed to close ids file '%s'", a.path)
	}
	return nil
}

// Abort closes and removes the file.
func (a *Appender) Abort() {
	_ = a.w.Close()
	_ = os.Remove(a.path)
}
