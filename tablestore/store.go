package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval"
)

// Subdirectory is the fixed second level of the storage namespace.
const Subdirectory = "CSVs"

// ErrNotFound is returned by ReadTable when no table has been written under
// the requested name.
var ErrNotFound = errors.New("table not found")

// Store reads and writes whole tables under Root/CSVs. Root may be a local
// directory or a gs://bucket/prefix path.
type Store struct {
	Root   string
	client *storage.Client
}

// Open prepares a Store. The local directory is created if needed; client
// is only consulted for gs:// roots.
func Open(root string, client *storage.Client) (*Store, error) {
	s := &Store{Root: segeval.ExpandHome(root), client: client}

	if segeval.IsGoogleStoragePath(s.Root) {
		if client == nil {
			return nil, fmt.Errorf("%s: a storage client is required for gs:// roots", root)
		}
		return s, nil
	}

	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return nil, pfx.Err(err)
	}

	return s, nil
}

// Dir is the directory (or object prefix) that holds the tables.
func (s *Store) Dir() string {
	if segeval.IsGoogleStoragePath(s.Root) {
		return "gs://" + path.Join(s.Root[len("gs://"):], Subdirectory)
	}

	return filepath.Join(s.Root, Subdirectory)
}

// Path is the full location of the named table.
func (s *Store) Path(name string) string {
	if segeval.IsGoogleStoragePath(s.Root) {
		return s.Dir() + "/" + name
	}

	return filepath.Join(s.Dir(), name)
}

// WriteTable replaces the named table with the full contents of t. Local
// writes go through a temporary file and a rename, and Google Storage objects
// only appear once fully uploaded, so readers never see a partial table.
func (s *Store) WriteTable(name string, t *Table) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return err
	}

	if segeval.IsGoogleStoragePath(s.Root) {
		w, err := segeval.MaybeCreateInGoogleStorage(s.Path(name), s.client)
		if err != nil {
			return err
		}
		if _, err := buf.WriteTo(w); err != nil {
			w.Close()
			return pfx.Err(err)
		}
		return pfx.Err(w.Close())
	}

	tmp, err := os.CreateTemp(s.Dir(), "."+name+".*")
	if err != nil {
		return pfx.Err(err)
	}
	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return pfx.Err(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return pfx.Err(err)
	}

	return pfx.Err(os.Rename(tmp.Name(), s.Path(name)))
}

// ReadTable loads the named table. It returns an error wrapping ErrNotFound
// when the table does not exist.
func (s *Store) ReadTable(name string) (*Table, error) {
	exists, err := s.exists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", s.Path(name), ErrNotFound)
	}

	f, err := segeval.MaybeOpenFromGoogleStorage(s.Path(name), s.client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(f)
}

func (s *Store) exists(name string) (bool, error) {
	if segeval.IsGoogleStoragePath(s.Root) {
		bucket, object, err := segeval.SplitGoogleStoragePath(s.Path(name))
		if err != nil {
			return false, err
		}

		_, err = s.client.Bucket(bucket).Object(object).Attrs(context.Background())
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}

		return err == nil, pfx.Err(err)
	}

	_, err := os.Stat(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return err == nil, pfx.Err(err)
}
