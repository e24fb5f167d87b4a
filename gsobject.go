package segeval

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// IsGoogleStoragePath reports whether path points into a bucket.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// SplitGoogleStoragePath separates gs://bucket/path/to/object into its bucket
// and object names.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// GSObjectReader decorates a Google Storage object handle with io.Reader and
// io.Closer. The underlying reader is opened lazily on the first Read.
type GSObjectReader struct {
	*storage.ObjectHandle
	Context context.Context
	r       *storage.Reader
}

func (o *GSObjectReader) Read(p []byte) (int, error) {
	if o.r == nil {
		var err error
		o.r, err = o.NewReader(o.Context)
		if err != nil {
			return 0, err
		}
	}

	return o.r.Read(p)
}

// Close satisfies io.Closer. Closing an object that was never read is a nop.
func (o *GSObjectReader) Close() error {
	if o.r == nil {
		return nil
	}

	return o.r.Close()
}

// MaybeOpenFromGoogleStorage opens path for reading, from a bucket if it
// starts with gs:// and from the local filesystem otherwise.
func MaybeOpenFromGoogleStorage(path string, client *storage.Client) (io.ReadCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: a storage client is required for gs:// paths", path)
		}

		bucketName, pathName, err := SplitGoogleStoragePath(path)
		if err != nil {
			return nil, err
		}

		handle := client.Bucket(bucketName).Object(pathName)

		// Make a hard call so that missing objects fail here rather than on
		// the first Read
		if _, err := handle.Attrs(context.Background()); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return &GSObjectReader{ObjectHandle: handle, Context: context.Background()}, nil
	}

	return os.Open(ExpandHome(path))
}

// MaybeCreateInGoogleStorage opens path for writing, truncating whatever was
// there. For buckets the object only becomes visible once Close succeeds.
func MaybeCreateInGoogleStorage(path string, client *storage.Client) (io.WriteCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: a storage client is required for gs:// paths", path)
		}

		bucketName, pathName, err := SplitGoogleStoragePath(path)
		if err != nil {
			return nil, err
		}

		return client.Bucket(bucketName).Object(pathName).NewWriter(context.Background()), nil
	}

	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, pfx.Err(err)
	}

	return os.Create(path)
}
