package metaprep

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const googleStoragePrefix = "gs://"

// Store reads and writes paths that may live either on the local filesystem
// or in Google Storage. A nil *Store, or one without a Client, can still serve
// local paths.
type Store struct {
	Client  *storage.Client
	Context context.Context
}

// NewStore returns a Store for the given paths. A Google Storage client is
// only created (with default credentials unless opts say otherwise) if at
// least one of the paths is a gs:// path.
func NewStore(ctx context.Context, paths []string, opts ...option.ClientOption) (*Store, error) {
	s := &Store{Context: ctx}
	if err := s.Connect(paths, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Connect creates the Google Storage client if the Store does not have one
// yet and any of paths needs it. Paths that only become known after a
// configuration file has been read can be passed here later.
func (s *Store) Connect(paths []string, opts ...option.ClientOption) error {
	if s != nil && s.Client != nil {
		return nil
	}

	for _, p := range paths {
		if !IsGoogleStorage(p) {
			continue
		}

		if s == nil {
			return fmt.Errorf("%s: a nil Store cannot open google storage paths", p)
		}

		client, err := storage.NewClient(s.context(), opts...)
		if err != nil {
			return pfx.Err(err)
		}
		s.Client = client
		break
	}

	return nil
}

// Close releases the Google Storage client, if one was created.
func (s *Store) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}

	return s.Client.Close()
}

// IsGoogleStorage reports whether the path refers to a Google Storage object.
func IsGoogleStorage(p string) bool {
	return strings.HasPrefix(p, googleStoragePrefix)
}

// SplitGoogleStoragePath detects the bucket and the path to the actual file.
func SplitGoogleStoragePath(p string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(p, googleStoragePrefix), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

func (s *Store) context() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}

	return s.Context
}

func (s *Store) object(p string) (*storage.ObjectHandle, error) {
	if s == nil || s.Client == nil {
		return nil, fmt.Errorf("%s: no google storage client is configured", p)
	}

	bucketName, pathName, err := SplitGoogleStoragePath(p)
	if err != nil {
		return nil, err
	}

	return s.Client.Bucket(bucketName).Object(pathName), nil
}

// Open returns a reader for the local file or Google Storage object at p.
func (s *Store) Open(p string) (io.ReadCloser, error) {
	if IsGoogleStorage(p) {
		handle, err := s.object(p)
		if err != nil {
			return nil, pfx.Err(err)
		}

		rdr, err := handle.NewReader(s.context())
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", p, err))
		}

		return rdr, nil
	}

	local, err := ExpandHome(p)
	if err != nil {
		return nil, err
	}

	return os.Open(local)
}

// ReadFile reads the whole of p into memory.
func (s *Store) ReadFile(p string) ([]byte, error) {
	rdr, err := s.Open(p)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	return io.ReadAll(rdr)
}

// WriteFile replaces the contents of p. Local files keep their existing
// permissions; new local files are created 0644.
func (s *Store) WriteFile(p string, data []byte) error {
	if IsGoogleStorage(p) {
		handle, err := s.object(p)
		if err != nil {
			return pfx.Err(err)
		}

		w := handle.NewWriter(s.context())
		if _, err := w.Write(data); err != nil {
			w.Close()
			return pfx.Err(fmt.Errorf("%s: %w", p, err))
		}

		// For storage writers, the upload is only committed by Close.
		if err := w.Close(); err != nil {
			return pfx.Err(fmt.Errorf("%s: %w", p, err))
		}

		return nil
	}

	local, err := ExpandHome(p)
	if err != nil {
		return err
	}

	var perm fs.FileMode = 0644
	if info, err := os.Stat(local); err == nil {
		perm = info.Mode().Perm()
	}

	return os.WriteFile(local, data, perm)
}

// Glob returns the sorted paths matching pattern. Local patterns follow
// filepath.Match. For gs:// patterns, the literal portion of the object name
// before the first wildcard is used as a listing prefix and each listed
// object name is then matched with path.Match.
func (s *Store) Glob(pattern string) ([]string, error) {
	if !IsGoogleStorage(pattern) {
		local, err := ExpandHome(pattern)
		if err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(local)
		if err != nil {
			return nil, pfx.Err(err)
		}
		sort.Strings(matches)

		return matches, nil
	}

	if s == nil || s.Client == nil {
		return nil, pfx.Err(fmt.Errorf("%s: no google storage client is configured", pattern))
	}

	bucketName, objectPattern, err := SplitGoogleStoragePath(pattern)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Validate the pattern up front; path.Match only reports ErrBadPattern
	// when it gets far enough to notice.
	if _, err := path.Match(objectPattern, ""); err != nil {
		return nil, pfx.Err(err)
	}

	var matches []string
	it := s.Client.Bucket(bucketName).Objects(s.context(), &storage.Query{Prefix: LiteralPrefix(objectPattern)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if ok, _ := path.Match(objectPattern, attrs.Name); ok {
			matches = append(matches, googleStoragePrefix+bucketName+"/"+attrs.Name)
		}
	}
	sort.Strings(matches)

	return matches, nil
}

// LiteralPrefix returns the part of a glob pattern that precedes its first
// wildcard or escape character.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}

	return pattern
}
