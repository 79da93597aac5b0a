package impls

import "io"

// BlobStore holds object payloads, addressed by the locator returned
// from Write.
type BlobStore interface {
	EnsureBucket(name string) error
	// Write stores the payload and returns its locator and size.
	Write(bucket, key string, r io.Reader) (path string, size int64, err error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
	// RemoveBucket deletes the bucket directory; it fails when payloads
	// remain.
	RemoveBucket(name string) error
}
