package server

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// digestReader computes the SHA-256 and size of everything read through it.
type digestReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newDigestReader(r io.Reader) *digestReader {
	return &digestReader{r: r, h: sha256.New()}
}

func (d *digestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.n += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (d *digestReader) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Size returns the number of bytes read so far.
func (d *digestReader) Size() int64 {
	return d.n
}
