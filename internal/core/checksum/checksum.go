package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/Ning0612/Comicshelf/internal/domain"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// MD5 is what Google Drive and single-part S3 ETags expose
	MD5 Algorithm = "md5"
	// SHA1 is what OneDrive personal exposes in file.hashes
	SHA1 Algorithm = "sha1"
	// SHA256 for callers that choose their own digest
	SHA256 Algorithm = "sha256"
)

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	_, err := newHash(algo)
	return err == nil
}

// Options configures the checksum calculator
type Options struct {
	// MaxSize: larger inputs are rejected (0 = unlimited)
	MaxSize int64

	// BufferSize: size of buffer for streaming reads
	BufferSize int
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		MaxSize:    512 * 1024 * 1024,
		BufferSize: 32 * 1024,
	}
}

// Calculator computes streaming digests
type Calculator struct {
	opts Options
}

// NewCalculator creates a new calculator with the given options
func NewCalculator(opts Options) *Calculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32 * 1024
	}
	return &Calculator{opts: opts}
}

// Calculate returns the hex digest of everything read from reader.
// It checks ctx between chunks.
func (c *Calculator) Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	src := reader
	if c.opts.MaxSize > 0 {
		src = io.LimitReader(reader, c.opts.MaxSize+1)
	}

	buf := make([]byte, c.opts.BufferSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if c.opts.MaxSize > 0 && total > c.opts.MaxSize {
				return "", fmt.Errorf("input exceeds maximum (%d bytes)", c.opts.MaxSize)
			}
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verifier hashes bytes as they are written and compares the result
// against an expected hex digest. An empty expectation always verifies.
type Verifier struct {
	h        hash.Hash
	expected string
}

// NewVerifier creates a verifier for the expected digest
func NewVerifier(algo Algorithm, expected string) (*Verifier, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	return &Verifier{h: h, expected: strings.ToLower(strings.TrimSpace(expected))}, nil
}

// Write implements io.Writer
func (v *Verifier) Write(p []byte) (int, error) {
	return v.h.Write(p)
}

// Sum returns the hex digest of the bytes written so far
func (v *Verifier) Sum() string {
	return hex.EncodeToString(v.h.Sum(nil))
}

// Verify returns domain.ErrChecksumMismatch when the digest differs
func (v *Verifier) Verify() error {
	if v.expected == "" {
		return nil
	}
	if got := v.Sum(); got != v.expected {
		return fmt.Errorf("%w: got %s, want %s", domain.ErrChecksumMismatch, got, v.expected)
	}
	return nil
}
