package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultChunkSize is the fixed part size used to partition files.
const DefaultChunkSize int64 = 10 * 1024 * 1024

// PartProvider partitions a source into dense 1-based parts of a fixed chunk
// size. For retries of a read, Part may be called multiple times for the same
// part number.
type PartProvider interface {
	// PartCount returns the total number of parts, ceil(size / chunkSize).
	PartCount() int32

	// PartSize returns the byte length of the given part.
	PartSize(partNumber int32) int64

	// Part returns a reader over the byte range of the given part.
	Part(partNumber int32) (io.Reader, error)
}

// FilePartProvider reads parts from a file on disk. Safe for concurrent part
// reads.
type FilePartProvider struct {
	file      *os.File
	size      int64
	chunkSize int64
	partCount int32
	mu        sync.Mutex
}

// NewFilePartProvider partitions the file at path into parts of chunkSize
// bytes. chunkSize 0 selects DefaultChunkSize. Empty files cannot be
// partitioned into a valid part set and are rejected.
func NewFilePartProvider(path string, chunkSize int64) (*FilePartProvider, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() == 0 {
		file.Close() //nolint:errcheck
		return nil, fmt.Errorf("file %s is empty", path)
	}

	return &FilePartProvider{
		file:      file,
		size:      info.Size(),
		chunkSize: chunkSize,
		partCount: int32((info.Size() + chunkSize - 1) / chunkSize),
	}, nil
}

// PartCount ...
func (p *FilePartProvider) PartCount() int32 {
	return p.partCount
}

// Size returns the total byte length of the file.
func (p *FilePartProvider) Size() int64 {
	return p.size
}

// PartSize ...
func (p *FilePartProvider) PartSize(partNumber int32) int64 {
	if partNumber < 1 || partNumber > p.partCount {
		return 0
	}
	if partNumber == p.partCount {
		return p.size - int64(partNumber-1)*p.chunkSize
	}
	return p.chunkSize
}

// Part reads the byte range of the given part into memory and returns a
// reader over it.
func (p *FilePartProvider) Part(partNumber int32) (io.Reader, error) {
	if partNumber < 1 || partNumber > p.partCount {
		return nil, fmt.Errorf("part number %d out of range [1, %d]", partNumber, p.partCount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	offset := int64(partNumber-1) * p.chunkSize
	if _, err := p.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to position %d for part %d: %w", offset, partNumber, err)
	}

	part := make([]byte, p.PartSize(partNumber))
	if _, err := io.ReadFull(p.file, part); err != nil {
		return nil, fmt.Errorf("read part %d: %w", partNumber, err)
	}

	return bytes.NewReader(part), nil
}

// Close closes the underlying file.
func (p *FilePartProvider) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// checksumOfFile computes the hex-encoded SHA-256 digest of the whole file,
// before partitioning. The digest travels with the session and ends up as
// metadata on the committed object.
func checksumOfFile(path string) (string, error) {
	hash := sha256.New()

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// BytesPartProvider partitions an in-memory byte slice. Useful for streaming
// scenarios and tests.
type BytesPartProvider struct {
	data      []byte
	chunkSize int64
}

// NewBytesPartProvider ...
func NewBytesPartProvider(data []byte, chunkSize int64) (*BytesPartProvider, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data is empty")
	}
	return &BytesPartProvider{data: data, chunkSize: chunkSize}, nil
}

// PartCount ...
func (p *BytesPartProvider) PartCount() int32 {
	return int32((int64(len(p.data)) + p.chunkSize - 1) / p.chunkSize)
}

// PartSize ...
func (p *BytesPartProvider) PartSize(partNumber int32) int64 {
	if partNumber < 1 || partNumber > p.PartCount() {
		return 0
	}
	if partNumber == p.PartCount() {
		return int64(len(p.data)) - int64(partNumber-1)*p.chunkSize
	}
	return p.chunkSize
}

// Part ...
func (p *BytesPartProvider) Part(partNumber int32) (io.Reader, error) {
	if partNumber < 1 || partNumber > p.PartCount() {
		return nil, fmt.Errorf("part number %d out of range [1, %d]", partNumber, p.PartCount())
	}
	offset := int64(partNumber-1) * p.chunkSize
	return bytes.NewReader(p.data[offset : offset+p.PartSize(partNumber)]), nil
}
