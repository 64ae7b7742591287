package stub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrReceiptTooLarge is returned when an uploaded receipt exceeds the limit.
var ErrReceiptTooLarge = errors.New("stub: receipt too large")

// MaxReceiptSize bounds uploaded payment receipts.
const MaxReceiptSize = 10 << 20

// Receipt is a stored payment receipt.
type Receipt struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64

	// Path is set by the disk backend, Location by the S3 backend.
	Path     string
	Location string
}

// ReceiptStore persists uploaded payment receipts. The stub ships a disk
// backend and an S3 backend; tests use the in-memory one.
type ReceiptStore interface {
	Save(ctx context.Context, filename, contentType string, r io.Reader) (Receipt, error)
}

// MemReceipts keeps receipts in memory. Test backend.
type MemReceipts struct {
	mu       sync.Mutex
	receipts map[string]Receipt
}

// NewMemReceipts creates an empty in-memory receipt store.
func NewMemReceipts() *MemReceipts {
	return &MemReceipts{receipts: make(map[string]Receipt)}
}

func (m *MemReceipts) Save(ctx context.Context, filename, contentType string, r io.Reader) (Receipt, error) {
	data, err := readLimited(r)
	if err != nil {
		return Receipt{}, err
	}
	rec := Receipt{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	m.mu.Lock()
	m.receipts[rec.ID] = rec
	m.mu.Unlock()
	return rec, nil
}

// Len reports how many receipts were stored.
func (m *MemReceipts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

// DiskReceipts stores receipts on the local filesystem, one file per
// receipt named by its id.
type DiskReceipts struct {
	dir string
}

// NewDiskReceipts creates the directory if needed.
func NewDiskReceipts(dir string) (*DiskReceipts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskReceipts{dir: dir}, nil
}

func (d *DiskReceipts) Save(ctx context.Context, filename, contentType string, r io.Reader) (Receipt, error) {
	id := uuid.NewString()
	path := filepath.Join(d.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return Receipt{}, err
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(r, MaxReceiptSize+1))
	if err != nil {
		os.Remove(path)
		return Receipt{}, err
	}
	if written > MaxReceiptSize {
		os.Remove(path)
		return Receipt{}, ErrReceiptTooLarge
	}
	return Receipt{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		Path:        path,
	}, nil
}

// S3Receipts stores receipts in an S3 bucket under a key prefix.
type S3Receipts struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Receipts creates an S3-backed receipt store.
func NewS3Receipts(client *s3.Client, bucket, prefix string) *S3Receipts {
	return &S3Receipts{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Receipts) Save(ctx context.Context, filename, contentType string, r io.Reader) (Receipt, error) {
	data, err := readLimited(r)
	if err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()
	key := s.prefix + id

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filename,
			"upload-time":       time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("s3 upload failed: %w", err)
	}
	return Receipt{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Location:    fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxReceiptSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxReceiptSize {
		return nil, ErrReceiptTooLarge
	}
	return data, nil
}
