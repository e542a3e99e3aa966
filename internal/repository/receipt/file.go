package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/config"
	"github.com/my3495/scriptpack/internal/domain/bundle"
)

// Repository defines persistence operations for build receipts.
type Repository interface {
	Load(ctx context.Context) (*bundle.Receipt, error)
	Save(ctx context.Context, receipt *bundle.Receipt) error
}

// FileRepository persists the receipt to a YAML file in the work tree.
type FileRepository struct {
	// path is the filesystem location of the receipt file.
	path string
	// mu protects concurrent access to the receipt file.
	mu sync.Mutex
}

// ErrNotFound is returned when no receipt has been written yet.
var ErrNotFound = errors.New("receipt not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the receipt of the previous build from disk.
func (r *FileRepository) Load(_ context.Context) (*bundle.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var rec bundle.Receipt
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("decode receipt file: %w", err)
	}

	return &rec, nil
}

// Save writes the receipt to disk.
func (r *FileRepository) Save(_ context.Context, rec *bundle.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	return nil
}
