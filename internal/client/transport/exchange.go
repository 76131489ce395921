package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
)

// Exchange is the file store the legacy transport reads from and writes to.
// Names are slash separated and relative to the exchange root. Get returns
// common.ErrNotFound for a missing file.
type Exchange interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	Close() error
}

// DirExchange is an Exchange over a local (or mounted) directory.
type DirExchange struct {
	root string
}

func NewDirExchange(root string) *DirExchange {
	return &DirExchange{root: root}
}

func (d *DirExchange) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *DirExchange) Get(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrConnectivity, name, err)
	}
	return b, nil
}

// Put replaces the file atomically so readers never see a partial file.
func (d *DirExchange) Put(_ context.Context, name string, data []byte) error {
	if err := filex.WriteFileAtomic(d.path(name), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", common.ErrConnectivity, name, err)
	}
	return nil
}

func (d *DirExchange) Remove(_ context.Context, name string) error {
	err := os.Remove(d.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", common.ErrConnectivity, name, err)
	}
	return nil
}

func (d *DirExchange) Close() error { return nil }
