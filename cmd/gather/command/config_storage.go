package command

import (
	"context"
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/storage"
	"github.com/pixil98/go-service"
)

type StorageDriver int

const (
	StorageDriverFile StorageDriver = iota
	StorageDriverSQLite
)

func (sd *StorageDriver) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*sd = StorageDriverFile
	case "sqlite":
		*sd = StorageDriverSQLite
	default:
		return fmt.Errorf("unknown storage driver: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Driver StorageDriver `json:"driver"`

	// file
	Realms   AssetConfig[*storage.Realm]   `json:"realms"`
	Profiles AssetConfig[*storage.Profile] `json:"profiles"`

	// sqlite
	DSN string `json:"dsn"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Driver {
	case StorageDriverFile:
		el.Add(c.Realms.Validate("storage.realms"))
		el.Add(c.Profiles.Validate("storage.profiles"))
	case StorageDriverSQLite:
		if c.DSN == "" {
			el.Add(fmt.Errorf("storage: dsn is required for the sqlite driver"))
		}
	}

	return el.Err()
}

// buildRepository returns the repository and, for drivers holding a
// resource open, the worker that owns it.
func (c *StorageConfig) buildRepository(ctx context.Context) (storage.Repository, service.Worker, error) {
	switch c.Driver {
	case StorageDriverSQLite:
		repo, err := storage.OpenSQLRepository(ctx, c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		realms, err := c.Realms.BuildFileStore()
		if err != nil {
			return nil, nil, fmt.Errorf("creating realm store: %w", err)
		}
		profiles, err := c.Profiles.BuildFileStore()
		if err != nil {
			return nil, nil, fmt.Errorf("creating profile store: %w", err)
		}
		return storage.NewFileRepository(realms, profiles), nil, nil
	}
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
