// Package store persists the flat option document shared with the extension.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store reads and writes the option document. Get returns the whole document
// as a JSON object; Set merges the given keys into it.
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, values map[string]json.RawMessage) error
	Close() error
}

// Open returns the backend named by driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
