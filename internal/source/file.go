package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"payout-charts/internal/series"
)

// File reads a saved account payload from disk. It is re-read on every snapshot.
type File struct {
	path string
}

// NewFile constructs a file source.
func NewFile(path string) *File {
	return &File{path: path}
}

// Snapshot implements EventSource. A missing file means no data yet.
func (f *File) Snapshot(_ context.Context) ([]series.RawEvent, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open payments file: %w", err)
	}
	defer file.Close()

	return DecodePaymentCharts(file)
}

var _ EventSource = (*File)(nil)
