package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReceiptArchive keeps a copy of every rendered receipt on disk so
// reprints serve the exact bytes handed to the parent, even after the
// catalog or fine rules change.
type ReceiptArchive struct {
	baseDir string
}

// NewReceiptArchive ensures the archive directory exists and returns a
// handle.
func NewReceiptArchive(baseDir string) (*ReceiptArchive, error) {
	if baseDir == "" {
		baseDir = "./receipts"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt archive directory: %w", err)
	}
	return &ReceiptArchive{baseDir: baseDir}, nil
}

// Store writes the rendered receipt under its receipt number.
func (a *ReceiptArchive) Store(receiptNumber string, data []byte) error {
	path := a.resolve(receiptNumber)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write archived receipt: %w", err)
	}
	return nil
}

// Load returns the archived bytes for a receipt number, or os.ErrNotExist.
func (a *ReceiptArchive) Load(receiptNumber string) ([]byte, error) {
	data, err := os.ReadFile(a.resolve(receiptNumber))
	if err != nil {
		return nil, fmt.Errorf("read archived receipt: %w", err)
	}
	return data, nil
}

// Path exposes the on-disk location of a receipt.
func (a *ReceiptArchive) Path(receiptNumber string) string {
	return a.resolve(receiptNumber)
}

func (a *ReceiptArchive) resolve(receiptNumber string) string {
	return filepath.Join(a.baseDir, filepath.Base(receiptNumber)+".pdf")
}
