package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"balanceScope/internal/model"
)

// JSONLDelivery appends records to a local JSONL file.
type JSONLDelivery struct {
	path string
	mu   sync.Mutex
}

func NewJSONLDelivery(path string) *JSONLDelivery {
	return &JSONLDelivery{path: path}
}

// Send appends a batch of records as JSON lines.
func (d *JSONLDelivery) Send(ctx context.Context, records []model.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(d.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal output record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write output record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
