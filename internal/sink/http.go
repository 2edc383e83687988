package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"balanceScope/internal/model"
)

// HTTPDelivery posts record batches to a collector endpoint as a JSON array.
type HTTPDelivery struct {
	url    string
	client *http.Client
}

func NewHTTPDelivery(url string, timeout time.Duration) *HTTPDelivery {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDelivery{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDelivery) Send(ctx context.Context, records []model.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector status %d", resp.StatusCode)
	}
	return nil
}
