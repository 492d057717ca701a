package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the translate service of the annotator backend
const DefaultEndpoint = "http://localhost:3000/api/translate"

type translateRequest struct {
	Words []string `json:"words"`
}

// Fetcher asks the translate service for missing words and merges the
// answers into a Table
type Fetcher struct {
	endpoint   string
	httpClient *http.Client
	table      *Table
}

// NewFetcher creates a fetcher writing into table
func NewFetcher(endpoint string, table *Table) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Fetcher{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		table: table,
	}
}

// Table returns the table the fetcher writes into
func (f *Fetcher) Table() *Table {
	return f.table
}

// Fetch translates the words the table does not know yet. It returns the
// number of stored translations. Placeholder answers are skipped so the
// labels keep showing the original text.
func (f *Fetcher) Fetch(ctx context.Context, words []string) (int, error) {
	missing := f.table.Missing(words)
	if len(missing) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(translateRequest{Words: missing})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("translation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result []Word
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return f.table.Merge(result), nil
}
