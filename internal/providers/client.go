package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/L1nMay/rangeprobe/internal/config"
)

const maxBodyBytes = 64 << 20

var (
	ErrInvalidProvider = errors.New("invalid provider id")
	ErrNotFound        = errors.New("provider not found")

	providerID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

func ValidID(id string) bool {
	return providerID.MatchString(id) && id != "." && id != ".."
}

// Client fetches the published cloud range lists.
type Client struct {
	http      *http.Client
	listURL   string
	rangeURL  string
	mergedURL string
}

func NewClient(cfg config.ProvidersConfig, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		listURL:   cfg.ListURL,
		rangeURL:  cfg.RangeURL,
		mergedURL: cfg.MergedURL,
	}
}

// List returns provider ids: the .txt entries of the directory listing,
// without the extension.
func (c *Client) List(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, c.listURL)
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("unexpected provider listing: %.64s", string(body))
	}

	var ids []string
	res.ForEach(func(_, file gjson.Result) bool {
		name := file.Get("name").String()
		if strings.HasSuffix(name, ".txt") {
			ids = append(ids, strings.TrimSuffix(name, ".txt"))
		}
		return true
	})
	return ids, nil
}

// Range returns the CIDR text file for one provider.
func (c *Client) Range(ctx context.Context, id string) (string, error) {
	if !ValidID(id) {
		return "", ErrInvalidProvider
	}
	body, err := c.get(ctx, fmt.Sprintf(c.rangeURL, id))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Merged returns every provider's ranges in one text, each section
// introduced by a "# Provider: <id>" line.
func (c *Client) Merged(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.mergedURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "rangeprobe")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
