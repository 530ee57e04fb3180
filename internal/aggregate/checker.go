package aggregate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/L1nMay/rangeprobe/internal/model"
)

// Checker fetches interface configuration URLs and reports whether they
// look like a usable site list.
type Checker struct {
	http    *http.Client
	maxBody int64
}

func NewChecker(timeout time.Duration, maxBody int) *Checker {
	return &Checker{
		http:    &http.Client{Timeout: timeout},
		maxBody: int64(maxBody),
	}
}

// ValidURL accepts absolute http and https URLs only.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Check never returns an error: fetch failures become an offline status.
func (c *Checker) Check(ctx context.Context, target string) model.InterfaceStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return offline(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return offline(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.InterfaceStatus{
			Status:     model.StatusOffline,
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return offline(err)
	}
	if int64(len(body)) > c.maxBody {
		return offline(fmt.Errorf("response larger than %d bytes", c.maxBody))
	}

	st := model.InterfaceStatus{
		Status:     model.StatusOnline,
		StatusCode: resp.StatusCode,
		Size:       len(body),
	}
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		st.IsJSON = doc.IsObject() || doc.IsArray()
		if st.IsJSON {
			st.HasSites = doc.Get("sites").IsArray()
			st.Content = body
		}
	}
	return st
}

func offline(err error) model.InterfaceStatus {
	return model.InterfaceStatus{Status: model.StatusOffline, Error: err.Error()}
}
