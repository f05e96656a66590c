// version/version.go
package version

import (
	"auto_zonky_go/logs"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// FetchFunc returns the latest released version.
type FetchFunc func(ctx context.Context) (string, error)

// Checker compares the running version with the latest release.
type Checker struct {
	Current string
	Fetch   FetchFunc
}

// Result of a completed check.
type Result struct {
	Latest string
	Older  bool
	Err    error
}

// normalize makes "1.2.3" acceptable to semver, which insists on the "v" prefix.
func normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsOlder reports whether current precedes latest. Unknown or development builds
// (empty, "dev", or anything that is not a semantic version) are never older.
func IsOlder(current, latest string) bool {
	c, l := normalize(current), normalize(latest)
	if !semver.IsValid(c) || !semver.IsValid(l) {
		return false
	}
	return semver.Compare(c, l) < 0
}

// Check fetches the latest version and compares.
func (c *Checker) Check(ctx context.Context) Result {
	if c.Fetch == nil {
		return Result{Err: fmt.Errorf("no version source configured")}
	}
	latest, err := c.Fetch(ctx)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Latest: latest, Older: IsOlder(c.Current, latest)}
}

// CheckAsync runs Check in the background; the channel receives exactly one result.
func (c *Checker) CheckAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- c.Check(ctx)
	}()
	return out
}

// Report logs the result the way the bot announces it at startup.
func Report(current string, r Result) {
	switch {
	case r.Err != nil:
		logs.Warnf("[Version] Unable to determine the latest version: %v", r.Err)
	case r.Older:
		logs.Warnf("[Version] You are using an obsolete version %s. Please upgrade to %s.", current, r.Latest)
	default:
		logs.Infof("[Version] Running version %s, latest is %s.", displayName(current), r.Latest)
	}
}

func displayName(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}

// HTTPFetcher reads the latest version from url. The body is either the bare version
// string or a JSON object with a "version" or "tag_name" field.
func HTTPFetcher(url string, timeout time.Duration) FetchFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create version request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to fetch latest version: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("version source returned HTTP %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return "", fmt.Errorf("failed to read version response: %w", err)
		}
		return parseLatest(body)
	}
}

func parseLatest(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var doc struct {
			Version string `json:"version"`
			TagName string `json:"tag_name"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", fmt.Errorf("failed to parse version response: %w", err)
		}
		text = doc.Version
		if text == "" {
			text = doc.TagName
		}
	}
	if text == "" {
		return "", fmt.Errorf("version source returned no version")
	}
	return text, nil
}
