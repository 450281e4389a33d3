package tool

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/useragents/core"
)

// Clock returns the current time. Builtins take one so tests can pin it.
type Clock func() time.Time

// FetchDate returns the fetch_date tool reporting the current date as YYYY-MM-DD.
func FetchDate(now Clock) *FunctionTool {
	if now == nil {
		now = time.Now
	}
	return NewFunctionTool("fetch_date", "Fetches the current date.", nil,
		func(*core.ToolContext, map[string]any) (any, error) {
			return now().Format(time.DateOnly), nil
		})
}

// FetchTime returns the fetch_time tool reporting the current time as HH:MM:SS.
func FetchTime(now Clock) *FunctionTool {
	if now == nil {
		now = time.Now
	}
	return NewFunctionTool("fetch_time", "Fetches the current time.", nil,
		func(*core.ToolContext, map[string]any) (any, error) {
			return now().Format(time.TimeOnly), nil
		})
}

// FetchURLOptions configure the fetch_url tool.
type FetchURLOptions struct {
	Client *http.Client
	// MaxBytes truncates the returned body.
	MaxBytes int64
}

// FetchURL returns the fetch_url tool which performs an HTTP GET and returns
// the (truncated) response body as text.
func FetchURL(optFns ...func(o *FetchURLOptions)) *FunctionTool {
	opts := FetchURLOptions{
		Client:   &http.Client{Timeout: 15 * time.Second},
		MaxBytes: 64 << 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http(s) URL to fetch"},
		},
		"required": []string{"url"},
	}

	return NewFunctionTool("fetch_url", "Fetches a web page and returns its text content.", params,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return nil, NewToolError("fetch_url", "url must start with http:// or https://", CodeValidation)
			}

			req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}

			resp, err := opts.Client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= http.StatusBadRequest {
				return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
			if err != nil {
				return nil, err
			}

			return string(body), nil
		})
}

// Builtins returns the default tool catalog.
func Builtins() Catalog {
	return NewCatalog(FetchDate(nil), FetchTime(nil), FetchURL())
}
