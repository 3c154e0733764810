package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/weezy20/zv/internal/utils"
)

const userAgent = "zv (https://github.com/weezy20/zv)"

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type DefaultHTTPClient struct{ *http.Client }

// NewHTTPClient builds the client every network touchpoint shares. The
// timeout covers connect plus headers; body reads are bounded per-chunk by
// the inactivity watchdog in bodyReader.
func NewHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{Client: &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			Proxy:                 http.ProxyFromEnvironment,
		},
	}}
}

// FetchBytes GETs url and returns the body, capped at maxSize when positive.
func FetchBytes(ctx context.Context, c HTTPClient, url string, maxSize int64) ([]byte, error) {
	body, err := get(ctx, c, url)
	if err != nil {
		return nil, err
	}
	defer utils.Close(body)

	var src io.Reader = body
	if maxSize > 0 {
		src = io.LimitReader(body, maxSize)
	}
	return io.ReadAll(src)
}

// DownloadToFile streams url into dst.
func DownloadToFile(ctx context.Context, c HTTPClient, url, dst string) error {
	body, err := get(ctx, c, url)
	if err != nil {
		return err
	}
	defer utils.Close(body)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer utils.Close(f)

	if _, err := io.Copy(f, body); err != nil {
		return err
	}
	return f.Sync()
}

func get(ctx context.Context, c HTTPClient, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return newBodyReader(ctx, resp.Body, inactivityTimeout(c)), nil
}

func inactivityTimeout(c HTTPClient) time.Duration {
	if dc, ok := c.(*DefaultHTTPClient); ok {
		if tr, ok := dc.Client.Transport.(*http.Transport); ok && tr.ResponseHeaderTimeout > 0 {
			return tr.ResponseHeaderTimeout
		}
	}
	return 15 * time.Second
}
