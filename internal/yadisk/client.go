package yadisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"ydbackup/config"
)

const (
	resourcesPath = "/public/resources"
	downloadPath  = "/public/resources/download"

	defaultRetryAfter = 60 * time.Second
)

type Client struct {
	api        *resty.Client
	stream     *resty.Client
	log        *logrus.Logger
	pageLimit  int
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, log *logrus.Logger) *Client {
	api := resty.New().
		SetBaseURL(cfg.ApiURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.OAuthToken != "" {
		api.SetHeader("Authorization", "OAuth "+cfg.OAuthToken)
	}

	// File bodies regularly take longer than the API timeout allows, so
	// streaming requests are bounded by the caller's context instead.
	stream := resty.New().
		SetHeader("User-Agent", cfg.UserAgent)

	return &Client{
		api:        api,
		stream:     stream,
		log:        log,
		pageLimit:  cfg.PageLimit,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		sleep:      sleepContext,
	}
}

func (c *Client) FetchMetadata(ctx context.Context, ref PublicRef, path string, offset, limit int) (*Resource, error) {
	params := map[string]string{
		"public_key": ref.String(),
		"offset":     strconv.Itoa(offset),
		"limit":      strconv.Itoa(limit),
	}
	if path != "" {
		params["path"] = path
	}

	resp, err := c.execute(ctx, "fetch metadata", func(ctx context.Context) (*resty.Response, error) {
		return c.api.R().SetContext(ctx).SetQueryParams(params).Get(resourcesPath)
	})
	if err != nil {
		return nil, err
	}

	return decodeResource(resp.StatusCode(), resp.Body())
}

func (c *Client) DownloadLink(ctx context.Context, ref PublicRef) (string, int64, error) {
	resp, err := c.execute(ctx, "fetch download link", func(ctx context.Context) (*resty.Response, error) {
		return c.api.R().SetContext(ctx).SetQueryParam("public_key", ref.String()).Get(downloadPath)
	})
	if err != nil {
		return "", 0, err
	}

	// A size the response does not carry stays -1 so callers can tell
	// "unknown" apart from a genuinely empty resource.
	link := downloadLink{Size: -1}
	if err := json.Unmarshal(resp.Body(), &link); err != nil {
		return "", 0, &APIError{StatusCode: resp.StatusCode(), Message: fmt.Sprintf("malformed download link JSON: %v", err)}
	}
	if link.Href == "" {
		return "", 0, &APIError{StatusCode: resp.StatusCode(), Message: fmt.Sprintf("no download URL for %s", ref)}
	}

	return link.Href, link.Size, nil
}

// Stream issues a GET for url, asking for bytes from offset onward when
// offset is positive. It returns the response body together with the
// position the server actually honored: 0 means full content is coming
// and any local prefix must be discarded. The caller owns the reader.
func (c *Client) Stream(ctx context.Context, url string, offset int64) (io.ReadCloser, int64, error) {
	resp, err := c.executeStream(ctx, url, offset)
	if err != nil {
		var apiErr *APIError
		if offset > 0 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			c.log.WithField("url", url).Debugln("Range not satisfiable, restarting from zero")
			resp, err = c.executeStream(ctx, url, 0)
			if err != nil {
				return nil, 0, err
			}
			return resp.RawBody(), 0, nil
		}
		return nil, 0, err
	}

	start := int64(0)
	if resp.StatusCode() == http.StatusPartialContent {
		start = offset
	}
	return resp.RawBody(), start, nil
}

func (c *Client) executeStream(ctx context.Context, url string, offset int64) (*resty.Response, error) {
	return c.execute(ctx, "download", func(ctx context.Context) (*resty.Response, error) {
		req := c.stream.R().SetContext(ctx).SetDoNotParseResponse(true)
		if offset > 0 {
			req.SetHeader("Range", fmt.Sprintf("bytes=%d-", offset))
		}
		return req.Get(url)
	})
}

// execute runs attempt under the shared retry policy: a 429 is retried
// once after the advertised wait, transport failures and 5xx responses
// back off exponentially up to the attempt ceiling, and any other
// non-2xx status is surfaced as an APIError without retrying.
func (c *Client) execute(ctx context.Context, op string, attempt func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	var lastErr error
	failures := 0
	rateLimited := false

	for {
		resp, err := attempt(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case resp.StatusCode() == http.StatusTooManyRequests:
			closeRawBody(resp)
			if rateLimited {
				return nil, fmt.Errorf("%w during %s", ErrRateLimited, op)
			}
			rateLimited = true
			wait := retryAfter(resp)
			c.log.WithFields(logrus.Fields{"operation": op, "wait": wait.String()}).Warnln("Rate limited by API, waiting")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode() >= http.StatusInternalServerError:
			closeRawBody(resp)
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode())
		case resp.IsSuccess():
			return resp, nil
		default:
			return nil, &APIError{StatusCode: resp.StatusCode(), Message: responseBody(resp)}
		}

		failures++
		if failures > c.maxRetries {
			return nil, fmt.Errorf("%w: %s failed after %d attempts: %v", ErrNetwork, op, failures, lastErr)
		}
		wait := c.backoff << (failures - 1)
		c.log.WithFields(logrus.Fields{"operation": op, "attempt": failures, "wait": wait.String()}).Debugln("Transient failure, backing off")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func retryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func responseBody(resp *resty.Response) string {
	if body := resp.Body(); len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	raw := resp.RawBody()
	if raw == nil {
		return ""
	}
	defer raw.Close()
	data, err := io.ReadAll(io.LimitReader(raw, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func closeRawBody(resp *resty.Response) {
	if raw := resp.RawBody(); raw != nil {
		raw.Close()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
