package cloudclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 8 << 20

// Params are request parameters: the query string for GET and DELETE, a
// form-encoded body otherwise.
type Params map[string]string

// Filters are collection query parameters.
type Filters = Params

func (p Params) values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// resolve turns an href into an absolute URL. Absolute URLs are used verbatim.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if strings.HasPrefix(ref, "/") {
		return base.ResolveReference(u).String(), nil
	}
	return c.baseURL + "/" + ref, nil
}

// send issues one request and returns the response body of a 2xx response.
func (c *Client) send(ctx context.Context, method, target string, params Params) ([]byte, error) {
	target, err := c.resolve(target)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(params) > 0 {
		switch method {
		case http.MethodGet, http.MethodDelete, http.MethodHead:
			u, err := url.Parse(target)
			if err != nil {
				return nil, fmt.Errorf("parse url %q: %w", target, err)
			}
			q := u.Query()
			for k, v := range params {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
			target = u.String()
		default:
			body = strings.NewReader(params.values().Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/xml")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(method, resp, time.Since(start))
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("url", target).Msg("request failed")
		return nil, &BackendFailure{URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &BackendFailure{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, target, data)
	}
	return data, nil
}

// fetch GETs target and parses the response document.
func (c *Client) fetch(ctx context.Context, target string, params Params) (*xmldoc.Element, error) {
	data, err := c.send(ctx, http.MethodGet, target, params)
	if err != nil {
		return nil, err
	}
	doc, err := xmldoc.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, target, err)
	}
	return doc, nil
}

func (c *Client) observe(method string, resp *http.Response, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.ClientRequests.WithLabelValues(method, metrics.StatusClass(status)).Inc()
	c.metrics.ClientRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return strconv.Itoa(code)
}
