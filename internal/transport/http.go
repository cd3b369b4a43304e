package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
)

// HTTP sends frames whose uri is "METHOD /path". The method defaults to GET.
type HTTP struct {
	// BaseURL is prepended to relative paths.
	BaseURL string
	// Headers are sent with every request; the frame's header bag wins.
	Headers map[string]string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// Send implements reel.Sender.
func (h *HTTP) Send(ctx context.Context, _ frame.Protocol, req frame.Request) (doc.Value, error) {
	method, target := splitURI(req.URI)
	url := target
	if !strings.Contains(target, "://") {
		url = strings.TrimRight(h.BaseURL, "/") + "/" + strings.TrimLeft(target, "/")
	}

	var body io.Reader
	if req.Body != nil {
		if _, isNull := req.Body.(doc.Null); !isNull {
			data, err := doc.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
			body = bytes.NewReader(data)
		}
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	hreq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h.Headers {
		hreq.Header.Set(k, v)
	}
	if hdr, ok := req.Etc["header"].(doc.Object); ok {
		for _, k := range hdr.SortedKeys() {
			v, err := textValue(hdr[k])
			if err != nil {
				return nil, fmt.Errorf("header %s: %w", k, err)
			}
			hreq.Header.Set(k, v)
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger(h.Logger).Debug("http request", "method", method, "url", url)

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger(h.Logger).Debug("http response", "status", resp.StatusCode, "bytes", len(raw))

	observed := doc.Object{
		"status": doc.Int(resp.StatusCode),
		"header": headerDocument(resp.Header),
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if v, err := doc.Decode(raw); err == nil {
			observed["body"] = v
		} else {
			observed["body"] = doc.String(raw)
		}
	}
	return observed, nil
}

// splitURI splits "POST /users" into method and target.
func splitURI(uri string) (string, string) {
	uri = strings.TrimSpace(uri)
	if i := strings.IndexByte(uri, ' '); i > 0 {
		return strings.ToUpper(uri[:i]), strings.TrimSpace(uri[i+1:])
	}
	return http.MethodGet, uri
}

func headerDocument(h http.Header) doc.Object {
	out := make(doc.Object, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out[k] = doc.String(strings.Join(h.Values(k), ", "))
	}
	return out
}

// textValue renders a bag entry as a header or metadata value.
func textValue(v doc.Value) (string, error) {
	if s, ok := v.(doc.String); ok {
		return string(s), nil
	}
	b, err := doc.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
