// Package cdp talks to a browser's remote-debugging surface: the HTTP
// endpoints for discovery and tab control, and the WebSocket event stream
// that carries target lifecycle events.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
)

// Endpoint is one profile's browser debug endpoint, e.g.
// "http://127.0.0.1:9222". An unreachable endpoint means the browser is not
// running; callers treat that as non-fatal.
type Endpoint struct {
	httpBase string
	client   *http.Client
}

// NewEndpoint creates an endpoint client for the given HTTP base URL.
func NewEndpoint(httpBase string) *Endpoint {
	return &Endpoint{
		httpBase: strings.TrimRight(httpBase, "/"),
		client:   http.DefaultClient,
	}
}

// BrowserWSURL fetches the WebSocket debugger URL from /json/version.
func (e *Endpoint) BrowserWSURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.httpBase+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", NewError(CodeCDPUnavailable, "browser not reachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", NewError(CodeCDPUnavailable, fmt.Sprintf("/json/version: HTTP %d", resp.StatusCode), nil)
	}

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

// ListTabs fetches open targets via the HTTP /json endpoint. All target
// kinds are returned; callers filter to "page" targets.
func (e *Endpoint) ListTabs(ctx context.Context) ([]*target.Info, error) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(listCtx, http.MethodGet, e.httpBase+"/json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, NewError(CodeCDPUnavailable, "browser not reachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(CodeCDPUnavailable, fmt.Sprintf("/json: HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	out := make([]*target.Info, 0, len(entries))
	for _, entry := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(entry.ID),
			Type:     entry.Type,
			Title:    entry.Title,
			URL:      entry.URL,
		})
	}
	return out, nil
}

// Activate brings the given tab to the front of its browser window.
func (e *Endpoint) Activate(ctx context.Context, id target.ID) error {
	return e.get(ctx, "/json/activate/"+string(id))
}

// CloseTab asks the browser to close the given tab.
func (e *Endpoint) CloseTab(ctx context.Context, id target.ID) error {
	return e.get(ctx, "/json/close/"+string(id))
}

func (e *Endpoint) get(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return NewError(CodeCDPUnavailable, "browser not reachable", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return NewError(CodeCDPUnavailable, fmt.Sprintf("%s: HTTP %d", path, resp.StatusCode), nil)
	}
	return nil
}
