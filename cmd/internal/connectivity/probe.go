package connectivity

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// HTTPProbe treats any HTTP response as reachable. Only transport failures
// (DNS, refused, timeout) count as offline, matching how the remote client
// separates network errors from API errors.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

// Check issues a HEAD request to URL.
func (p HTTPProbe) Check(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}

// WebSocketProbe keeps one WebSocket connection open and pings it on every check.
// A failed ping drops the connection; the next check redials.
type WebSocketProbe struct {
	URL         string
	DialOptions *websocket.DialOptions

	mu   sync.Mutex
	conn *websocket.Conn
}

// Check dials if needed and pings the connection.
func (p *WebSocketProbe) Check(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, _, err := websocket.Dial(ctx, p.URL, p.DialOptions)
		if err != nil {
			return false
		}
		// Pongs are only processed while something reads the connection.
		conn.CloseRead(context.Background())
		p.conn = conn
	}

	if err := p.conn.Ping(ctx); err != nil {
		_ = p.conn.CloseNow()
		p.conn = nil
		return false
	}
	return true
}

// Close closes the held connection, if any.
func (p *WebSocketProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close(websocket.StatusNormalClosure, "probe closed")
	p.conn = nil
	return err
}
