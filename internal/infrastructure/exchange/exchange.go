package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"arbscan/internal/domain/model"
)

// HTTPError 非 2xx 响应
type HTTPError struct {
	Venue  string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s api error: %d %s", e.Venue, e.Status, e.Body)
}

// Temporary 429 与 5xx 值得重试，其余 4xx 不重试
func (e *HTTPError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// RESTConfig 行情 REST 客户端公共参数
type RESTConfig struct {
	Venue             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 表示不限速
	Retry             Policy
}

// RESTClient 限速 + 重试的 JSON GET 客户端，Binance 与 DexScreener 共用
type RESTClient struct {
	venue   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   Policy
}

func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = Retryable
	}
	return &RESTClient{
		venue:   cfg.Venue,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		retry:   retry,
	}
}

// GetJSON 请求 path 并把响应解码到 out。重试耗尽后的错误包装 model.ErrTransportFailure。
func (c *RESTClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.get(ctx, endpoint, out)
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrTransportFailure, c.venue, path, err)
	}
	return nil
}

func (c *RESTClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Venue: c.venue, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.venue, err)
	}
	return nil
}

// ========== WebSocket ==========

// WSHelper provides common WebSocket functionality
type WSHelper struct {
	URL string
}

// DialWS creates a WebSocket connection with timeout
func (w *WSHelper) DialWS(ctx context.Context) (*websocket.Conn, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(cctx, w.URL, nil)
	return conn, err
}

// ReadWithPing reads WebSocket messages with periodic pings
func (w *WSHelper) ReadWithPing(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMessage(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

// RunWS 断线自动重连，直到 ctx 取消
func (w *WSHelper) RunWS(ctx context.Context, name string, onMessage func([]byte)) {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		log.Info().Str("feed", name).Str("url", w.URL).Msg("ws connecting")
		conn, err := w.DialWS(ctx)
		if err != nil {
			log.Error().Str("feed", name).Err(err).Msg("ws dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = MinDuration(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", name).Msg("ws connected")

		err = w.ReadWithPing(ctx, conn, onMessage)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", name).Err(err).Msg("ws disconnected, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = MinDuration(backoff*2, maxBackoff)
	}
}

// MinDuration returns the minimum of two durations
func MinDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
