package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/model"
)

// DefaultFeedURL is the Upstox market data feed endpoint.
const DefaultFeedURL = "wss://api.upstox.com/v3/feed/market-data-feed"

// FeedConfig configures FeedClient.
type FeedConfig struct {
	URL         string
	AccessToken string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		URL:               DefaultFeedURL,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// FeedClient implements Streamer over the provider's websocket feed.
type FeedClient struct {
	cfg    FeedConfig
	dialer websocket.Dialer
}

// NewFeedClient fills zero durations in cfg with defaults.
func NewFeedClient(cfg FeedConfig) *FeedClient {
	def := DefaultFeedConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &FeedClient{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
}

type subscribeFrame struct {
	GUID   string        `json:"guid"`
	Method string        `json:"method"`
	Data   subscribeData `json:"data"`
}

type subscribeData struct {
	Mode           string   `json:"mode"`
	InstrumentKeys []string `json:"instrumentKeys"`
}

type tickFrame struct {
	Data []struct {
		InstrumentKey string      `json:"instrument_key"`
		LastPrice     float64     `json:"last_price"`
		LTT           json.Number `json:"ltt"`
	} `json:"data"`
}

// Subscribe connects, subscribes to ids in LTP mode and streams ticks until
// ctx is cancelled. Dropped connections are re-established with exponential
// backoff and the subscription is replayed.
func (f *FeedClient) Subscribe(ctx context.Context, ids []string) (<-chan model.Tick, error) {
	if len(ids) == 0 {
		return nil, errors.New("no instruments to subscribe")
	}
	conn, err := f.connect(ctx, ids)
	if err != nil {
		return nil, err
	}
	ch := make(chan model.Tick, 1024)
	go f.run(ctx, conn, ids, ch)
	return ch, nil
}

func (f *FeedClient) connect(ctx context.Context, ids []string) (*websocket.Conn, error) {
	h := http.Header{}
	if f.cfg.AccessToken != "" {
		h.Set("Authorization", "Bearer "+f.cfg.AccessToken)
	}
	conn, resp, err := f.dialer.DialContext(ctx, f.cfg.URL, h)
	if err != nil {
		pe := &model.ProviderError{Op: "feed dial", Err: err}
		if resp != nil {
			pe.StatusCode = resp.StatusCode
			pe.RateLimited = resp.StatusCode == http.StatusTooManyRequests
		}
		return nil, pe
	}
	frame := subscribeFrame{
		GUID:   "live",
		Method: "sub",
		Data:   subscribeData{Mode: "ltp", InstrumentKeys: ids},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, &model.ProviderError{Op: "feed subscribe", Err: err}
	}
	return conn, nil
}

func (f *FeedClient) run(ctx context.Context, conn *websocket.Conn, ids []string, ch chan<- model.Tick) {
	defer close(ch)
	for {
		err := f.serve(ctx, conn, ch)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("feed disconnected: %v", err)

		delay := f.cfg.ReconnectDelay
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			conn, err = f.connect(ctx, ids)
			if err == nil {
				logger.Info("feed reconnected, resubscribed %d instruments", len(ids))
				break
			}
			if ctx.Err() != nil {
				return
			}
			delay *= 2
			if delay > f.cfg.MaxReconnectDelay {
				delay = f.cfg.MaxReconnectDelay
			}
			logger.Warn("feed reconnect failed: %v, retrying in %s", err, delay)
		}
	}
}

// serve reads one connection until it fails or ctx is cancelled.
func (f *FeedClient) serve(ctx context.Context, conn *websocket.Conn, ch chan<- model.Tick) error {
	var writeMu sync.Mutex
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		conn.Close()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, t := range decodeTicks(msg, time.Now()) {
			select {
			case ch <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decodeTicks parses a feed frame. Unparseable frames yield no ticks.
// ltt is epoch milliseconds; received is used when it is absent.
func decodeTicks(msg []byte, received time.Time) []model.Tick {
	var frame tickFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Debug("feed: skipping frame: %v", err)
		return nil
	}
	ticks := make([]model.Tick, 0, len(frame.Data))
	for _, d := range frame.Data {
		if d.InstrumentKey == "" {
			continue
		}
		t := received
		if ms, err := strconv.ParseInt(d.LTT.String(), 10, 64); err == nil && ms > 0 {
			t = time.UnixMilli(ms)
		}
		ticks = append(ticks, model.Tick{InstrumentID: d.InstrumentKey, Price: d.LastPrice, Time: t})
	}
	return ticks
}
