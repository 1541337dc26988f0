package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/firetv-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultPingTimeout is the maximum time to wait for the initial health ping.
	defaultPingTimeout = 10 * time.Second
)

// Client wraps influxdb-client-go for recording device state history.
//
// Writes are asynchronous and batched: points go into an in-memory buffer
// and are flushed when the batch fills or the flush interval elapses. A
// failed InfluxDB write never fails the device operation that produced it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	connMu    sync.RWMutex

	// onError receives asynchronous write failures (optional).
	onError    func(err error)
	callbackMu sync.RWMutex

	// done stops the error-drain goroutine on Close.
	done chan struct{}
}

// Connect establishes a connection to InfluxDB and verifies it with a ping.
//
// Returns ErrDisabled without connecting when the config disables InfluxDB,
// letting callers treat history recording as strictly optional.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000)) // milliseconds

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("%w: ping returned not ready", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
		done:      make(chan struct{}),
	}

	go c.drainWriteErrors()

	return c, nil
}

// drainWriteErrors consumes the async write error channel. Without a
// consumer the channel blocks the write API's retry goroutine.
func (c *Client) drainWriteErrors() {
	errCh := c.writeAPI.Errors()
	for {
		select {
		case err, open := <-errCh:
			if !open {
				return
			}
			c.callbackMu.RLock()
			callback := c.onError
			c.callbackMu.RUnlock()
			if callback != nil && err != nil {
				callback(err)
			}
		case <-c.done:
			return
		}
	}
}

// Close flushes pending writes and releases the connection.
func (c *Client) Close() error {
	c.connMu.Lock()
	if !c.connected {
		c.connMu.Unlock()
		return nil
	}
	c.connected = false
	c.connMu.Unlock()

	close(c.done)
	c.writeAPI.Flush()
	c.client.Close()

	return nil
}

// Flush forces all buffered points to be written immediately.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// HealthCheck verifies InfluxDB is reachable and ready.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb health check: %w", ErrNotConnected)
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// SetOnError sets a callback invoked for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.callbackMu.Lock()
	c.onError = callback
	c.callbackMu.Unlock()
}
