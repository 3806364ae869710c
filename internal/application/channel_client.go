package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	defaultPairingTTL     = 20 * time.Second
	channelEventBuffer    = 64
)

// ChannelClientOptions tunes the channel client
type ChannelClientOptions struct {
	ReconnectDelay     time.Duration
	DefaultCountryCode string
	// RenderQR turns a pairing code into a displayable image; RenderPairingQR when nil
	RenderQR func(code string) (string, error)
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdLogout
	cmdReconnect
	cmdEvent
)

type channelCommand struct {
	kind  commandKind
	gen   uint64
	event domain.ChannelEvent
	reply chan error
}

// ChannelClient owns the single messaging session of the process.
// Connect, Logout and transport events are serialized through the goroutine started by Run;
// Status and Send only read a snapshot of the state.
type ChannelClient struct {
	transport ports.ChannelTransport
	metrics   ports.MetricsRecorder
	logger    zerolog.Logger
	opts      ChannelClientOptions

	mu     sync.RWMutex
	status domain.ChannelStatus

	requests chan channelCommand
	events   chan channelCommand
	done     chan struct{}
	stopOnce sync.Once

	// Fields below are owned by the Run goroutine
	gen            uint64
	active         bool
	reconnectTimer *time.Timer
}

// NewChannelClient creates a channel client in the disconnected state
func NewChannelClient(
	transport ports.ChannelTransport,
	opts ChannelClientOptions,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *ChannelClient {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.RenderQR == nil {
		opts.RenderQR = RenderPairingQR
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ChannelClient{
		transport: transport,
		metrics:   metrics,
		logger:    logger.With().Str("component", "channel_client").Logger(),
		opts:      opts,
		status: domain.ChannelStatus{
			State: domain.ChannelDisconnected,
			Since: time.Now(),
		},
		requests: make(chan channelCommand),
		events:   make(chan channelCommand, channelEventBuffer),
		done:     make(chan struct{}),
	}
}

// Run processes commands and transport events until ctx is cancelled
func (c *ChannelClient) Run(ctx context.Context) {
	defer c.stopOnce.Do(func() { close(c.done) })
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.requests:
			var err error
			switch cmd.kind {
			case cmdConnect:
				err = c.handleConnect(ctx)
			case cmdLogout:
				err = c.handleLogout(ctx)
			}
			cmd.reply <- err
		case cmd := <-c.events:
			switch cmd.kind {
			case cmdReconnect:
				if cmd.gen != c.gen {
					continue
				}
				c.reconnectTimer = nil
				c.logger.Info().Msg("Reconnecting to messaging network")
				if err := c.handleConnect(ctx); err != nil {
					c.logger.Error().Err(err).Msg("Reconnect attempt failed")
				}
			case cmdEvent:
				c.handleEvent(ctx, cmd.gen, cmd.event)
			}
		}
	}
}

// Connect starts a session if none is active. It is a no-op while pairing or connected.
func (c *ChannelClient) Connect(ctx context.Context) error {
	return c.request(ctx, cmdConnect)
}

// Logout revokes the session, wipes credentials and immediately starts a fresh pairing
func (c *ChannelClient) Logout(ctx context.Context) error {
	return c.request(ctx, cmdLogout)
}

// Status returns the current session snapshot
func (c *ChannelClient) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := c.status
	if status.Pairing != nil {
		token := *status.Pairing
		status.Pairing = &token
	}
	return status
}

// Send delivers one message, with image and caption when image is set.
// Failures are returned to the caller and never retried.
func (c *ChannelClient) Send(ctx context.Context, target string, text string, image *domain.OutboundImage) error {
	if c.Status().State != domain.ChannelConnected {
		return domain.ErrNotConnected
	}

	address, err := NormalizeChannelAddress(target, c.opts.DefaultCountryCode)
	if err != nil {
		return err
	}

	kind := "text"
	if image != nil && len(image.Data) > 0 {
		kind = "image"
		err = c.transport.SendImage(ctx, address, *image, text)
	} else {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: message text is empty", domain.ErrInvalidInput)
		}
		err = c.transport.SendText(ctx, address, text)
	}
	c.metrics.MessageSent(kind, err)

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("address", address).
			Str("kind", kind).
			Msg("Failed to send message")
		return domain.NewExternalAPIError("channel", "send", err)
	}

	c.logger.Debug().Str("address", address).Str("kind", kind).Msg("Message sent")
	return nil
}

func (c *ChannelClient) request(ctx context.Context, kind commandKind) error {
	cmd := channelCommand{kind: kind, reply: make(chan error, 1)}
	select {
	case c.requests <- cmd:
	case <-c.done:
		return errors.New("channel client stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post forwards an event into the loop; it never blocks the caller past shutdown
func (c *ChannelClient) post(cmd channelCommand) {
	select {
	case c.events <- cmd:
	case <-c.done:
	}
}

func (c *ChannelClient) handleConnect(ctx context.Context) error {
	if c.active || c.Status().State != domain.ChannelDisconnected {
		return nil
	}
	c.stopReconnect()

	c.gen++
	gen := c.gen
	sink := func(event domain.ChannelEvent) {
		c.post(channelCommand{kind: cmdEvent, gen: gen, event: event})
	}

	if err := c.transport.Open(ctx, sink); err != nil {
		c.logger.Error().Err(err).Msg("Failed to open messaging transport")
		c.scheduleReconnect()
		return domain.NewExternalAPIError("channel", "connect", err)
	}
	c.active = true

	c.logger.Info().Uint64("generation", gen).Msg("Messaging transport opened")
	return nil
}

func (c *ChannelClient) handleLogout(ctx context.Context) error {
	c.stopReconnect()

	if err := c.transport.Revoke(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to revoke session with remote side")
	}
	c.transport.Close()
	c.active = false
	// Events still in flight from the revoked session are ignored from here on
	c.gen++

	if err := c.transport.WipeCredentials(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Failed to wipe session credentials")
	}
	c.setState(domain.ChannelDisconnected, nil)
	c.logger.Info().Msg("Logged out of messaging network")

	return c.handleConnect(ctx)
}

func (c *ChannelClient) handleEvent(ctx context.Context, gen uint64, event domain.ChannelEvent) {
	if gen != c.gen {
		c.logger.Debug().
			Str("event", string(event.Type)).
			Uint64("generation", gen).
			Msg("Ignoring event from stale transport")
		return
	}

	switch event.Type {
	case domain.ChannelEventChallenge:
		ttl := event.TTL
		if ttl <= 0 {
			ttl = defaultPairingTTL
		}
		token := &domain.PairingToken{
			Code:      event.Code,
			ExpiresAt: time.Now().Add(ttl),
		}
		// Render the code for display
		qr, err := c.opts.RenderQR(event.Code)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to render pairing QR, exposing raw code only")
		} else {
			token.QRDataURL = qr
		}
		c.setState(domain.ChannelPairing, token)
		c.logger.Info().Time("expires_at", token.ExpiresAt).Msg("Pairing challenge received")

	case domain.ChannelEventOpen:
		c.setState(domain.ChannelConnected, nil)
		c.logger.Info().Msg("Messaging session connected")

	case domain.ChannelEventClose:
		c.active = false
		c.transport.Close()
		c.setState(domain.ChannelDisconnected, nil)

		// Remote logout: credentials are dead, never reconnect
		if event.Revoked() {
			c.logger.Warn().Str("reason", event.Reason).Msg("Session revoked by remote side, wiping credentials")
			if err := c.transport.WipeCredentials(ctx); err != nil {
				c.logger.Error().Err(err).Msg("Failed to wipe session credentials")
			}
			return
		}

		c.logger.Warn().
			Str("reason", event.Reason).
			Dur("retry_in", c.opts.ReconnectDelay).
			Msg("Messaging transport closed, scheduling reconnect")
		c.scheduleReconnect()
	}
}

func (c *ChannelClient) scheduleReconnect() {
	c.stopReconnect()
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.post(channelCommand{kind: cmdReconnect, gen: gen})
	})
}

func (c *ChannelClient) stopReconnect() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *ChannelClient) setState(state domain.ChannelState, token *domain.PairingToken) {
	c.mu.Lock()
	changed := c.status.State != state
	c.status.State = state
	c.status.Pairing = token
	if changed {
		c.status.Since = time.Now()
	}
	c.mu.Unlock()

	if changed {
		c.metrics.ChannelStateChanged(state)
	}
}

func (c *ChannelClient) shutdown() {
	c.stopReconnect()
	if c.active {
		c.transport.Close()
		c.active = false
	}
	c.setState(domain.ChannelDisconnected, nil)
}
