package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	// database/sql drivers for the device store
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNoSession is returned by operations that need a live client
var ErrNoSession = errors.New("no active messaging session")

// StoreConfig locates the SQL database holding device credentials
type StoreConfig struct {
	Dialect string // "sqlite" or "postgres"
	DSN     string
}

// Transport is a messaging-network connection backed by whatsmeow.
// Credentials persist in the SQL device store and survive restarts.
type Transport struct {
	container *sqlstore.Container
	waLogger  waLog.Logger
	logger    zerolog.Logger

	mu       sync.Mutex
	client   *whatsmeow.Client
	cancelQR context.CancelFunc
}

// NewTransport opens the device store and upgrades its schema
func NewTransport(ctx context.Context, cfg StoreConfig, logger zerolog.Logger) (*Transport, error) {
	logger = logger.With().Str("component", "whatsapp_transport").Logger()
	waLogger := NewLogger(logger)

	dialect := cfg.Dialect
	if dialect == "" {
		dialect = "sqlite"
	}
	container, err := sqlstore.New(ctx, dialect, cfg.DSN, waLogger.Sub("Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	return &Transport{
		container: container,
		waLogger:  waLogger,
		logger:    logger,
	}, nil
}

// Open loads the stored device, or a blank one for pairing, and connects
func (t *Transport) Open(ctx context.Context, sink ports.ChannelEventSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.closeLocked()
	}

	device, err := t.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device: %w", err)
	}

	client := whatsmeow.NewClient(device, t.waLogger.Sub("Client"))
	client.EnableAutoReconnect = false
	client.AddEventHandler(func(evt interface{}) {
		if event, ok := translateEvent(evt); ok {
			sink(event)
		}
	})

	if client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(ctx)
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to start pairing: %w", err)
		}
		t.cancelQR = cancel
		go forwardQR(qrChan, sink)
	}

	if err := client.Connect(); err != nil {
		if t.cancelQR != nil {
			t.cancelQR()
			t.cancelQR = nil
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.client = client
	t.logger.Info().Bool("paired", client.Store.ID != nil).Msg("Connecting to messaging network")
	return nil
}

// Close disconnects without touching stored credentials
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Transport) closeLocked() {
	if t.cancelQR != nil {
		t.cancelQR()
		t.cancelQR = nil
	}
	if t.client != nil {
		t.client.Disconnect()
		t.client = nil
	}
}

func (t *Transport) current() (*whatsmeow.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, ErrNoSession
	}
	return t.client, nil
}

// SendText sends a plain text message
func (t *Transport) SendText(ctx context.Context, address string, text string) error {
	client, err := t.current()
	if err != nil {
		return err
	}
	jid, err := types.ParseJID(address)
	if err != nil {
		return fmt.Errorf("failed to parse address %s: %w", address, err)
	}

	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	t.logger.Debug().Str("message_id", string(resp.ID)).Str("to", jid.String()).Msg("Text message acknowledged")
	return nil
}

// SendImage uploads image to the media server and sends it with caption
func (t *Transport) SendImage(ctx context.Context, address string, image domain.OutboundImage, caption string) error {
	client, err := t.current()
	if err != nil {
		return err
	}
	jid, err := types.ParseJID(address)
	if err != nil {
		return fmt.Errorf("failed to parse address %s: %w", address, err)
	}

	uploaded, err := client.Upload(ctx, image.Data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}

	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	}

	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	t.logger.Debug().Str("message_id", string(resp.ID)).Str("to", jid.String()).Msg("Image message acknowledged")
	return nil
}

// Revoke logs the linked device out on the remote side
func (t *Transport) Revoke(ctx context.Context) error {
	client, err := t.current()
	if err != nil {
		return err
	}
	if client.Store.ID == nil {
		return ErrNoSession
	}
	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// WipeCredentials deletes the stored device so the next Open starts a fresh pairing
func (t *Transport) WipeCredentials(ctx context.Context) error {
	t.mu.Lock()
	var device *store.Device
	if t.client != nil {
		device = t.client.Store
	}
	t.mu.Unlock()

	if device == nil {
		var err error
		device, err = t.container.GetFirstDevice(ctx)
		if err != nil {
			return fmt.Errorf("failed to load device: %w", err)
		}
	}
	if device.ID == nil {
		return nil
	}

	if err := device.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete device credentials: %w", err)
	}
	t.logger.Info().Msg("Device credentials wiped")
	return nil
}

func forwardQR(items <-chan whatsmeow.QRChannelItem, sink ports.ChannelEventSink) {
	for item := range items {
		if event, ok := translateQR(item); ok {
			sink(event)
		}
	}
}

// translateQR maps pairing-channel items to channel events
func translateQR(item whatsmeow.QRChannelItem) (domain.ChannelEvent, bool) {
	switch {
	case item.Event == whatsmeow.QRChannelEventCode:
		return domain.ChannelEvent{Type: domain.ChannelEventChallenge, Code: item.Code, TTL: item.Timeout}, true
	case item == whatsmeow.QRChannelTimeout:
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonPairingTimeout}, true
	case item == whatsmeow.QRChannelSuccess:
		// Connected follows on the event handler
		return domain.ChannelEvent{}, false
	case item.Error != nil || strings.HasPrefix(item.Event, "err"):
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonNetwork}, true
	}
	return domain.ChannelEvent{}, false
}

// translateEvent maps whatsmeow connection events to channel events
func translateEvent(evt interface{}) (domain.ChannelEvent, bool) {
	switch v := evt.(type) {
	case *events.Connected:
		return domain.ChannelEvent{Type: domain.ChannelEventOpen}, true
	case *events.LoggedOut:
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonRevoked}, true
	case *events.StreamReplaced:
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonReplaced}, true
	case *events.ConnectFailure:
		if v.Reason.IsLoggedOut() {
			return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonRevoked}, true
		}
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonNetwork}, true
	case *events.Disconnected, *events.TemporaryBan, *events.StreamError:
		return domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonNetwork}, true
	}
	return domain.ChannelEvent{}, false
}
