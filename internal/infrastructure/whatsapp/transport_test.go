package whatsapp

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"call-companion-core/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

func TestTranslateEvent(t *testing.T) {
	tests := []struct {
		name   string
		evt    interface{}
		want   domain.ChannelEvent
		wantOK bool
	}{
		{name: "connected", evt: &events.Connected{}, want: domain.ChannelEvent{Type: domain.ChannelEventOpen}, wantOK: true},
		{name: "logged out", evt: &events.LoggedOut{}, want: domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonRevoked}, wantOK: true},
		{name: "replaced", evt: &events.StreamReplaced{}, want: domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonReplaced}, wantOK: true},
		{name: "disconnected", evt: &events.Disconnected{}, want: domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonNetwork}, wantOK: true},
		{
			name:   "connect failure logged out",
			evt:    &events.ConnectFailure{Reason: events.ConnectFailureLoggedOut},
			want:   domain.ChannelEvent{Type: domain.ChannelEventClose, Reason: domain.CloseReasonRevoked},
			wantOK: true,
		},
		{name: "unrelated", evt: &events.Message{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateEvent(tt.evt)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTranslateQR(t *testing.T) {
	got, ok := translateQR(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@abc", Timeout: 60 * time.Second})
	assert.True(t, ok)
	assert.Equal(t, domain.ChannelEvent{Type: domain.ChannelEventChallenge, Code: "2@abc", TTL: 60 * time.Second}, got)

	got, ok = translateQR(whatsmeow.QRChannelTimeout)
	assert.True(t, ok)
	assert.Equal(t, domain.CloseReasonPairingTimeout, got.Reason)

	_, ok = translateQR(whatsmeow.QRChannelSuccess)
	assert.False(t, ok)

	got, ok = translateQR(whatsmeow.QRChannelItem{Event: "error", Error: errors.New("pair failed")})
	assert.True(t, ok)
	assert.Equal(t, domain.CloseReasonNetwork, got.Reason)
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(zerolog.New(&buf)).Sub("Client")

	log.Infof("connected to %s", "server")
	assert.Contains(t, buf.String(), `"module":"Client"`)
	assert.Contains(t, buf.String(), "connected to server")
}
