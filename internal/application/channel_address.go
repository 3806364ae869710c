package application

import (
	"fmt"
	"strings"

	"call-companion-core/internal/domain"
)

const (
	channelUserServer  = "s.whatsapp.net"
	channelGroupServer = "g.us"

	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// NormalizeChannelAddress turns a phone number or address into the channel's
// "<digits>@<server>" form. Numbers starting with + or 00 are international and kept as dialled;
// ten-digit national numbers get defaultCountryCode prepended.
func NormalizeChannelAddress(target string, defaultCountryCode string) (string, error) {
	t := strings.TrimSpace(target)
	if t == "" {
		return "", fmt.Errorf("%w: empty target", domain.ErrInvalidTarget)
	}

	if user, server, found := strings.Cut(t, "@"); found {
		switch server {
		case channelUserServer:
			if !isDigits(user) || len(user) < minPhoneDigits || len(user) > maxPhoneDigits {
				return "", fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
			}
		case channelGroupServer:
			if user == "" || !isDigits(strings.ReplaceAll(user, "-", "")) {
				return "", fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
			}
		default:
			return "", fmt.Errorf("%w: unsupported server in %q", domain.ErrInvalidTarget, target)
		}
		return user + "@" + server, nil
	}

	international := strings.HasPrefix(t, "+") || strings.HasPrefix(t, "00")

	var b strings.Builder
	for i, r := range t {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
		}
	}

	digits := b.String()
	if international {
		// Already carries its country code
		digits = strings.TrimPrefix(digits, "00")
	} else if defaultCountryCode != "" {
		if len(digits) == 11 && strings.HasPrefix(digits, "0") {
			digits = digits[1:]
		}
		if len(digits) == 10 {
			digits = defaultCountryCode + digits
		}
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
	}

	return digits + "@" + channelUserServer, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
