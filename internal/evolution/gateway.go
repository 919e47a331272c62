// Package evolution sends WhatsApp text messages through the Evolution API.
package evolution

import (
	"context"
	"time"
)

// MessagingGateway abstracts outbound WhatsApp delivery for the dispatch
// pipeline. IsConfigured reports whether the gateway has the connection
// settings it needs; dispatch treats an unconfigured gateway as a terminal
// configuration failure rather than attempting sends.
type MessagingGateway interface {
	SendText(ctx context.Context, number, text string) error
	IsConfigured() bool
}

// NoopGateway is a disabled gateway for environments without messaging
// credentials.
type NoopGateway struct{}

func (NoopGateway) SendText(context.Context, string, string) error { return nil }
func (NoopGateway) IsConfigured() bool                             { return false }

const (
	typingMillisPerChar = 35
	minTypingDelay      = 800 * time.Millisecond
	maxTypingDelay      = 5 * time.Second
)

// EstimateTypingDelay approximates how long a human would take to type the
// message, bounded so long replies do not stall the conversation.
func EstimateTypingDelay(text string) time.Duration {
	d := time.Duration(len([]rune(text))*typingMillisPerChar) * time.Millisecond
	if d < minTypingDelay {
		return minTypingDelay
	}
	if d > maxTypingDelay {
		return maxTypingDelay
	}
	return d
}
