package middleware

import (
	"golang.org/x/time/rate"
)

// MessageLimits: per-connection limits applied to inbound WebSocket frames
type MessageLimits struct {
	MaxMessageSize    int
	MessagesPerSecond float64
	BurstSize         int
}

func NewMessageLimits(maxMessageSize int, messagesPerSecond float64, burstSize int) MessageLimits {
	return MessageLimits{
		MaxMessageSize:    maxMessageSize,
		MessagesPerSecond: messagesPerSecond,
		BurstSize:         burstSize,
	}
}

// ValidateMessageSize: checks if a message is within the size limit
func (ml MessageLimits) ValidateMessageSize(msgSize int) bool {
	return ml.MaxMessageSize <= 0 || msgSize <= ml.MaxMessageSize
}

// ReadLimit: hard cap handed to the socket; frames above it kill the connection
// while frames between MaxMessageSize and ReadLimit are only dropped
func (ml MessageLimits) ReadLimit() int64 {
	if ml.MaxMessageSize <= 0 {
		return 0
	}
	return int64(ml.MaxMessageSize) * 4
}

// NewSessionLimiter: a fresh token bucket for one connection
func (ml MessageLimits) NewSessionLimiter() *rate.Limiter {
	if ml.MessagesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := ml.BurstSize
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ml.MessagesPerSecond), burst)
}
