// Package logsink writes notifications to the process log instead of delivering them.
package logsink

import (
	"context"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// Address is used as the approval address when no real topic is configured.
const Address = "log"

type Message struct {
	Address string
	Subject string
	Body    string
}

type Notifier struct {
	mu   sync.Mutex
	sent []Message
}

func New() *Notifier { return &Notifier{} }

func (n *Notifier) Notify(ctx context.Context, address, subject, body string) error {
	hlog.CtxInfof(ctx, "notify address=%q subject=%q body=%q", address, subject, body)
	n.mu.Lock()
	n.sent = append(n.sent, Message{Address: address, Subject: subject, Body: body})
	n.mu.Unlock()
	return nil
}

func (n *Notifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.sent))
	copy(out, n.sent)
	return out
}
