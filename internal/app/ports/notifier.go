package ports

import "context"

type Notifier interface {
	Notify(ctx context.Context, address, subject, body string) error
}
