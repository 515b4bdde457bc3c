package notify

import (
	"context"

	"github.com/phonetica/phonauth"
)

// LogNotifier records welcome mails instead of sending them.
type LogNotifier struct {
	Logger phonauth.Logger
}

var _ phonauth.Notifier = LogNotifier{}

func (n LogNotifier) SendWelcome(ctx context.Context, email, name string) error {
	if n.Logger != nil {
		n.Logger.Info(ctx, "welcome mail disabled, not sending", "email", email, "name", name)
	}
	return nil
}
