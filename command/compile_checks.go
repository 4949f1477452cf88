package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterWebhookMessage]    = (*RegisterWebhookCommand)(nil)
	_ gocmd.Commander[DeregisterWebhookMessage]  = (*DeregisterWebhookCommand)(nil)
	_ gocmd.Commander[CheckWebhookStatusMessage] = (*CheckWebhookStatusCommand)(nil)
)
