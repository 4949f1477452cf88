package sqlstore

import "github.com/goliatone/go-webhook-registrar/core"

var (
	_ core.RegistrationStore = (*RegistrationStore)(nil)
	_ core.RegistrationStore = (*CachedRegistrationStore)(nil)
)
