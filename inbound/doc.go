// Package inbound receives webhook deliveries from payment providers:
// it verifies the provider's HMAC signature against the secret captured
// at registration time, dedupes redeliveries, and hands the payload to
// a host-registered handler.
package inbound
