// Package client owns the viewer side of the persistent connection: one
// logical connection to the gateway, the reconnect-with-backoff state
// machine, and the snapshot store that feeds inbound messages through the
// reconciler in strict arrival order.
package client
