// Package sidechannel implements the request/response API used alongside the
// push stream: topic subscribe/unsubscribe registration and the push-endpoint
// link call. All calls require the connectionId assigned by the server on
// stream open.
package sidechannel
