package sidechannel

import "context"

type subscribeRequest struct {
	ConnectionID string `json:"connectionId"`
	Topic        string `json:"topic"`
}

type pushEndpointRequest struct {
	ConnectionID string `json:"connectionId"`
	DeviceID     string `json:"deviceId"`
	PushEndpoint string `json:"pushEndpoint"`
}

// Subscribe registers this connection for a topic's stream events.
func (c *Client) Subscribe(ctx context.Context, connectionID, topic string) error {
	return c.post(ctx, "/sync/subscribe", subscribeRequest{
		ConnectionID: connectionID,
		Topic:        topic,
	})
}

// Unsubscribe removes this connection's registration for a topic.
func (c *Client) Unsubscribe(ctx context.Context, connectionID, topic string) error {
	return c.post(ctx, "/sync/unsubscribe", subscribeRequest{
		ConnectionID: connectionID,
		Topic:        topic,
	})
}

// LinkPushEndpoint reports this device's push delivery endpoint so the server
// can suppress duplicate push notifications while the stream is live.
func (c *Client) LinkPushEndpoint(ctx context.Context, connectionID, deviceID, endpoint string) error {
	return c.post(ctx, "/sync/push-endpoint", pushEndpointRequest{
		ConnectionID: connectionID,
		DeviceID:     deviceID,
		PushEndpoint: endpoint,
	})
}
