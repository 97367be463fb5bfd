// Package stream implements the push-stream connection layer.
//
// The Manager:
//   - Owns the single multiplexed WebSocket stream (one open or opening at a time)
//   - Runs the idle/connecting/connected/reconnecting/failed state machine
//   - Schedules reconnects with capped exponential backoff and a bounded
//     attempt/duration budget; an exhausted budget parks it in failed until Retry
//   - Captures the server-assigned connectionId and fans stream events out to
//     attached handlers (topic registry, auxiliary routers)
package stream
