package router

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	f := NewFanout[NotificationEvent]("notification", nil)

	var mu sync.Mutex
	var got []string
	for i := 0; i < 3; i++ {
		f.Subscribe(func(ev NotificationEvent) {
			mu.Lock()
			got = append(got, ev.Title)
			mu.Unlock()
		})
	}

	f.Dispatch(json.RawMessage(`{"id":"n1","title":"backup finished"}`))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(got))
	}
	for _, title := range got {
		if title != "backup finished" {
			t.Errorf("title = %q, want %q", title, "backup finished")
		}
	}
}

func TestFanoutUnsubscribe(t *testing.T) {
	f := NewFanout[ThemeEvent]("theme", nil)

	var calls int
	remove := f.Subscribe(func(ThemeEvent) { calls++ })

	f.Dispatch(json.RawMessage(`{"theme":"dark"}`))
	remove()
	remove() // idempotent
	f.Dispatch(json.RawMessage(`{"theme":"light"}`))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if s := f.Stats(); s.Subscribers != 0 {
		t.Errorf("subscribers = %d, want 0", s.Subscribers)
	}
}

func TestFanoutMalformedPayloadDropped(t *testing.T) {
	f := NewFanout[ProgressEvent]("progress", nil)

	var calls int
	f.Subscribe(func(ProgressEvent) { calls++ })

	f.Dispatch(json.RawMessage(`{"jobId":`))
	f.Dispatch(json.RawMessage(`{"jobId":"j1","fraction":0.5}`))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	s := f.Stats()
	if s.ParseErrors != 1 {
		t.Errorf("parse errors = %d, want 1", s.ParseErrors)
	}
	if s.Delivered != 1 {
		t.Errorf("delivered = %d, want 1", s.Delivered)
	}
}

func TestFanoutPanickingSubscriberIsolated(t *testing.T) {
	f := NewFanout[ServiceStatusEvent]("service-status", nil)

	var after int
	f.Subscribe(func(ServiceStatusEvent) { panic("bad subscriber") })
	f.Subscribe(func(ServiceStatusEvent) { after++ })

	f.Dispatch(json.RawMessage(`{"service":"indexer","status":"degraded"}`))

	if after != 1 {
		t.Errorf("subscriber after panicking one called %d times, want 1", after)
	}
}

func TestSetRoutesByChannel(t *testing.T) {
	s := NewSet(nil)

	var invalidated []string
	s.CacheInvalidate.Subscribe(func(ev CacheInvalidateEvent) {
		invalidated = append(invalidated, ev.Entity)
	})
	var stages []string
	s.Backup.Subscribe(func(ev BackupEvent) {
		stages = append(stages, ev.Stage)
	})

	now := time.Now()
	if !s.HandleStreamEvent(ChannelCacheInvalidate, json.RawMessage(`{"entity":"devices"}`), now) {
		t.Error("cache-invalidate not handled")
	}
	if !s.HandleStreamEvent(ChannelBackup, json.RawMessage(`{"backupId":"b1","stage":"upload"}`), now) {
		t.Error("backup not handled")
	}
	if s.HandleStreamEvent("weather", json.RawMessage(`{}`), now) {
		t.Error("unknown channel reported as handled")
	}

	if len(invalidated) != 1 || invalidated[0] != "devices" {
		t.Errorf("invalidated = %v, want [devices]", invalidated)
	}
	if len(stages) != 1 || stages[0] != "upload" {
		t.Errorf("stages = %v, want [upload]", stages)
	}
}

func TestSetMalformedPayloadStillHandled(t *testing.T) {
	s := NewSet(nil)

	// A recognized channel with a broken payload is this set's problem, not
	// the dispatcher's.
	if !s.HandleStreamEvent(ChannelTheme, json.RawMessage(`not json`), time.Now()) {
		t.Error("recognized channel with bad payload reported as unhandled")
	}
	if got := s.Stats().Theme.ParseErrors; got != 1 {
		t.Errorf("theme parse errors = %d, want 1", got)
	}
}
