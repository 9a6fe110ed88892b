package session

import (
	"github.com/riftlens/riftlens/internal/core"
)

const crucialKey = "crucial"

func softErrorKey(stage core.Stage) string { return "error:" + string(stage) }

type subscriber struct {
	conn      Conn
	delivered map[string]bool
}

// Broadcaster tracks which events each subscriber has already received so
// every key is delivered at most once per subscriber. It is not safe for
// concurrent use; the owning Session serializes access.
type Broadcaster struct {
	stages      []core.Stage
	subscribers map[string]*subscriber
}

// NewBroadcaster returns a broadcaster replaying in the given stage order.
func NewBroadcaster(stages []core.Stage) *Broadcaster {
	return &Broadcaster{
		stages:      stages,
		subscribers: make(map[string]*subscriber),
	}
}

// Add registers conn. Re-adding a known connection keeps its delivered set.
func (b *Broadcaster) Add(conn Conn) {
	if sub, ok := b.subscribers[conn.ID()]; ok {
		sub.conn = conn
		return
	}
	b.subscribers[conn.ID()] = &subscriber{conn: conn, delivered: make(map[string]bool)}
}

// Remove forgets a subscriber. It reports whether it was present.
func (b *Broadcaster) Remove(id string) bool {
	if _, ok := b.subscribers[id]; !ok {
		return false
	}
	delete(b.subscribers, id)
	return true
}

// Reset drops every subscriber.
func (b *Broadcaster) Reset() {
	b.subscribers = make(map[string]*subscriber)
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int { return len(b.subscribers) }

// Delivered reports whether subscriber id has received key.
func (b *Broadcaster) Delivered(id, key string) bool {
	sub, ok := b.subscribers[id]
	return ok && sub.delivered[key]
}

// Broadcast delivers ev under key to every subscriber that has not seen it
// and returns the ids whose Send failed. Failed subscribers are removed.
func (b *Broadcaster) Broadcast(key string, ev Event) []string {
	var failed []string
	for id, sub := range b.subscribers {
		if err := b.deliver(sub, key, ev); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		delete(b.subscribers, id)
	}
	return failed
}

// Replay sends subscriber id everything already produced, in pipeline
// order: each stage's payload when cached, otherwise its soft error marker,
// and the crucial error last.
func (b *Broadcaster) Replay(id string, cache map[core.Stage]any, soft map[core.Stage]*core.StageError, crucial *core.StageError) error {
	sub, ok := b.subscribers[id]
	if !ok {
		return nil
	}
	for _, stage := range b.stages {
		if payload, ok := cache[stage]; ok {
			if err := b.deliver(sub, string(stage), stageEvent(stage, payload)); err != nil {
				delete(b.subscribers, id)
				return err
			}
			continue
		}
		if stageErr, ok := soft[stage]; ok {
			if err := b.deliver(sub, softErrorKey(stage), errorEvent(stageErr)); err != nil {
				delete(b.subscribers, id)
				return err
			}
		}
	}
	if crucial != nil {
		if err := b.deliver(sub, crucialKey, errorEvent(crucial)); err != nil {
			delete(b.subscribers, id)
			return err
		}
	}
	return nil
}

func (b *Broadcaster) deliver(sub *subscriber, key string, ev Event) error {
	if sub.delivered[key] {
		return nil
	}
	if err := sub.conn.Send(ev); err != nil {
		return err
	}
	sub.delivered[key] = true
	return nil
}
