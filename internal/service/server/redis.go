package server

import (
	"context"
	"encoding/json"
	"fmt"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"

	"go.uber.org/zap"
)

func queueKey(to model.PartyID) string {
	return fmt.Sprintf("to: %d", to)
}

func (s *Hub) GetEventsFromCache(ctx context.Context, to model.PartyID) ([]model.Event, error) {
	if s.queue == nil {
		return nil, nil
	}
	key := queueKey(to)
	vals, err := s.queue.LRange(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Del(ctx, key); err != nil {
		return nil, err
	}

	var res []model.Event
	for _, v := range vals {
		var ev model.Event
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			log.Warn("drop malformed queued event", zap.String("key", key), zap.Error(err))
			continue
		}
		res = append(res, ev)
	}
	return res, nil
}

func (s *Hub) PutEventsToCache(ctx context.Context, to model.PartyID, events []model.Event) error {
	if s.queue == nil {
		log.Debug("no queue configured, dropping events", zap.Int64("party_id", int64(to)))
		return nil
	}
	var vals []any
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		vals = append(vals, data)
	}
	return s.queue.RPush(ctx, queueKey(to), vals...)
}

// ForwardQueuedEvents sends what was queued for a party while it was
// offline. Events that fail to send are queued again.
func (s *Hub) ForwardQueuedEvents(ctx context.Context, to model.PartyID, c *client) error {
	events, err := s.GetEventsFromCache(ctx, to)
	if err != nil {
		return err
	}

	for i, ev := range events {
		if err := c.send(ev); err != nil {
			return s.PutEventsToCache(ctx, to, events[i:])
		}
	}
	return nil
}
