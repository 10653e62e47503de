package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"pairchat/internal/model"
	"pairchat/internal/protocol/envelope"
	"pairchat/internal/utils/log"

	"go.uber.org/zap"
)

// decodeMessages parses a decrypted history. An empty or unparseable body is
// an empty history; a lone object is a one message history.
func decodeMessages(id model.ThreadID, pt []byte) []model.Message {
	body := bytes.TrimSpace(pt)
	if len(body) == 0 {
		return []model.Message{}
	}

	switch body[0] {
	case '[':
		var msgs []model.Message
		if err := json.Unmarshal(body, &msgs); err == nil {
			if msgs == nil {
				msgs = []model.Message{}
			}
			return msgs
		}
	case '{':
		var msg model.Message
		if err := json.Unmarshal(body, &msg); err == nil {
			return []model.Message{msg}
		}
	}

	log.Warn("unparseable thread history, treating as empty", zap.String("thread_id", string(id)))
	return []model.Message{}
}

func encodeMessages(msgs []model.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []model.Message{}
	}
	return json.Marshal(msgs)
}

// load opens the thread envelope. A thread whose envelope was never written
// has an empty history.
func (s *Store) load(ctx context.Context, rec *model.ThreadRecord) ([]model.Message, error) {
	var raw []byte
	err := s.retry(ctx, "read envelope", func(ctx context.Context) error {
		var err error
		raw, err = s.blobs.Read(ctx, rec.ThreadID)
		return err
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	env, err := envelope.Unmarshal(raw)
	if err != nil {
		log.Warn("thread envelope failed to open", zap.String("thread_id", string(rec.ThreadID)))
		return nil, err
	}
	pt, err := envelope.OpenPair(rec.Pair(), env)
	if err != nil {
		log.Warn("thread envelope failed to open", zap.String("thread_id", string(rec.ThreadID)))
		return nil, err
	}
	return decodeMessages(rec.ThreadID, pt), nil
}

func (s *Store) save(ctx context.Context, rec *model.ThreadRecord, msgs []model.Message) error {
	pt, err := encodeMessages(msgs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	env, err := envelope.SealPair(rec.Pair(), pt)
	if err != nil {
		return err
	}
	raw, err := envelope.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return s.retry(ctx, "write envelope", func(ctx context.Context) error {
		return s.blobs.Write(ctx, rec.ThreadID, raw)
	})
}

// mutation edits a decrypted history in place. It reports whether the
// history changed and needs resealing.
type mutation func(msgs []model.Message) ([]model.Message, bool, error)

// mutate runs open, fn, reseal under the thread lock so that no concurrent
// mutation of the same thread can be overwritten.
func (s *Store) mutate(ctx context.Context, rec *model.ThreadRecord, fn mutation) error {
	unlock, err := s.lock(ctx, rec.ThreadID)
	if err != nil {
		return err
	}
	defer unlock()

	msgs, err := s.load(ctx, rec)
	if err != nil {
		return err
	}
	updated, dirty, err := fn(msgs)
	if err != nil || !dirty {
		return err
	}
	return s.save(ctx, rec, updated)
}

// newestFirst returns a copy of msgs ordered by timestamp, most recent first.
// Messages with equal timestamps keep reverse insertion order.
func newestFirst(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func indexOf(msgs []model.Message, id string) int {
	for i := range msgs {
		if msgs[i].MessageID == id {
			return i
		}
	}
	return -1
}
