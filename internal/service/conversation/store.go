// Package conversation is the pairwise encrypted conversation store.
//
// A thread between two parties is identified by pairing.ThreadID and its
// whole history lives in one sealed envelope (package envelope) keyed by
// pairkey.Derive. Every mutation decrypts the history, edits it and reseals
// it while holding the thread's lock. Membership is checked against the
// thread record on every call; authentication of the caller is the job of
// whoever calls into this package.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/model"
	"pairchat/internal/protocol/pairing"
	"pairchat/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// MetadataStore holds one ThreadRecord per thread and the audit trail.
	// GetThread returns nil, nil for an unknown thread. CreateThread must
	// be insert-if-absent and report whether it inserted.
	MetadataStore interface {
		GetThread(ctx context.Context, id model.ThreadID) (*model.ThreadRecord, error)
		CreateThread(ctx context.Context, rec *model.ThreadRecord) (bool, error)
		TouchThread(ctx context.Context, id model.ThreadID, at time.Time) error
		RecordAudit(ctx context.Context, entry model.AuditEntry) error
	}

	// BlobStore keeps the sealed envelope of each thread. Read reports a
	// missing blob with an error matching fs.ErrNotExist.
	BlobStore interface {
		Read(ctx context.Context, id model.ThreadID) ([]byte, error)
		Write(ctx context.Context, id model.ThreadID, b []byte) error
		Exists(ctx context.Context, id model.ThreadID) (bool, error)
	}

	Directory interface {
		Exists(ctx context.Context, id model.PartyID) (bool, error)
	}

	Notifier interface {
		Notify(ctx context.Context, to model.PartyID, ev model.Event) error
	}

	Options struct {
		// OpTimeout bounds an operation whose ctx carries no deadline.
		OpTimeout      time.Duration
		StorageRetries int
		RetryBackoff   time.Duration

		// Directory, when set, must know the counterpart of a new thread.
		Directory Directory
		// Notifier, when set, is told about mutations of a thread.
		Notifier Notifier
		// Locker, when set, is taken in addition to the in-process lock,
		// e.g. a RedisLocker shared by several processes.
		Locker Locker

		Now   func() time.Time
		NewID func() string
	}

	Store struct {
		meta  MetadataStore
		blobs BlobStore
		local *KeyedMutex
		opts  Options
	}
)

func New(meta MetadataStore, blobs BlobStore, opts Options) *Store {
	if opts.StorageRetries < 0 {
		opts.StorageRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{
		meta:  meta,
		blobs: blobs,
		local: NewKeyedMutex(),
		opts:  opts,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.opts.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

func (s *Store) lock(ctx context.Context, id model.ThreadID) (func(), error) {
	unlockLocal, err := s.local.Lock(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: lock thread %s: %w", ErrStorage, id, err)
	}
	if s.opts.Locker == nil {
		return unlockLocal, nil
	}

	unlockShared, err := s.opts.Locker.Lock(ctx, string(id))
	if err != nil {
		unlockLocal()
		return nil, fmt.Errorf("%w: lock thread %s: %w", ErrStorage, id, err)
	}
	return func() {
		unlockShared()
		unlockLocal()
	}, nil
}

func (s *Store) getThread(ctx context.Context, id model.ThreadID) (*model.ThreadRecord, error) {
	var rec *model.ThreadRecord
	err := s.retry(ctx, "get thread", func(ctx context.Context) error {
		var err error
		rec, err = s.meta.GetThread(ctx, id)
		return err
	})
	return rec, err
}

// thread resolves a thread id for an existing thread. Ids that pairing
// could not have produced name no thread.
func (s *Store) thread(ctx context.Context, id model.ThreadID) (model.NormalizedPair, *model.ThreadRecord, error) {
	pair, err := pairing.Parse(id)
	if err != nil {
		return model.NormalizedPair{}, nil, fmt.Errorf("%w: thread %q", ErrNotFound, id)
	}
	rec, err := s.getThread(ctx, id)
	if err != nil {
		return pair, nil, err
	}
	return pair, rec, nil
}

func authorize(rec *model.ThreadRecord, party model.PartyID) error {
	if !rec.IsParticipant(party) {
		return fmt.Errorf("%w: party %d in thread %s", ErrForbidden, party, rec.ThreadID)
	}
	return nil
}

// ensureThread moves a thread from Absent to Created: it inserts the
// record if needed and seeds an empty envelope if none exists.
func (s *Store) ensureThread(ctx context.Context, pair model.NormalizedPair, id model.ThreadID, actor model.PartyID) (*model.ThreadRecord, error) {
	rec, err := s.getThread(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		now := s.opts.Now()
		candidate := &model.ThreadRecord{
			ThreadID:       id,
			Participant1:   pair.Low,
			Participant2:   pair.High,
			CreatedAt:      now,
			LastActivityAt: now,
		}

		var created bool
		err := s.retry(ctx, "create thread", func(ctx context.Context) error {
			var err error
			created, err = s.meta.CreateThread(ctx, candidate)
			return err
		})
		if err != nil {
			return nil, err
		}

		if created {
			rec = candidate
			log.Info("thread created", zap.String("thread_id", string(id)), zap.Int64("party_id", int64(actor)))
			s.audit(ctx, actor, model.AuditThreadCreated, id)
		} else {
			// lost the race to a concurrent creator
			rec, err = s.getThread(ctx, id)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, fmt.Errorf("%w: thread %s vanished after create", ErrStorage, id)
			}
		}
	}

	if err := s.seed(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// seed writes the sealed empty history of a thread that has none yet.
func (s *Store) seed(ctx context.Context, rec *model.ThreadRecord) error {
	exists, err := s.blobExists(ctx, rec.ThreadID)
	if err != nil || exists {
		return err
	}

	unlock, err := s.lock(ctx, rec.ThreadID)
	if err != nil {
		return err
	}
	defer unlock()

	if exists, err = s.blobExists(ctx, rec.ThreadID); err != nil || exists {
		return err
	}
	return s.save(ctx, rec, []model.Message{})
}

func (s *Store) blobExists(ctx context.Context, id model.ThreadID) (bool, error) {
	var exists bool
	err := s.retry(ctx, "stat envelope", func(ctx context.Context) error {
		var err error
		exists, err = s.blobs.Exists(ctx, id)
		return err
	})
	return exists, err
}

// OpenOrCreate returns the thread between self and other, creating it on
// first contact. Calling it with the arguments swapped yields the same id.
func (s *Store) OpenOrCreate(ctx context.Context, self, other model.PartyID) (model.ThreadID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair, id, err := pairing.Derive(self, other)
	if err != nil {
		return "", err
	}

	if s.opts.Directory != nil {
		var exists bool
		err := s.retry(ctx, "lookup party", func(ctx context.Context) error {
			var err error
			exists, err = s.opts.Directory.Exists(ctx, other)
			return err
		})
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("%w: party %d", ErrNotFound, other)
		}
	}

	if _, err := s.ensureThread(ctx, pair, id, self); err != nil {
		return "", err
	}
	return id, nil
}

// Append adds a message from sender to the thread and returns it. An
// unknown thread whose id names sender as a participant is created first.
func (s *Store) Append(ctx context.Context, id model.ThreadID, sender model.PartyID, content string) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair, rec, err := s.thread(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil && !pair.Has(sender) {
		return nil, fmt.Errorf("%w: party %d in thread %s", ErrForbidden, sender, id)
	}
	if rec != nil {
		if err := authorize(rec, sender); err != nil {
			return nil, err
		}
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if rec == nil {
		if rec, err = s.ensureThread(ctx, pair, id, sender); err != nil {
			return nil, err
		}
	}

	var msg model.Message
	err = s.mutate(ctx, rec, func(msgs []model.Message) ([]model.Message, bool, error) {
		msg = model.Message{
			MessageID: s.opts.NewID(),
			SenderID:  sender,
			Content:   content,
			CreatedAt: s.opts.Now(),
		}
		return append(msgs, msg), true, nil
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, rec.ThreadID, msg.CreatedAt)
	s.audit(ctx, sender, model.AuditMessageSent, rec.ThreadID)
	s.notify(ctx, rec, sender, model.EventNewMessage, msg.MessageID)
	return &msg, nil
}

// Read returns one page of the thread history, most recent first.
func (s *Store) Read(ctx context.Context, id model.ThreadID, requester model.PartyID, limit, offset int) (*model.Page, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, rec, err := s.thread(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, id)
	}
	if err := authorize(rec, requester); err != nil {
		return nil, err
	}

	msgs, err := s.load(ctx, rec)
	if err != nil {
		return nil, err
	}

	sorted := newestFirst(msgs)
	total := len(sorted)
	// offset may be anywhere up to MaxInt, so never add it to limit
	start := min(offset, total)
	end := start + min(limit, total-start)

	page := make([]model.Message, 0, end-start)
	for _, m := range sorted[start:end] {
		if m.Deleted {
			m.Content = ""
		}
		page = append(page, m)
	}

	return &model.Page{
		ThreadID:      rec.ThreadID,
		Participant1:  rec.Participant1,
		Participant2:  rec.Participant2,
		Messages:      page,
		TotalCount:    total,
		Limit:         limit,
		Offset:        offset,
		HasMore:       end < total,
		ReturnedCount: len(page),
	}, nil
}

// MarkRead flags every message reader received in the thread as read and
// returns how many changed.
func (s *Store) MarkRead(ctx context.Context, id model.ThreadID, reader model.PartyID) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.existing(ctx, id, reader)
	if err != nil {
		return 0, err
	}

	changed := 0
	err = s.mutate(ctx, rec, func(msgs []model.Message) ([]model.Message, bool, error) {
		for i := range msgs {
			if msgs[i].SenderID != reader && !msgs[i].Read {
				msgs[i].Read = true
				changed++
			}
		}
		return msgs, changed > 0, nil
	})
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		s.audit(ctx, reader, model.AuditMessagesRead, rec.ThreadID)
		s.notify(ctx, rec, reader, model.EventMessagesRead, "")
	}
	return changed, nil
}

// EditMessage replaces the content of one of editor's own messages.
func (s *Store) EditMessage(ctx context.Context, id model.ThreadID, editor model.PartyID, messageID, content string) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.existing(ctx, id, editor)
	if err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	var edited model.Message
	err = s.mutate(ctx, rec, func(msgs []model.Message) ([]model.Message, bool, error) {
		i := indexOf(msgs, messageID)
		if i < 0 || msgs[i].Deleted {
			return nil, false, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		if msgs[i].SenderID != editor {
			return nil, false, fmt.Errorf("%w: message %s belongs to another party", ErrForbidden, messageID)
		}
		now := s.opts.Now()
		msgs[i].Content = content
		msgs[i].Edited = true
		msgs[i].EditedAt = &now
		edited = msgs[i]
		return msgs, true, nil
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, rec.ThreadID, *edited.EditedAt)
	s.audit(ctx, editor, model.AuditMessageEdited, rec.ThreadID)
	s.notify(ctx, rec, editor, model.EventMessageEdited, edited.MessageID)
	return &edited, nil
}

// DeleteMessage flags one of requester's own messages as deleted. The
// message stays in the sealed history.
func (s *Store) DeleteMessage(ctx context.Context, id model.ThreadID, requester model.PartyID, messageID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.existing(ctx, id, requester)
	if err != nil {
		return err
	}

	deleted := false
	err = s.mutate(ctx, rec, func(msgs []model.Message) ([]model.Message, bool, error) {
		i := indexOf(msgs, messageID)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		if msgs[i].SenderID != requester {
			return nil, false, fmt.Errorf("%w: message %s belongs to another party", ErrForbidden, messageID)
		}
		deleted = !msgs[i].Deleted
		msgs[i].Deleted = true
		return msgs, deleted, nil
	})
	if err != nil || !deleted {
		return err
	}

	s.audit(ctx, requester, model.AuditMessageDeleted, rec.ThreadID)
	s.notify(ctx, rec, requester, model.EventMessageDeleted, messageID)
	return nil
}

// existing resolves a thread that must already exist and checks party
// belongs to it.
func (s *Store) existing(ctx context.Context, id model.ThreadID, party model.PartyID) (*model.ThreadRecord, error) {
	_, rec, err := s.thread(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, id)
	}
	if err := authorize(rec, party); err != nil {
		return nil, err
	}
	return rec, nil
}

// touch, audit and notify run after the history is durable. Their failure
// is logged and does not fail the operation, so a caller never retries a
// mutation that already happened.

func (s *Store) touch(ctx context.Context, id model.ThreadID, at time.Time) {
	if err := s.meta.TouchThread(ctx, id, at); err != nil {
		log.Warn("update thread activity failed", zap.String("thread_id", string(id)), zap.Error(err))
	}
}

func (s *Store) audit(ctx context.Context, party model.PartyID, action model.AuditAction, id model.ThreadID) {
	entry := model.AuditEntry{PartyID: party, Action: action, ThreadID: id, At: s.opts.Now()}
	if err := s.meta.RecordAudit(ctx, entry); err != nil {
		log.Warn("record audit entry failed",
			zap.String("thread_id", string(id)), zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *Store) notify(ctx context.Context, rec *model.ThreadRecord, from model.PartyID, typ string, messageID string) {
	if s.opts.Notifier == nil {
		return
	}
	to := rec.Pair().Other(from)
	ev := model.Event{Type: typ, ThreadID: rec.ThreadID, From: from, MessageID: messageID}
	if err := s.opts.Notifier.Notify(ctx, to, ev); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("notify participant failed",
			zap.String("thread_id", string(rec.ThreadID)), zap.Int64("party_id", int64(to)), zap.Error(err))
	}
}
