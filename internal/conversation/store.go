// Package conversation owns the ordered message history of a tutoring chat
// and mirrors it to a durable key/value slot.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/storage"
)

// DefaultKey is the storage slot holding the conversation.
const DefaultKey = "mathgpt-conversation"

// Sender identifies who wrote a message.
type Sender string

const (
	User      Sender = "user"
	Assistant Sender = "assistant"

	// legacyAssistant is how older conversations stored assistant replies.
	legacyAssistant = "ai"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == User || s == Assistant
}

// Message is one entry of a conversation. Order is append order, not
// timestamp order.
type Message struct {
	ID        string
	Content   string
	Sender    Sender
	Timestamp time.Time
}

// Storage is the durable slot the store mirrors itself to.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	Key             string
	UserLabel       string
	ProductLabel    string
	TimestampLayout string
	Location        *time.Location
	ClearRetries    int
	ClearBackoff    time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
}

func (o *Options) setDefaults() {
	if o.Key == "" {
		o.Key = DefaultKey
	}
	if o.UserLabel == "" {
		o.UserLabel = "You"
	}
	if o.ProductLabel == "" {
		o.ProductLabel = "MathGPT"
	}
	if o.TimestampLayout == "" {
		o.TimestampLayout = "2006-01-02 15:04:05"
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.ClearRetries <= 0 {
		o.ClearRetries = 3
	}
	if o.ClearBackoff <= 0 {
		o.ClearBackoff = 100 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store is the single owner of a conversation.
//
// Reads take only mu and never wait for storage I/O. Mutations are
// serialized by writeMu, which is held across the durable write so slot
// writes happen in mutation order.
type Store struct {
	storage Storage
	opts    Options
	log     *zap.Logger

	writeMu sync.Mutex

	mu         sync.RWMutex
	messages   []Message
	ids        map[string]struct{}
	generation uint64
}

// Open creates a store and loads any conversation saved in st. A missing or
// unreadable slot yields an empty conversation.
func Open(st Storage, opts Options) *Store {
	opts.setDefaults()
	s := &Store{
		storage: st,
		opts:    opts,
		log:     opts.Logger.With(zap.String("component", "conversation"), zap.String("key", opts.Key)),
		ids:     make(map[string]struct{}),
	}
	s.load()
	return s
}

// Append adds msg to the end of the conversation and returns the stored
// copy. An empty ID is assigned; a duplicate one is replaced. A zero
// Timestamp is set to now. Memory is updated before Append returns; a
// failed durable write is logged, not returned.
func (s *Store) Append(msg Message) (Message, error) {
	if !msg.Sender.Valid() {
		return Message{}, mgErrors.NewValidationError("sender", "unknown sender", string(msg.Sender), nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stored, data := s.appendLocked(msg)
	s.persist(data)
	return stored, nil
}

// AppendIfCurrent appends msg only if the conversation is still at
// generation gen. It reports whether msg was appended. Responses to requests
// issued before a Clear are dropped this way.
func (s *Store) AppendIfCurrent(gen uint64, msg Message) (Message, bool, error) {
	if !msg.Sender.Valid() {
		return Message{}, false, mgErrors.NewValidationError("sender", "unknown sender", string(msg.Sender), nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Generation() != gen {
		s.log.Info("dropping stale message", zap.Uint64("generation", gen), zap.String("sender", string(msg.Sender)))
		return Message{}, false, nil
	}

	stored, data := s.appendLocked(msg)
	s.persist(data)
	return stored, true, nil
}

// AppendWithHistory appends msg like Append and also returns the messages
// that preceded it and the generation it was appended in, read atomically
// with the append.
func (s *Store) AppendWithHistory(msg Message) (Message, []Message, uint64, error) {
	if !msg.Sender.Valid() {
		return Message{}, nil, 0, mgErrors.NewValidationError("sender", "unknown sender", string(msg.Sender), nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	before, gen := s.Snapshot()
	stored, data := s.appendLocked(msg)
	s.persist(data)
	return stored, before, gen, nil
}

// appendLocked updates memory and returns the serialized conversation.
// Callers hold writeMu.
func (s *Store) appendLocked(msg Message) (Message, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = newID()
	} else if _, dup := s.ids[msg.ID]; dup {
		fresh := newID()
		s.log.Warn("duplicate message id reassigned", zap.String("id", msg.ID), zap.String("new_id", fresh))
		msg.ID = fresh
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.opts.Now()
	}
	msg.Timestamp = msg.Timestamp.Round(0).UTC()

	s.messages = append(s.messages, msg)
	s.ids[msg.ID] = struct{}{}

	data, err := encode(s.messages)
	if err != nil {
		s.log.Error("encode conversation", zap.Error(err))
		return msg, nil
	}
	return msg, data
}

func (s *Store) persist(data []byte) {
	if data == nil || s.storage == nil {
		return
	}
	if err := s.storage.Set(s.opts.Key, data); err != nil {
		s.log.Error("persist conversation", zap.Error(err))
	}
}

// Clear removes the durable copy, retrying with exponential backoff, and
// then empties memory and starts a new generation. If the durable copy
// cannot be removed, memory is left as is and a *errors.StorageError is
// returned.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.storage != nil {
		err := storage.Retry(ctx, s.opts.ClearRetries, s.opts.ClearBackoff, func() error {
			return s.storage.Delete(s.opts.Key)
		})
		if err != nil {
			s.log.Error("clear conversation", zap.Error(err))
			return mgErrors.NewStorageError("clear", "could not remove saved conversation", err)
		}
	}

	s.mu.Lock()
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.generation++
	s.mu.Unlock()

	s.log.Info("conversation cleared", zap.Uint64("generation", s.Generation()))
	return nil
}

// Messages returns a copy of the conversation in order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Snapshot returns the conversation and its generation read together.
func (s *Store) Snapshot() ([]Message, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...), s.generation
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Generation changes every time the conversation is cleared.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// load reads the durable copy once, at Open. Individual messages with an
// unknown sender, an unparseable timestamp or a repeated ID are skipped.
func (s *Store) load() {
	if s.storage == nil {
		return
	}

	data, ok, err := s.storage.Get(s.opts.Key)
	if err != nil {
		s.log.Error("read saved conversation", zap.Error(err))
		return
	}
	if !ok || len(data) == 0 {
		return
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Error("saved conversation is corrupt, starting empty", zap.Error(err))
		return
	}

	for i, item := range raw {
		msg, err := decodeMessage(item)
		if err != nil {
			s.log.Warn("skipping saved message", zap.Int("index", i), zap.Error(err))
			continue
		}
		if msg.ID == "" {
			msg.ID = newID()
		}
		if _, dup := s.ids[msg.ID]; dup {
			s.log.Warn("skipping saved message with duplicate id", zap.Int("index", i), zap.String("id", msg.ID))
			continue
		}
		s.messages = append(s.messages, msg)
		s.ids[msg.ID] = struct{}{}
	}

	s.log.Debug("conversation loaded", zap.Int("messages", len(s.messages)), zap.Int("skipped", len(raw)-len(s.messages)))
}

type wireMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

func encode(messages []Message) ([]byte, error) {
	wire := make([]wireMessage, len(messages))
	for i, m := range messages {
		wire[i] = wireMessage{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	return json.Marshal(wire)
}

func decodeMessage(item json.RawMessage) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(item, &w); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	sender := Sender(w.Sender)
	if w.Sender == legacyAssistant {
		sender = Assistant
	}
	if !sender.Valid() {
		return Message{}, fmt.Errorf("unknown sender %q", w.Sender)
	}

	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("parse timestamp %q: %w", w.Timestamp, err)
	}

	return Message{
		ID:        w.ID,
		Content:   w.Content,
		Sender:    sender,
		Timestamp: ts.UTC(),
	}, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
