// Package chat coordinates a tutoring exchange: validate the question, record
// it, ask the completion service and record the answer.
package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/mathgpt/internal/completion"
	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/validation"
)

// ErrorReplyText is the assistant message recorded when a completion fails
// and error replies are enabled.
const ErrorReplyText = "Sorry, I couldn't answer that just now. Please try again."

// Options configures a Controller.
type Options struct {
	// ErrorReply records ErrorReplyText in the conversation when a completion
	// fails. The error is returned either way.
	ErrorReply bool
	Logger     *zap.Logger
}

// Controller runs submits against one conversation store.
type Controller struct {
	store     *conversation.Store
	completer completion.Completer
	opts      Options
	log       *zap.Logger
}

// Pending is a submitted question awaiting its answer.
type Pending struct {
	Question   conversation.Message
	History    []conversation.Message
	Generation uint64
}

// Outcome is the result of resolving a Pending.
type Outcome struct {
	// Reply is the recorded assistant message, if any.
	Reply conversation.Message
	// Recorded is false when nothing was appended, either because the
	// conversation was cleared meanwhile or because the call failed without
	// an error reply.
	Recorded bool
	// Err is the completion error, if the call failed.
	Err error
}

// NewController creates a controller.
func NewController(store *conversation.Store, completer completion.Completer, opts Options) (*Controller, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if completer == nil {
		return nil, errors.New("completer cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		store:     store,
		completer: completer,
		opts:      opts,
		log:       opts.Logger.With(zap.String("component", "chat")),
	}, nil
}

// Store returns the conversation the controller writes to.
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// Begin validates text and appends it as a user message. Invalid input is
// rejected with a *errors.ValidationError and nothing is recorded.
func (c *Controller) Begin(text string) (Pending, error) {
	normalized, err := validation.ValidateMessage(text)
	if err != nil {
		return Pending{}, err
	}

	msg, history, gen, err := c.store.AppendWithHistory(conversation.Message{
		Content: normalized,
		Sender:  conversation.User,
	})
	if err != nil {
		return Pending{}, err
	}

	return Pending{Question: msg, History: history, Generation: gen}, nil
}

// Complete asks the completion service for an answer to p. It touches no
// shared state and may run on any goroutine.
func (c *Controller) Complete(ctx context.Context, p Pending) (string, error) {
	return c.completer.Complete(ctx, completion.Request{
		Message: p.Question.Content,
		History: p.History,
	})
}

// Resolve records the answer to p, unless the conversation was cleared since
// Begin.
func (c *Controller) Resolve(p Pending, reply string, callErr error) Outcome {
	content := reply
	if callErr != nil {
		c.log.Warn("completion failed", zap.String("question_id", p.Question.ID), zap.Error(callErr))
		if !c.opts.ErrorReply {
			return Outcome{Err: callErr}
		}
		content = ErrorReplyText
	}

	msg, ok, err := c.store.AppendIfCurrent(p.Generation, conversation.Message{
		Content: content,
		Sender:  conversation.Assistant,
	})
	if err != nil {
		c.log.Error("record reply", zap.Error(err))
		return Outcome{Err: errors.Join(callErr, err)}
	}
	if !ok {
		c.log.Debug("reply dropped after clear", zap.String("question_id", p.Question.ID))
	}
	return Outcome{Reply: msg, Recorded: ok, Err: callErr}
}

// Submit runs Begin, Complete and Resolve in sequence.
func (c *Controller) Submit(ctx context.Context, text string) (Outcome, error) {
	p, err := c.Begin(text)
	if err != nil {
		return Outcome{}, err
	}
	reply, callErr := c.Complete(ctx, p)
	out := c.Resolve(p, reply, callErr)
	return out, out.Err
}

// IsInputError reports whether err came from rejected user input.
func IsInputError(err error) bool {
	var ve *mgErrors.ValidationError
	return errors.As(err, &ve)
}
