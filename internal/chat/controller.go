package chat

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/models"
	"github.com/yourorg/convosync/internal/store"
	"github.com/yourorg/convosync/internal/upload"
)

// EventSink receives conversation events after the store accepted them.
// A nil sink is valid and drops everything.
type EventSink interface {
	MessageSent(ctx context.Context, m models.Message)
	MessageDeleted(ctx context.Context, id string)
}

// Controller orchestrates the two send paths and deletion for one
// conversation. Exactly one of the paths runs per Send call: a staged
// attachment always wins and the text body is discarded for that action.
type Controller struct {
	store    store.RecordStore
	pipeline *upload.Pipeline
	events   EventSink
	log      *zap.SugaredLogger
	key      models.ConversationKey

	mu         sync.Mutex
	text       string
	attachment *upload.Upload
}

func NewController(key models.ConversationKey, rs store.RecordStore, pl *upload.Pipeline, sink EventSink, log *zap.SugaredLogger) *Controller {
	return &Controller{store: rs, pipeline: pl, events: sink, log: log, key: key}
}

func (c *Controller) SetText(s string) {
	c.mu.Lock()
	c.text = s
	c.mu.Unlock()
}

func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// StageAttachment stages a selected image, replacing any previous staged
// one that is not mid-upload.
func (c *Controller) StageAttachment(name, contentType string, data []byte) error {
	u, err := c.pipeline.Stage(name, contentType, data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment != nil && c.attachment.Phase() == upload.PhaseUploading {
		return upload.ErrUploading
	}
	c.attachment = u
	return nil
}

// DiscardAttachment drops the staged attachment. Synchronous; refused once
// the upload has begun.
func (c *Controller) DiscardAttachment() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment == nil {
		return nil
	}
	if err := c.attachment.Discard(); err != nil {
		return err
	}
	c.attachment = nil
	return nil
}

func (c *Controller) Attachment() *upload.Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// Send produces at most one message. With a staged attachment it delegates
// exclusively to the upload pipeline; otherwise a trimmed non-empty text
// body is appended as a text message. Whitespace-only text with no
// attachment is a no-op, not an error, and leaves composer state
// unchanged. The rendered timeline is updated by the live subscription,
// never optimistically here.
func (c *Controller) Send(ctx context.Context) (*models.Message, error) {
	c.mu.Lock()
	att := c.attachment
	text := c.text
	c.mu.Unlock()

	if att != nil {
		msg, err := att.Send(ctx, c.key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.attachment == att {
			c.attachment = nil
		}
		c.mu.Unlock()
		c.emitSent(ctx, msg)
		return &msg, nil
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	msg := models.Message{
		Sender:    c.key.Local,
		Recipient: c.key.Peer,
		Kind:      models.KindText,
		Body:      text,
	}
	id, err := c.store.Append(ctx, msg.Fields())
	if err != nil {
		return nil, err
	}
	msg.ID = id

	c.mu.Lock()
	if c.text == text {
		c.text = ""
	}
	c.mu.Unlock()
	c.emitSent(ctx, msg)
	return &msg, nil
}

// Delete removes a message record by id. Store-driven and idempotent:
// deleting a missing id is a silent success, and the local timeline is not
// touched, the next subscription batch reflects the absence.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	if c.events != nil {
		c.events.MessageDeleted(ctx, id)
	}
	return nil
}

func (c *Controller) emitSent(ctx context.Context, msg models.Message) {
	if c.log != nil {
		c.log.Infow("message sent", "id", msg.ID, "kind", msg.Kind.Wire())
	}
	if c.events != nil {
		c.events.MessageSent(ctx, msg)
	}
}
