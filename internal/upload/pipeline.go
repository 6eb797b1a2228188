package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/blob"
	"github.com/yourorg/convosync/internal/models"
	"github.com/yourorg/convosync/internal/store"
)

var (
	ErrNotImage  = errors.New("only image attachments are allowed")
	ErrUploading = errors.New("upload already in progress")
	ErrDone      = errors.New("attachment already sent")
)

// Phase is a state of the attachment upload state machine.
type Phase int

const (
	PhaseSelected Phase = iota
	PhaseUploading
	PhaseFailed
	PhaseSent
)

func (p Phase) String() string {
	switch p {
	case PhaseUploading:
		return "uploading"
	case PhaseFailed:
		return "failed"
	case PhaseSent:
		return "sent"
	default:
		return "selected"
	}
}

// Pipeline turns staged local binaries into image message records. The
// record is appended only after the blob transfer succeeded and a durable
// reference was resolved; a failed upload never produces a broken-link
// message.
type Pipeline struct {
	blob  blob.Store
	store store.RecordStore
	log   *zap.SugaredLogger
}

func NewPipeline(b blob.Store, rs store.RecordStore, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{blob: b, store: rs, log: log}
}

// Upload is the ephemeral client-side state of one in-flight image
// composition. Uploads for different attachments are independent; there is
// no shared state between them beyond the store itself.
type Upload struct {
	p           *Pipeline
	name        string
	contentType string
	data        []byte

	mu    sync.Mutex
	phase Phase
}

// Stage validates and stages a selected binary. Only image payloads are
// accepted.
func (p *Pipeline) Stage(name, contentType string, data []byte) (*Upload, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}
	return &Upload{p: p, name: name, contentType: contentType, data: data, phase: PhaseSelected}, nil
}

func (u *Upload) Phase() Phase {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phase
}

func (u *Upload) Name() string { return u.name }

// Data returns the staged binary; it stays available across failed
// attempts so the user can retry without re-selecting the file.
func (u *Upload) Data() []byte { return u.data }

// Discard drops a staged attachment. Once uploading has begun there is no
// cancellation; the operation runs to completion or failure.
func (u *Upload) Discard() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.phase == PhaseUploading {
		return ErrUploading
	}
	u.data = nil
	return nil
}

// Send transfers the staged binary, resolves its durable reference and
// appends the image message record, in that order. Allowed from the
// selected and failed phases; a failure at any step returns the state to
// failed with the binary retained.
func (u *Upload) Send(ctx context.Context, key models.ConversationKey) (models.Message, error) {
	u.mu.Lock()
	switch u.phase {
	case PhaseUploading:
		u.mu.Unlock()
		return models.Message{}, ErrUploading
	case PhaseSent:
		u.mu.Unlock()
		return models.Message{}, ErrDone
	}
	u.phase = PhaseUploading
	u.mu.Unlock()

	msg, err := u.p.transfer(ctx, key, u.name, u.contentType, u.data)

	u.mu.Lock()
	defer u.mu.Unlock()
	if err != nil {
		u.phase = PhaseFailed
		return models.Message{}, err
	}
	u.phase = PhaseSent
	u.data = nil
	return msg, nil
}

func (p *Pipeline) transfer(ctx context.Context, key models.ConversationKey, name, contentType string, data []byte) (models.Message, error) {
	// key unique per conversation and submission so concurrent uploads from
	// the same participant cannot collide
	objectKey := fmt.Sprintf("messages/%s/%d_%s_%s", key.Local, time.Now().UnixMilli(), uuid.NewString(), name)

	if err := p.blob.Put(ctx, objectKey, contentType, data); err != nil {
		return models.Message{}, fmt.Errorf("put attachment: %w", err)
	}

	if thumb, err := thumbnail(data); err == nil {
		// best effort; the original is already durable
		_ = p.blob.Put(ctx, objectKey+"_thumb.jpg", "image/jpeg", thumb)
	}

	ref, err := p.blob.ResolveURL(ctx, objectKey)
	if err != nil {
		return models.Message{}, fmt.Errorf("resolve attachment url: %w", err)
	}

	msg := models.Message{
		Sender:    key.Local,
		Recipient: key.Peer,
		Kind:      models.KindImage,
		AttachURL: ref,
	}
	id, err := p.store.Append(ctx, msg.Fields())
	if err != nil {
		return models.Message{}, fmt.Errorf("append image message: %w", err)
	}
	msg.ID = id
	if p.log != nil {
		p.log.Infow("attachment sent", "id", id, "key", objectKey)
	}
	return msg, nil
}
