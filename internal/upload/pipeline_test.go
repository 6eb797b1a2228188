package upload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/convosync/internal/models"
	"github.com/yourorg/convosync/internal/store"
)

type fakeBlob struct {
	putErr     error
	resolveErr error
	objects    map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: map[string][]byte{}}
}

func (f *fakeBlob) Put(ctx context.Context, key, contentType string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlob) ResolveURL(ctx context.Context, key string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "https://store/" + key, nil
}

func storedCount(t *testing.T, ms *store.MemoryStore, key models.ConversationKey) int {
	t.Helper()
	sub, err := ms.Subscribe(context.Background(), store.PairFilter{Local: key.Local, Peer: key.Peer})
	require.NoError(t, err)
	defer sub.Close()
	return len(<-sub.Batches())
}

func TestStage_RejectsNonImage(t *testing.T) {
	p := NewPipeline(newFakeBlob(), store.NewMemoryStore(), nil)
	_, err := p.Stage("notes.txt", "text/plain", []byte("hi"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestSend_Success(t *testing.T) {
	ms := store.NewMemoryStore()
	p := NewPipeline(newFakeBlob(), ms, nil)
	key := models.ConversationKey{Local: "p1", Peer: "p2"}

	u, err := p.Stage("x.png", "image/png", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.Equal(t, PhaseSelected, u.Phase())

	msg, err := u.Send(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, PhaseSent, u.Phase())

	assert.Equal(t, models.KindImage, msg.Kind)
	assert.Equal(t, "p1", msg.Sender)
	assert.Equal(t, "p2", msg.Recipient)
	assert.True(t, strings.HasPrefix(msg.AttachURL, "https://store/messages/p1/"), msg.AttachURL)
	assert.True(t, strings.HasSuffix(msg.AttachURL, "_x.png"), msg.AttachURL)
	require.NotEmpty(t, msg.ID)

	rec, err := ms.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", rec[models.FieldType])
	assert.Equal(t, "", rec[models.FieldText])
	assert.Equal(t, msg.AttachURL, rec[models.FieldAttachURL])
}

func TestSend_TransferFailureLeavesNoRecord(t *testing.T) {
	blob := newFakeBlob()
	blob.putErr = errors.New("connection reset")
	ms := store.NewMemoryStore()
	p := NewPipeline(blob, ms, nil)
	key := models.ConversationKey{Local: "p1", Peer: "p2"}

	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	u, err := p.Stage("x.png", "image/png", payload)
	require.NoError(t, err)

	_, err = u.Send(context.Background(), key)
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, u.Phase())
	// binary retained for retry without re-selecting
	assert.Equal(t, payload, u.Data())
	assert.Zero(t, storedCount(t, ms, key))

	// retry after the transient failure clears
	blob.putErr = nil
	msg, err := u.Send(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, PhaseSent, u.Phase())
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, 1, storedCount(t, ms, key))
}

func TestSend_ResolveFailureLeavesNoRecord(t *testing.T) {
	blob := newFakeBlob()
	blob.resolveErr = errors.New("no such object")
	ms := store.NewMemoryStore()
	p := NewPipeline(blob, ms, nil)

	u, err := p.Stage("x.png", "image/png", []byte{1})
	require.NoError(t, err)

	_, err = u.Send(context.Background(), models.ConversationKey{Local: "p1", Peer: "p2"})
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, u.Phase())
	assert.Zero(t, storedCount(t, ms, models.ConversationKey{Local: "p1", Peer: "p2"}))
}

func TestSend_TwiceIsRejected(t *testing.T) {
	ms := store.NewMemoryStore()
	p := NewPipeline(newFakeBlob(), ms, nil)
	key := models.ConversationKey{Local: "p1", Peer: "p2"}

	u, err := p.Stage("x.png", "image/png", []byte{1})
	require.NoError(t, err)

	_, err = u.Send(context.Background(), key)
	require.NoError(t, err)
	_, err = u.Send(context.Background(), key)
	assert.ErrorIs(t, err, ErrDone)
	assert.Equal(t, 1, storedCount(t, ms, key))
}

func TestDiscard_Staged(t *testing.T) {
	p := NewPipeline(newFakeBlob(), store.NewMemoryStore(), nil)
	u, err := p.Stage("x.png", "image/png", []byte{1})
	require.NoError(t, err)
	require.NoError(t, u.Discard())
	assert.Nil(t, u.Data())
}

func TestUniqueObjectKeys(t *testing.T) {
	blob := newFakeBlob()
	ms := store.NewMemoryStore()
	p := NewPipeline(blob, ms, nil)
	key := models.ConversationKey{Local: "p1", Peer: "p2"}

	for i := 0; i < 3; i++ {
		u, err := p.Stage("same.png", "image/png", []byte{byte(i)})
		require.NoError(t, err)
		_, err = u.Send(context.Background(), key)
		require.NoError(t, err)
	}
	// thumbnails are best effort and these payloads are not decodable, so
	// one object per upload
	assert.Len(t, blob.objects, 3)
}
