// Package media manages out-of-band upload of image attachments and the
// success-gated append that binds the resulting URL into the log.
//
// The one invariant that matters here: a message may reference a blob only
// after the blob concretely exists. Failed uploads perform zero appends, so
// the log can never point at a missing or half-written resource.
package media

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/store"
	"go.uber.org/zap"
)

// TaskState tracks one upload from selection to its terminal state.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskUploaded
	TaskFailed
)

// Task is the record of a single upload attempt. Terminal on TaskUploaded
// or TaskFailed; an uploaded task feeds exactly one message append.
type Task struct {
	ID    uuid.UUID
	Path  string
	State TaskState
	URL   string
	Err   error
}

// Coordinator runs single-attempt uploads against the blob store and, only
// on success, appends the referencing image message.
type Coordinator struct {
	blobs  BlobStore
	store  *store.Store
	logger *zap.Logger
}

func NewCoordinator(blobs BlobStore, st *store.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{blobs: blobs, store: st, logger: logger}
}

// Upload transfers one attachment. Blobs land under chat_images/ with a
// random name; the original filename only contributes its extension.
// Single attempt, no resume — on failure the task is terminal and carries
// the error.
func (c *Coordinator) Upload(ctx context.Context, filename string, r io.Reader) *Task {
	task := &Task{ID: uuid.New(), State: TaskPending}
	if filename == "" || r == nil {
		task.State = TaskFailed
		task.Err = ErrInvalidSource
		return task
	}

	task.Path = "chat_images/" + task.ID.String() + path.Ext(filename)

	url, err := c.blobs.Put(ctx, task.Path, r)
	if err != nil {
		task.State = TaskFailed
		task.Err = &UploadError{Err: err}
		c.logger.Warn("upload failed",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return task
	}

	task.State = TaskUploaded
	task.URL = url
	return task
}

// SendImage uploads the attachment and appends the image message. The
// append is gated on upload success: any upload failure returns before the
// store is touched.
func (c *Coordinator) SendImage(ctx context.Context, authorID uuid.UUID, filename string, r io.Reader) (*models.Message, error) {
	// Check the write gate before spending the transfer: an append that
	// would be rejected anyway must not leave an orphaned blob behind.
	if authorID == uuid.Nil {
		return nil, store.ErrNotAuthenticated
	}

	task := c.Upload(ctx, filename, r)
	if task.State != TaskUploaded {
		return nil, task.Err
	}

	msg, err := c.store.AppendImage(ctx, authorID, task.URL)
	if err != nil {
		// The blob exists but the message doesn't — an orphaned blob, not
		// a broken message. The caller may retry the append with the same
		// URL.
		return nil, err
	}

	c.logger.Info("image message sent",
		zap.String("task_id", task.ID.String()),
		zap.Int64("message_id", msg.ID),
	)
	return msg, nil
}
