package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Dispatcher turns content events into reindex work. Course events are
// queued and return at once; library events run before returning.
type Dispatcher struct {
	queue   *Queue
	handler Handler
}

// NewDispatcher creates a dispatcher that queues on q and runs synchronous
// work with h.
func NewDispatcher(q *Queue, h Handler) *Dispatcher {
	return &Dispatcher{queue: q, handler: h}
}

// CoursePublished queues a full reindex of course.
func (d *Dispatcher) CoursePublished(course content.ScopeKey) (Task, error) {
	if course.IsLibrary() {
		return Task{}, ierrors.ValidationError("course_published needs a course key: "+course.String(), nil)
	}
	return d.queue.Enqueue(Task{Kind: KindCourse, Scope: course})
}

// CourseChangedSince queues an incremental reindex of course.
func (d *Dispatcher) CourseChangedSince(course content.ScopeKey, since time.Time) (Task, error) {
	if course.IsLibrary() {
		return Task{}, ierrors.ValidationError("course reindex needs a course key: "+course.String(), nil)
	}
	return d.queue.Enqueue(Task{Kind: KindCourse, Scope: course, Since: since})
}

// CourseAboutChanged queues a refresh of the course's discovery document.
func (d *Dispatcher) CourseAboutChanged(course content.ScopeKey) (Task, error) {
	if course.IsLibrary() {
		return Task{}, ierrors.ValidationError("about reindex needs a course key: "+course.String(), nil)
	}
	return d.queue.Enqueue(Task{Kind: KindAbout, Scope: course})
}

// LibraryUpdated reindexes library and returns the number of documents
// written.
func (d *Dispatcher) LibraryUpdated(ctx context.Context, library content.ScopeKey) (int, error) {
	if !library.IsLibrary() {
		return 0, ierrors.ValidationError("library_updated needs a library key: "+library.String(), nil)
	}
	out, err := d.handler.Handle(ctx, Task{
		ID:         uuid.NewString(),
		Kind:       KindLibrary,
		Scope:      library,
		EnqueuedAt: time.Now(),
	})
	return out.Indexed, err
}

// Queue returns the queue course events go to.
func (d *Dispatcher) Queue() *Queue { return d.queue }
