package async

import (
	"context"
	"fmt"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/index"
)

// IndexHandler routes tasks to the indexers. Any of them may be nil, in
// which case tasks of that kind fail.
type IndexHandler struct {
	Courseware *index.Indexer
	Library    *index.Indexer
	About      *index.AboutIndexer
}

// Handle implements Handler.
func (h *IndexHandler) Handle(ctx context.Context, t Task) (Outcome, error) {
	scope := index.Scope{Key: t.Scope, Since: t.Since}
	switch t.Kind {
	case KindCourse:
		return runIndexer(ctx, h.Courseware, scope, t.Kind)
	case KindLibrary:
		return runIndexer(ctx, h.Library, scope, t.Kind)
	case KindAbout:
		if h.About == nil {
			return Outcome{}, notConfigured(t.Kind)
		}
		n, err := h.About.Reindex(ctx, t.Scope)
		return Outcome{Indexed: n}, err
	default:
		return Outcome{}, ierrors.ValidationError(fmt.Sprintf("unknown task kind %q", t.Kind), nil)
	}
}

func runIndexer(ctx context.Context, ix *index.Indexer, scope index.Scope, kind Kind) (Outcome, error) {
	if ix == nil {
		return Outcome{}, notConfigured(kind)
	}
	res, err := ix.Run(ctx, scope)
	if err != nil || res == nil {
		return Outcome{}, err
	}
	return Outcome{Indexed: res.Indexed, Removed: res.Removed}, nil
}

func notConfigured(kind Kind) error {
	return ierrors.New(ierrors.ErrCodeInternal, fmt.Sprintf("no indexer configured for %s tasks", kind), nil)
}
