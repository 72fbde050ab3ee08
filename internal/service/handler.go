package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Aman-CERP/courseindex/internal/async"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/index"
	"github.com/Aman-CERP/courseindex/internal/search"
)

var _ daemon.RequestHandler = (*Service)(nil)

// searchableIndexes maps each index name to its document type.
var searchableIndexes = map[string]string{
	index.CoursewareIndexName: index.CoursewareDocType,
	index.LibraryIndexName:    index.LibraryDocType,
	index.AboutIndexName:      index.AboutDocType,
}

// CoursePublished queues a full reindex of the course.
func (s *Service) CoursePublished(_ context.Context, scope string) (*daemon.EnqueueResult, error) {
	key, err := parseScope(scope, string(async.KindCourse))
	if err != nil {
		return nil, err
	}
	task, err := s.dispatcher.CoursePublished(key)
	if err != nil {
		return nil, err
	}
	return &daemon.EnqueueResult{TaskID: task.ID, Kind: string(task.Kind), Scope: key.String()}, nil
}

// LibraryUpdated reindexes the library before returning.
func (s *Service) LibraryUpdated(ctx context.Context, scope string) (*daemon.ReindexResult, error) {
	key, err := parseScope(scope, string(async.KindLibrary))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	n, err := s.dispatcher.LibraryUpdated(ctx, key)
	if err != nil {
		return nil, err
	}
	return &daemon.ReindexResult{
		Scope:    key.String(),
		Mode:     string(index.ModeFull),
		Indexed:  n,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// Reindex runs a course or library pass and waits for it.
func (s *Service) Reindex(ctx context.Context, params daemon.ReindexParams) (*daemon.ReindexResult, error) {
	key, err := parseScope(params.Scope, params.Kind)
	if err != nil {
		return nil, err
	}
	if key.IsLibrary() && !params.Since.IsZero() {
		return nil, ierrors.ValidationError("libraries are always reindexed in full", nil)
	}
	res, err := s.indexerFor(key).Run(ctx, index.Scope{Key: key, Since: params.Since})
	if err != nil {
		return nil, err
	}
	return reindexResult(res), nil
}

// ReindexAbout rewrites the discovery document of a course.
func (s *Service) ReindexAbout(ctx context.Context, scope string) (*daemon.ReindexResult, error) {
	key, err := parseScope(scope, string(async.KindCourse))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	n, err := s.about.Reindex(ctx, key)
	if err != nil {
		return nil, err
	}
	return &daemon.ReindexResult{
		Scope:    key.String(),
		Mode:     string(index.ModeFull),
		Indexed:  n,
		Disabled: !s.engines.Enabled(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// Search queries one index. The default index is the courseware index.
func (s *Service) Search(ctx context.Context, params daemon.SearchParams) (*daemon.SearchResult, error) {
	name := params.Index
	if name == "" {
		name = index.CoursewareIndexName
	}
	docType, ok := searchableIndexes[name]
	if !ok {
		return nil, ierrors.New(ierrors.ErrCodeInvalidQuery, "unknown index: "+name, nil).
			WithSuggestion("use courseware_index, library_index or course_info")
	}
	if params.DocType != "" {
		docType = params.DocType
	}

	start := time.Now()
	resp, err := s.search(ctx, name, search.Query{
		Text:    params.Query,
		Fields:  params.Fields,
		DocType: docType,
		From:    params.From,
		Size:    params.Size,
	})
	results := 0
	if resp != nil {
		results = resp.Total
	}
	s.metrics.ObserveSearch(name, results, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	out := &daemon.SearchResult{Index: name, Total: resp.Total, Results: make([]daemon.SearchHit, 0, len(resp.Results))}
	for _, r := range resp.Results {
		hit := daemon.SearchHit{ID: r.ID, Score: r.Score}
		if len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, &hit.Data); err != nil {
				return nil, ierrors.New(ierrors.ErrCodeSearchFailed, "stored document is not valid JSON", err).
					WithDetail("id", r.ID)
			}
		}
		out.Results = append(out.Results, hit)
	}
	return out, nil
}

func (s *Service) search(ctx context.Context, name string, q search.Query) (*search.Response, error) {
	engine, err := s.engines.Engine(name)
	if err != nil {
		return nil, err
	}
	resp, err := engine.Search(ctx, q)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeSearchFailed, "search failed", err).WithDetail("index", name)
	}
	return resp, nil
}

// Check compares a scope's eligible blocks with its index.
func (s *Service) Check(ctx context.Context, scope string) (*daemon.CheckResult, error) {
	key, err := parseScope(scope, "")
	if err != nil {
		return nil, err
	}
	res, err := index.NewConsistencyChecker(s.indexerFor(key)).Check(ctx, key)
	if err != nil {
		return nil, err
	}
	out := &daemon.CheckResult{
		Scope:      res.Scope,
		Eligible:   res.Eligible,
		Indexed:    res.Indexed,
		Consistent: res.Consistent(),
	}
	for _, issue := range res.Inconsistencies {
		switch issue.Type {
		case index.InconsistencyMissing:
			out.Missing = append(out.Missing, issue.ID)
		case index.InconsistencyStale:
			out.Stale = append(out.Stale, issue.ID)
		}
	}
	return out, nil
}

// Repair reindexes a scope in full when Check finds differences.
func (s *Service) Repair(ctx context.Context, scope string) (*daemon.ReindexResult, error) {
	key, err := parseScope(scope, "")
	if err != nil {
		return nil, err
	}
	res, err := index.NewConsistencyChecker(s.indexerFor(key)).Repair(ctx, key)
	if err != nil {
		return nil, err
	}
	return reindexResult(res), nil
}

// Status reports the backend, the open indexes and the queue.
func (s *Service) Status() daemon.StatusResult {
	snap := s.queue.Status()
	return daemon.StatusResult{
		Backend: string(s.engines.Backend()),
		Indexes: s.engines.Names(),
		Queue: &daemon.QueueStatus{
			Status:    snap.Status,
			Pending:   snap.Pending,
			Running:   snap.Running,
			Succeeded: snap.Succeeded,
			Failed:    snap.Failed,
			LastError: snap.LastError,
		},
	}
}

func reindexResult(res *index.Result) *daemon.ReindexResult {
	return &daemon.ReindexResult{
		Scope:    res.Scope,
		Mode:     string(res.Mode),
		Indexed:  res.Indexed,
		Removed:  res.Removed,
		Skipped:  res.Skipped,
		Disabled: res.Disabled,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
}
