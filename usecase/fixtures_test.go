package usecase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"social-publisher/domain/model"
)

// graphServer is a fake Graph host keyed by "METHOD /path".
type graphServer struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]http.HandlerFunc
	srv      *httptest.Server
}

func newGraphServer(t *testing.T) *graphServer {
	gs := &graphServer{calls: map[string]int{}, handlers: map[string]http.HandlerFunc{}}
	gs.srv = httptest.NewServer(gs)
	t.Cleanup(gs.srv.Close)
	return gs
}

func (g *graphServer) URL() string { return g.srv.URL }

func (g *graphServer) handle(key string, h http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[key] = h
}

func (g *graphServer) count(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func (g *graphServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	g.mu.Lock()
	g.calls[key]++
	h, ok := g.handlers[key]
	g.mu.Unlock()
	if !ok {
		writeGraphError(w, http.StatusBadRequest, 100, 33)
		return
	}
	h(w, r)
}

type staticPreflight struct {
	mu      sync.Mutex
	results map[string]model.PreflightResult
	checked []string
}

func (p *staticPreflight) Check(_ context.Context, mediaURL string) model.PreflightResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked = append(p.checked, mediaURL)
	if res, ok := p.results[mediaURL]; ok {
		return res
	}
	return model.PreflightResult{SourceURL: mediaURL, Failure: model.PreflightUnreachable, Detail: "no route"}
}

func okPreflight(mediaURL, contentType string) model.PreflightResult {
	return model.PreflightResult{
		OK: true, Status: http.StatusOK, ContentType: contentType,
		SourceURL: mediaURL, FinalURL: mediaURL, Probe: "HEAD", TypeSource: "header",
	}
}

type MockTranscoder struct {
	mock.Mock
}

func (m *MockTranscoder) ToCompliantJPEG(ctx context.Context, sourceURL string) (*model.TranscodeResult, error) {
	args := m.Called(ctx, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TranscodeResult), args.Error(1)
}

type memoryLedger struct {
	mu       sync.Mutex
	attempts map[string]*model.PublishAttempt
	states   []model.PublishState
	jobs     map[int64]*model.PublishJob
	nextID   int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{attempts: map[string]*model.PublishAttempt{}, jobs: map[int64]*model.PublishJob{}}
}

func (l *memoryLedger) CreateAttempt(_ context.Context, a *model.PublishAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *a
	l.attempts[a.AttemptID] = &c
	l.states = append(l.states, a.State)
	return nil
}

func (l *memoryLedger) UpdateAttempt(_ context.Context, a *model.PublishAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *a
	l.attempts[a.AttemptID] = &c
	l.states = append(l.states, a.State)
	return nil
}

func (l *memoryLedger) ListAttempts(_ context.Context, userID string, _ int) ([]*model.PublishAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*model.PublishAttempt{}
	for _, a := range l.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *memoryLedger) attempt(id string) *model.PublishAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[id]
}

func (l *memoryLedger) history() []model.PublishState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.PublishState(nil), l.states...)
}

func (l *memoryLedger) EnqueueJob(_ context.Context, job *model.PublishJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	job.ID = l.nextID
	job.Status = "pending"
	c := *job
	l.jobs[job.ID] = &c
	return nil
}

func (l *memoryLedger) FetchPendingJobs(_ context.Context, limit int) ([]*model.PublishJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*model.PublishJob{}
	for id := int64(1); id <= l.nextID && len(out) < limit; id++ {
		if j, ok := l.jobs[id]; ok && j.Status == "pending" {
			c := *j
			out = append(out, &c)
		}
	}
	return out, nil
}

func (l *memoryLedger) MarkJobRunning(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	if !ok || j.Status != "pending" {
		return false, nil
	}
	j.Status = "running"
	return true, nil
}

func (l *memoryLedger) MarkJobResult(_ context.Context, id int64, success bool, errMsg *string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	j := l.jobs[id]
	j.Attempts++
	j.LastError = errMsg
	j.Status = "failed"
	if success {
		j.Status = "success"
	}
	return nil
}

func (l *memoryLedger) RequeueJob(_ context.Context, id int64, containerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	j := l.jobs[id]
	j.Attempts++
	j.Status = "pending"
	j.ContainerID = &containerID
	return nil
}

func (l *memoryLedger) job(id int64) *model.PublishJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *l.jobs[id]
	return &c
}

// eventSink is both the live broadcaster and a broker.
type eventSink struct {
	mu        sync.Mutex
	broadcast []model.PublishEvent
	published []model.PublishEvent
}

func (s *eventSink) BroadcastPublishStatus(evt *model.PublishEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = append(s.broadcast, *evt)
}

func (s *eventSink) Publish(_ context.Context, evt *model.PublishEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, *evt)
	return nil
}

func (s *eventSink) brokerEvents() []model.PublishEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PublishEvent(nil), s.published...)
}
