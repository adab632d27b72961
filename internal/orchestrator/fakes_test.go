package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vibevideo/internal/domain"
	"vibevideo/internal/providers/video"
)

// In-memory fakes mirroring the PostgreSQL repositories' transition guards.

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.GenerationJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*domain.GenerationJob)}
}

func (f *fakeJobs) Create(_ context.Context, job *domain.GenerationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) GetByExternalTaskID(_ context.Context, taskID string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ExternalTaskID != nil && *job.ExternalTaskID == taskID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) FindRecentBySourceImage(_ context.Context, imageURL string, cutoff time.Time) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var match *domain.GenerationJob
	for _, job := range f.jobs {
		if job.SourceImageURL != imageURL || job.ExternalTaskID != nil || job.CreatedAt.Before(cutoff) {
			continue
		}
		if match == nil || job.CreatedAt.After(match.CreatedAt) {
			match = job
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (f *fakeJobs) SetExternalTaskID(_ context.Context, jobID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.ExternalTaskID != nil || job.Status.IsTerminal() {
		return domain.ErrDuplicateOperation
	}
	job.ExternalTaskID = &taskID
	job.Status = domain.JobStatusProcessing
	return nil
}

func (f *fakeJobs) UpdateProgress(_ context.Context, jobID string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return nil
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (f *fakeJobs) MarkCompleted(_ context.Context, jobID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return domain.ErrJobTerminal
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &completedAt
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, jobID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return domain.ErrJobTerminal
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = &errMsg
	return nil
}

func (f *fakeJobs) MarkCancelled(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return domain.ErrJobTerminal
	}
	job.Status = domain.JobStatusCancelled
	return nil
}

func (f *fakeJobs) ListStaleProcessing(_ context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range f.jobs {
		if job.Status == domain.JobStatusProcessing && job.ExternalTaskID != nil && job.UpdatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeVideos struct {
	mu      sync.Mutex
	byJobID map[string]*domain.Video
}

func newFakeVideos() *fakeVideos {
	return &fakeVideos{byJobID: make(map[string]*domain.Video)}
}

func (f *fakeVideos) GetByJobID(_ context.Context, jobID string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byJobID[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVideos) Create(_ context.Context, v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byJobID[v.JobID]; ok {
		return domain.ErrDuplicateOperation
	}
	cp := *v
	f.byJobID[v.JobID] = &cp
	return nil
}

func (f *fakeVideos) SetThumbnailURL(_ context.Context, videoID, thumbnailURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byJobID {
		if v.ID == videoID {
			u := thumbnailURL
			v.ThumbnailURL = &u
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeVideos) IncrementEngagement(_ context.Context, videoID string, kind domain.EngagementKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byJobID {
		if v.ID == videoID {
			switch kind {
			case domain.EngagementView:
				v.Views++
			case domain.EngagementLike:
				v.Likes++
			case domain.EngagementShare:
				v.Shares++
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeVideos) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byJobID)
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	debits   map[string]decimal.Decimal // job id -> amount
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]decimal.Decimal),
		debits:   make(map[string]decimal.Decimal),
	}
}

func (f *fakeLedger) GetBalance(_ context.Context, userID string) (*domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.balances[userID]
	if !ok {
		amount = decimal.Zero
	}
	return &domain.Balance{UserID: userID, Amount: amount}, nil
}

func (f *fakeLedger) Grant(_ context.Context, userID string, amount decimal.Decimal, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = f.balances[userID].Add(amount)
	return nil
}

func (f *fakeLedger) DebitForJob(_ context.Context, userID, jobID string, amount decimal.Decimal, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.debits[jobID]; ok {
		return domain.ErrDuplicateOperation
	}
	balance := f.balances[userID]
	if balance.LessThan(amount) {
		return domain.ErrInsufficientCredits
	}
	f.debits[jobID] = amount
	f.balances[userID] = balance.Sub(amount)
	return nil
}

func (f *fakeLedger) HasDebitForJob(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.debits[jobID]
	return ok, nil
}

func (f *fakeLedger) debitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.debits)
}

type fakeVibes struct {
	mu             sync.Mutex
	vibes          map[string]*domain.Vibe
	participations map[string]string // job id -> vibe id
}

func newFakeVibes() *fakeVibes {
	return &fakeVibes{
		vibes:          make(map[string]*domain.Vibe),
		participations: make(map[string]string),
	}
}

func (f *fakeVibes) add(v domain.Vibe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibes[v.ID] = &v
}

func (f *fakeVibes) GetByID(_ context.Context, id string) (*domain.Vibe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vibes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVibes) IncrementParticipants(_ context.Context, vibeID, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.participations[jobID]; ok {
		return nil
	}
	v, ok := f.vibes[vibeID]
	if !ok {
		return domain.ErrNotFound
	}
	f.participations[jobID] = vibeID
	v.Participants++
	return nil
}

func (f *fakeVibes) participants(vibeID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vibes[vibeID]; ok {
		return v.Participants
	}
	return 0
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	f.puts++
	return f.PublicURL(key), nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

type providerCall struct {
	op     string
	taskID string
}

type fakeProvider struct {
	mu         sync.Mutex
	submitID   string
	submitErr  error
	pollResult *video.PollResult
	pollErr    error
	cancelErr  error
	calls      []providerCall
	lastSubmit video.SubmitRequest
}

func (f *fakeProvider) Submit(_ context.Context, req video.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "submit"})
	f.lastSubmit = req
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeProvider) Poll(_ context.Context, taskID string) (*video.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "poll", taskID: taskID})
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	res := *f.pollResult
	if res.TaskID == "" {
		res.TaskID = taskID
	}
	return &res, nil
}

func (f *fakeProvider) Cancel(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "cancel", taskID: taskID})
	return f.cancelErr
}

func (f *fakeProvider) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}
