package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/resume-insight/internal/agent"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/notify"
	"github.com/fadilmartias/resume-insight/internal/repository"
	"github.com/fadilmartias/resume-insight/internal/response"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/fadilmartias/resume-insight/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidID       = errors.New("invalid task id")
	ErrTaskNotFound    = errors.New("task not found")
	ErrListingDisabled = errors.New("job listing storage is not configured")
	ErrClosed          = errors.New("analysis usecase is closed")
)

const (
	defaultTaskTimeout = 10 * time.Minute
	// agents run two at a time so one resume never floods a model queue.
	agentBatchSize = 2
)

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.AnalysisTask) error
	UpdateTask(ctx context.Context, task *model.AnalysisTask) error
	FindTaskByID(ctx context.Context, id string) (*model.AnalysisTask, error)
}

type JobRepository interface {
	ListJobs(ctx context.Context, page, pageSize int) ([]model.JobListing, int64, error)
}

type TextExtractor interface {
	Text(ctx context.Context, filename, mime string, data []byte) (*extract.Document, error)
}

type StatsSource interface {
	Stats() []dispatcher.Stats
}

// Agents groups the analysis steps. Jobs may be nil when no search backend
// is configured.
type Agents struct {
	Parser      *agent.ResumeParser
	Scorer      *agent.ResumeScorer
	SkillGap    *agent.SkillGapAnalyzer
	Personality *agent.PersonalityProfiler
	Jobs        *agent.JobMatcher
}

type Deps struct {
	Tasks     TaskRepository
	Jobs      JobRepository
	Store     storage.Store
	Extractor TextExtractor
	Agents    Agents
	Notifier  notify.Notifier
	Stats     StatsSource
	Log       *zap.Logger
}

type SubmitInput struct {
	FileName   string
	MIMEType   string
	Data       []byte
	TargetRole string
	Location   string
}

type AnalysisUsecase struct {
	tasks     TaskRepository
	jobs      JobRepository
	store     storage.Store
	extractor TextExtractor
	agents    Agents
	notifier  notify.Notifier
	stats     StatsSource
	log       *zap.Logger

	// Timeout bounds a single background analysis.
	Timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	// mu orders wg.Add against Close so no work is admitted once it waits.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAnalysisUsecase(deps Deps) *AnalysisUsecase {
	ctx, cancel := context.WithCancel(context.Background())
	n := deps.Notifier
	if n == nil {
		n = notify.NopNotifier{}
	}
	return &AnalysisUsecase{
		tasks:     deps.Tasks,
		jobs:      deps.Jobs,
		store:     deps.Store,
		extractor: deps.Extractor,
		agents:    deps.Agents,
		notifier:  n,
		stats:     deps.Stats,
		log:       logger.OrNop(deps.Log),
		Timeout:   defaultTaskTimeout,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Submit extracts and stores the upload, records a processing task and
// analyses it in the background. Extraction errors are returned directly so
// callers can reject bad files before a task exists.
func (uc *AnalysisUsecase) Submit(ctx context.Context, in SubmitInput) (*model.AnalysisTask, error) {
	if !uc.admit() {
		return nil, ErrClosed
	}
	started := false
	defer func() {
		if !started {
			uc.wg.Done()
		}
	}()

	doc, err := uc.extractor.Text(ctx, in.FileName, in.MIMEType, in.Data)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	key := fmt.Sprintf("resumes/%s%s", id, strings.ToLower(filepath.Ext(in.FileName)))
	if uc.store != nil {
		if key, err = uc.store.Save(ctx, key, in.Data, doc.MIMEType); err != nil {
			return nil, fmt.Errorf("store resume: %w", err)
		}
	}

	now := uc.now()
	task := &model.AnalysisTask{
		ID:         id,
		FileKey:    key,
		FileName:   filepath.Base(in.FileName),
		ResumeText: doc.Text,
		TargetRole: strings.TrimSpace(in.TargetRole),
		Location:   strings.TrimSpace(in.Location),
		Status:     model.StatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	uc.publish(ctx, task, "queued", "")

	images := ResumeImages(doc)

	// The request context ends with the response; the analysis must not.
	run := *task
	started = true
	go func() {
		defer uc.wg.Done()
		runCtx, cancel := context.WithTimeout(uc.ctx, uc.Timeout)
		defer cancel()
		if err := uc.Run(runCtx, &run, images); err != nil {
			uc.log.Warn("analysis failed", zap.String("task_id", run.ID.String()), zap.Error(err))
		}
	}()
	return task, nil
}

// Run parses the resume and then fans the remaining agents out in small
// batches. Agent failures have already degraded to fallback payloads by the
// time they get here; only cancellation and parse failures fail the task.
func (uc *AnalysisUsecase) Run(ctx context.Context, task *model.AnalysisTask, images []service.ImagePart) error {
	log := uc.log.With(zap.String("task_id", task.ID.String()))
	started := uc.now()

	uc.publish(ctx, task, "parsing", "")
	profile, err := uc.agents.Parser.Parse(ctx, task.ResumeText, images)
	if err != nil {
		return uc.fail(task, fmt.Errorf("parse resume: %w", err))
	}
	if task.Profile, err = json.Marshal(profile); err != nil {
		return uc.fail(task, err)
	}

	var mu sync.Mutex
	set := func(dst *json.RawMessage, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		mu.Lock()
		*dst = raw
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(agentBatchSize)

	uc.publish(ctx, task, "analysing", "")
	g.Go(func() error {
		score, err := uc.agents.Scorer.Score(gctx, profile, task.TargetRole)
		if err != nil {
			return skip(log, "scorer", err)
		}
		return set(&task.Score, score)
	})
	if task.TargetRole != "" {
		g.Go(func() error {
			report, err := uc.agents.SkillGap.Analyze(gctx, profile, task.TargetRole)
			if err != nil {
				return skip(log, "skill_gap", err)
			}
			return set(&task.SkillGap, report)
		})
	}
	g.Go(func() error {
		personality, err := uc.agents.Personality.Profile(gctx, task.ResumeText)
		if err != nil {
			return skip(log, "personality", err)
		}
		return set(&task.Personality, personality)
	})
	if uc.agents.Jobs != nil {
		g.Go(func() error {
			matches, err := uc.agents.Jobs.Match(gctx, profile, task.TargetRole, task.Location)
			if err != nil {
				return skip(log, "job_matcher", err)
			}
			return set(&task.Jobs, matches)
		})
	}
	if err := g.Wait(); err != nil {
		return uc.fail(task, err)
	}

	done := uc.now()
	task.Status = model.StatusCompleted
	task.Error = ""
	task.CompletedAt = &done
	task.UpdatedAt = done
	if err := uc.tasks.UpdateTask(context.WithoutCancel(ctx), task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	uc.publish(ctx, task, "completed", "")
	log.Info("analysis completed", zap.Duration("took", done.Sub(started)))
	return nil
}

// ResumeImages returns the upload as a vision attachment when the resume
// itself is an image.
func ResumeImages(doc *extract.Document) []service.ImagePart {
	if doc.Kind != extract.KindImage || len(doc.Image) == 0 {
		return nil
	}
	return []service.ImagePart{{MIMEType: doc.MIMEType, Data: doc.Image}}
}

// skip swallows an agent error unless the run itself was cancelled.
func skip(log *zap.Logger, name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Warn("agent skipped", zap.String("agent", name), zap.Error(err))
	return nil
}

func (uc *AnalysisUsecase) fail(task *model.AnalysisTask, cause error) error {
	task.Status = model.StatusFailed
	task.Error = cause.Error()
	task.UpdatedAt = uc.now()
	// The run context may already be done; the failure still has to land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := uc.tasks.UpdateTask(ctx, task); err != nil {
		uc.log.Error("saving failed task", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
	uc.publish(ctx, task, "failed", cause.Error())
	return cause
}

func (uc *AnalysisUsecase) publish(ctx context.Context, task *model.AnalysisTask, stage, msg string) {
	err := uc.notifier.Publish(context.WithoutCancel(ctx), notify.Update{
		TaskID:  task.ID.String(),
		Status:  task.Status,
		Stage:   stage,
		Message: msg,
	})
	if err != nil {
		uc.log.Debug("status update not published", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

func (uc *AnalysisUsecase) GetResult(ctx context.Context, id string) (*model.AnalysisTask, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	task, err := uc.tasks.FindTaskByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

// Extract runs text extraction alone, without creating a task.
func (uc *AnalysisUsecase) Extract(ctx context.Context, filename, mime string, data []byte) (*extract.Document, error) {
	return uc.extractor.Text(ctx, filename, mime, data)
}

// SkillGap parses resumeText and compares it against targetRole synchronously.
func (uc *AnalysisUsecase) SkillGap(ctx context.Context, resumeText, targetRole string) (*agent.SkillGapReport, error) {
	if strings.TrimSpace(targetRole) == "" {
		return nil, agent.ErrTargetRoleRequired
	}
	profile, err := uc.agents.Parser.Parse(ctx, resumeText, nil)
	if err != nil {
		return nil, err
	}
	return uc.agents.SkillGap.Analyze(ctx, profile, targetRole)
}

// SearchJobs runs a free-text job search ranked against an empty profile.
func (uc *AnalysisUsecase) SearchJobs(ctx context.Context, query, location string) (*agent.JobMatches, error) {
	if uc.agents.Jobs == nil {
		return nil, agent.ErrNoJobQuery
	}
	return uc.agents.Jobs.Match(ctx, &agent.ResumeProfile{Headline: query}, query, location)
}

func (uc *AnalysisUsecase) ListJobs(ctx context.Context, page, pageSize int) ([]model.JobListing, *response.Pagination, error) {
	if uc.jobs == nil {
		return nil, nil, ErrListingDisabled
	}
	listings, total, err := uc.jobs.ListJobs(ctx, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return listings, response.NewPagination(page, pageSize, total), nil
}

func (uc *AnalysisUsecase) DispatcherStats() []dispatcher.Stats {
	if uc.stats == nil {
		return []dispatcher.Stats{}
	}
	return uc.stats.Stats()
}

// admit reserves a slot in wg unless Close has been called.
func (uc *AnalysisUsecase) admit() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.closed {
		return false
	}
	uc.wg.Add(1)
	return true
}

// Wait blocks until every background analysis has returned or ctx is done.
func (uc *AnalysisUsecase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, cancels running analyses and waits for them
// to record their outcome.
func (uc *AnalysisUsecase) Close(ctx context.Context) error {
	uc.mu.Lock()
	uc.closed = true
	uc.mu.Unlock()
	uc.cancel()
	return uc.Wait(ctx)
}
