package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/resume-insight/internal/agent"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const resumeText = `Ada Lovelace
Backend Engineer at Acme since 2020. Builds Go services on PostgreSQL and Docker,
owns the billing pipeline and mentors two junior engineers.`

var cannedAnswers = map[string]string{
	"resume parser": "```json\n" + `{
  "contact": {"name": "Ada Lovelace"},
  "headline": "Backend Engineer",
  "summary": "Backend engineer building Go services.",
  "skills": ["Go", "PostgreSQL", "Docker"],
  "experience": [{"title": "Backend Engineer", "company": "Acme"}],
}` + "\n```",
	"technical recruiter": `{"overall": 78, "sections": [{"name": "experience", "score": 80}], "strengths": ["Go"]}`,
	"career coach": `{"match_score": 65, "matching_skills": ["Go"], "missing_skills": [{"skill": "Kubernetes", "priority": "high"}]}`,
	"organisational psychologist": `{"openness": 70, "conscientiousness": 82, "extraversion": 40, "agreeableness": 66, "neuroticism": 30}`,
	"rank job listings": `{"scores": [{"index": 1, "score": 90, "reason": "Go role"}, {"index": 0, "score": 40}]}`,
}

var testJobs = []service.SearchResult{
	{Title: "Frontend Developer", Company: "Beta", Link: "https://jobs.example/1"},
	{Title: "Go Backend Engineer", Company: "Gamma", Link: "https://jobs.example/2"},
}

type harness struct {
	uc       *AnalysisUsecase
	llm      *fakeLLM
	tasks    *fakeTasks
	store    *fakeStore
	notifier *fakeNotifier
	jobs     *fakeJobs
}

func newHarness(t *testing.T, llm *fakeLLM, doc *extract.Document) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	runner := agent.NewRunner(llm, log)
	search := &fakeSearcher{jobs: testJobs}

	h := &harness{
		llm:      llm,
		tasks:    newFakeTasks(),
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
		jobs:     &fakeJobs{total: 45},
	}
	h.uc = NewAnalysisUsecase(Deps{
		Tasks:     h.tasks,
		Jobs:      h.jobs,
		Store:     h.store,
		Extractor: &fakeExtractor{doc: doc},
		Agents: Agents{
			Parser:      agent.NewResumeParser(runner),
			Scorer:      agent.NewResumeScorer(runner),
			SkillGap:    agent.NewSkillGapAnalyzer(runner, nil, log),
			Personality: agent.NewPersonalityProfiler(runner),
			Jobs:        agent.NewJobMatcher(runner, search, nil, nil, log),
		},
		Notifier: h.notifier,
		Stats:    fakeStats{{Model: "gemini-2.5-flash", Limit: 20, Remaining: 19}},
		Log:      log,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.uc.Close(ctx)
	})
	return h
}

func pdfDoc() *extract.Document {
	return &extract.Document{Kind: extract.KindPDF, MIMEType: "application/pdf", Text: resumeText, Pages: 1}
}

func waitIdle(t *testing.T, uc *AnalysisUsecase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, uc.Wait(ctx))
}

func TestSubmit_RunsAnalysisInBackground(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, pdfDoc())

	task, err := h.uc.Submit(context.Background(), SubmitInput{
		FileName:   "../cv/Ada Resume.PDF",
		MIMEType:   "application/pdf",
		Data:       []byte("%PDF-1.4"),
		TargetRole: " Platform Engineer ",
		Location:   "Remote",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, task.Status)
	assert.Equal(t, "Ada Resume.PDF", task.FileName)
	assert.Equal(t, "Platform Engineer", task.TargetRole)
	require.Len(t, h.store.keys, 1)
	assert.Equal(t, "resumes/"+task.ID.String()+".pdf", h.store.keys[0])

	waitIdle(t, h.uc)

	got, err := h.uc.GetResult(context.Background(), task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.CompletedAt)

	var profile agent.ResumeProfile
	require.NoError(t, json.Unmarshal(got.Profile, &profile))
	assert.Equal(t, "Backend Engineer", profile.Headline)

	var score agent.ResumeScore
	require.NoError(t, json.Unmarshal(got.Score, &score))
	assert.Equal(t, agent.Score(78), score.Overall)

	var gap agent.SkillGapReport
	require.NoError(t, json.Unmarshal(got.SkillGap, &gap))
	require.Len(t, gap.MissingSkills, 1)
	assert.Equal(t, "Kubernetes", gap.MissingSkills[0].Skill)

	var personality agent.PersonalityProfile
	require.NoError(t, json.Unmarshal(got.Personality, &personality))
	assert.Equal(t, agent.Score(82), personality.Conscientiousness)

	var jobs agent.JobMatches
	require.NoError(t, json.Unmarshal(got.Jobs, &jobs))
	assert.Equal(t, agent.RankingLLM, jobs.Ranking)
	require.Len(t, jobs.Jobs, 2)
	assert.Equal(t, "Go Backend Engineer", jobs.Jobs[0].Title)

	assert.Equal(t, []string{"queued", "parsing", "analysing", "completed"}, h.notifier.stages())
}

func TestSubmit_ExtractionErrorCreatesNoTask(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, nil)
	h.uc.extractor = &fakeExtractor{err: extract.ErrUnsupportedType}

	_, err := h.uc.Submit(context.Background(), SubmitInput{FileName: "resume.exe", Data: []byte{0x4d, 0x5a}})
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)
	assert.Empty(t, h.tasks.tasks)
	assert.Empty(t, h.store.keys)
}

func TestRun_WithoutTargetRoleSkipsSkillGap(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, pdfDoc())
	task := &model.AnalysisTask{ID: uuid.New(), ResumeText: resumeText, Status: model.StatusProcessing}

	require.NoError(t, h.uc.Run(context.Background(), task, nil))
	assert.Equal(t, model.StatusCompleted, task.Status)
	assert.Nil(t, task.SkillGap)
	assert.NotNil(t, task.Score)
	assert.NotNil(t, task.Jobs)
}

func TestRun_AgentFailuresDegrade(t *testing.T) {
	answers := map[string]string{"resume parser": cannedAnswers["resume parser"]}
	h := newHarness(t, &fakeLLM{answers: answers}, pdfDoc())
	task := &model.AnalysisTask{ID: uuid.New(), ResumeText: resumeText, TargetRole: "SRE"}

	require.NoError(t, h.uc.Run(context.Background(), task, nil))
	assert.Equal(t, model.StatusCompleted, task.Status)

	var score agent.ResumeScore
	require.NoError(t, json.Unmarshal(task.Score, &score))
	assert.True(t, score.Fallback)

	var personality agent.PersonalityProfile
	require.NoError(t, json.Unmarshal(task.Personality, &personality))
	assert.True(t, personality.Fallback)
	assert.Equal(t, agent.Score(50), personality.Openness)

	var jobs agent.JobMatches
	require.NoError(t, json.Unmarshal(task.Jobs, &jobs))
	assert.Equal(t, agent.RankingNone, jobs.Ranking)
	assert.Len(t, jobs.Jobs, 2)
}

func TestRun_EmptyResumeFailsTask(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, pdfDoc())
	task := &model.AnalysisTask{ID: uuid.New(), Status: model.StatusProcessing}
	h.tasks.tasks[task.ID.String()] = *task

	err := h.uc.Run(context.Background(), task, nil)
	assert.ErrorIs(t, err, agent.ErrNoContent)

	stored, err := h.uc.GetResult(context.Background(), task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "parse resume")
	assert.Equal(t, []string{"parsing", "failed"}, h.notifier.stages())
}

func TestClose_CancelsRunningAnalysis(t *testing.T) {
	defer goleak.VerifyNone(t)

	llm := &fakeLLM{answers: cannedAnswers, block: make(chan struct{})}
	h := newHarness(t, llm, pdfDoc())

	task, err := h.uc.Submit(context.Background(), SubmitInput{FileName: "cv.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.uc.Close(ctx))

	stored, err := h.uc.GetResult(context.Background(), task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)

	_, err = h.uc.Submit(context.Background(), SubmitInput{FileName: "cv.pdf", Data: []byte("%PDF")})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_RacingSubmitsLeaveNoTaskProcessing(t *testing.T) {
	defer goleak.VerifyNone(t)

	llm := &fakeLLM{answers: cannedAnswers, block: make(chan struct{})}
	h := newHarness(t, llm, pdfDoc())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []string
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := h.uc.Submit(context.Background(), SubmitInput{FileName: "cv.pdf", Data: []byte("%PDF")})
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
				return
			}
			mu.Lock()
			accepted = append(accepted, task.ID.String())
			mu.Unlock()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.uc.Close(ctx))
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, id := range accepted {
		stored, err := h.uc.GetResult(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, stored.Status, "task %s", id)
	}
}

func TestGetResult_Errors(t *testing.T) {
	h := newHarness(t, &fakeLLM{}, pdfDoc())

	_, err := h.uc.GetResult(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = h.uc.GetResult(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSkillGap(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, pdfDoc())

	_, err := h.uc.SkillGap(context.Background(), resumeText, "  ")
	assert.ErrorIs(t, err, agent.ErrTargetRoleRequired)

	report, err := h.uc.SkillGap(context.Background(), resumeText, "Platform Engineer")
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", report.TargetRole)
	assert.Equal(t, agent.Score(65), report.MatchScore)
}

func TestSearchJobs(t *testing.T) {
	h := newHarness(t, &fakeLLM{answers: cannedAnswers}, pdfDoc())

	matches, err := h.uc.SearchJobs(context.Background(), "golang developer", "Berlin")
	require.NoError(t, err)
	assert.Equal(t, "golang developer", matches.Query)
	assert.Equal(t, "Berlin", matches.Location)
	assert.Equal(t, "Go Backend Engineer", matches.Jobs[0].Title)

	h.uc.agents.Jobs = nil
	_, err = h.uc.SearchJobs(context.Background(), "golang developer", "")
	assert.ErrorIs(t, err, agent.ErrNoJobQuery)
}

func TestListJobs(t *testing.T) {
	h := newHarness(t, &fakeLLM{}, pdfDoc())
	h.jobs.listings = []model.JobListing{{Title: "Go Backend Engineer"}}

	listings, page, err := h.uc.ListJobs(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 2, h.jobs.page)
	assert.Equal(t, 20, h.jobs.size)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.True(t, page.HasMore)

	h.uc.jobs = nil
	_, _, err = h.uc.ListJobs(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrListingDisabled)
}

func TestDispatcherStats(t *testing.T) {
	h := newHarness(t, &fakeLLM{}, pdfDoc())
	stats := h.uc.DispatcherStats()
	require.Len(t, stats, 1)
	assert.Equal(t, 19, stats[0].Remaining)

	h.uc.stats = nil
	assert.Equal(t, []dispatcher.Stats{}, h.uc.DispatcherStats())
}

func TestResumeImages(t *testing.T) {
	assert.Nil(t, ResumeImages(pdfDoc()))
	assert.Nil(t, ResumeImages(&extract.Document{Kind: extract.KindImage}))

	img := &extract.Document{Kind: extract.KindImage, MIMEType: "image/png", Image: []byte{0x89, 'P'}}
	assert.Equal(t, []service.ImagePart{{MIMEType: "image/png", Data: []byte{0x89, 'P'}}}, ResumeImages(img))
}
