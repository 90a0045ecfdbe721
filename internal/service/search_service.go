package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	SearchWeb    = "web"
	SearchImages = "images"
	SearchJobs   = "jobs"

	maxSearchResults = 10
	snippetLimit     = 300
)

type SearchResult struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet,omitempty"`
	Source    string `json:"source,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
}

// Searcher is implemented by SearchService.
type Searcher interface {
	Web(ctx context.Context, query string, n int) ([]SearchResult, error)
	Images(ctx context.Context, query string, n int) ([]SearchResult, error)
	Jobs(ctx context.Context, query, location string, n int) ([]SearchResult, error)
}

type SearchService struct {
	cfg        *config.SearchConfig
	client     *resty.Client
	cache      Cache
	dispatcher *dispatcher.Dispatcher
	policy     dispatcher.RetryPolicy
	log        *zap.Logger
}

func NewSearchService(cfg *config.SearchConfig, cache Cache, d *dispatcher.Dispatcher, policy dispatcher.RetryPolicy, log *zap.Logger) *SearchService {
	if cache == nil {
		cache = NopCache{}
	}
	return &SearchService{
		cfg:        cfg,
		client:     resty.New().SetTimeout(cfg.Timeout),
		cache:      cache,
		dispatcher: d,
		policy:     policy,
		log:        logger.OrNop(log),
	}
}

func (s *SearchService) Web(ctx context.Context, query string, n int) ([]SearchResult, error) {
	return s.google(ctx, SearchWeb, query, n)
}

func (s *SearchService) Images(ctx context.Context, query string, n int) ([]SearchResult, error) {
	return s.google(ctx, SearchImages, query, n)
}

func (s *SearchService) Jobs(ctx context.Context, query, location string, n int) ([]SearchResult, error) {
	if s.cfg.JobsAPIKey == "" {
		return nil, fmt.Errorf("job search: %w", ErrMissingAPIKey)
	}
	q := strings.TrimSpace(query)
	if loc := strings.TrimSpace(location); loc != "" {
		q = q + " in " + loc
	}
	n = clampResults(n)

	return s.cached(ctx, SearchJobs, q, n, func(ctx context.Context) (string, error) {
		return s.get(ctx, SearchJobs, s.cfg.JobsBaseURL, map[string]string{
			"query":     q,
			"page":      "1",
			"num_pages": "1",
		}, map[string]string{
			"X-RapidAPI-Key":  s.cfg.JobsAPIKey,
			"X-RapidAPI-Host": s.cfg.JobsHost,
		})
	}, parseJobResults)
}

func (s *SearchService) google(ctx context.Context, kind, query string, n int) ([]SearchResult, error) {
	if s.cfg.GoogleAPIKey == "" || s.cfg.GoogleCX == "" {
		return nil, fmt.Errorf("%s search: %w", kind, ErrMissingAPIKey)
	}
	q := strings.TrimSpace(query)
	n = clampResults(n)

	params := map[string]string{
		"key": s.cfg.GoogleAPIKey,
		"cx":  s.cfg.GoogleCX,
		"q":   q,
		"num": strconv.Itoa(n),
	}
	if kind == SearchImages {
		params["searchType"] = "image"
	}

	return s.cached(ctx, kind, q, n, func(ctx context.Context) (string, error) {
		return s.get(ctx, kind, s.cfg.GoogleBaseURL, params, nil)
	}, parseGoogleResults)
}

func (s *SearchService) cached(
	ctx context.Context,
	kind, query string,
	n int,
	fetch func(context.Context) (string, error),
	parse func(string) []SearchResult,
) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%s search: empty query", kind)
	}
	key := cacheKey(kind, query, n)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("search cache read failed", zap.String("kind", kind), zap.Error(err))
	} else if ok {
		var results []SearchResult
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			return results, nil
		}
	}

	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	results := parse(body)
	if len(results) > n {
		results = results[:n]
	}

	if raw, err := json.Marshal(results); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.cfg.CacheTTL); err != nil {
			s.log.Warn("search cache write failed", zap.String("kind", kind), zap.Error(err))
		}
	}
	return results, nil
}

func (s *SearchService) get(ctx context.Context, kind, endpoint string, params, headers map[string]string) (string, error) {
	var body string
	err := dispatcher.Retry(ctx, s.dispatcher, "search:"+kind, s.policy, func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetHeaders(headers).
			Get(endpoint)
		if err != nil {
			return fmt.Errorf("%s search request: %w", kind, err)
		}
		if resp.IsError() {
			return dispatcher.NewStatusError(resp.StatusCode(), resp.Header(), resp.String())
		}
		body = resp.String()
		return nil
	})
	return body, err
}

func parseGoogleResults(body string) []SearchResult {
	var results []SearchResult
	gjson.Get(body, "items").ForEach(func(_, item gjson.Result) bool {
		r := SearchResult{
			Title:   item.Get("title").String(),
			Link:    item.Get("link").String(),
			Snippet: truncate(item.Get("snippet").String(), snippetLimit),
			Source:  item.Get("displayLink").String(),
		}
		if thumb := item.Get("image.thumbnailLink"); thumb.Exists() {
			r.Thumbnail = thumb.String()
			if page := item.Get("image.contextLink").String(); page != "" {
				r.Source = page
			}
		}
		if r.Link != "" {
			results = append(results, r)
		}
		return true
	})
	return results
}

func parseJobResults(body string) []SearchResult {
	var results []SearchResult
	gjson.Get(body, "data").ForEach(func(_, item gjson.Result) bool {
		link := firstNonEmpty(item.Get("job_apply_link").String(), item.Get("job_google_link").String())
		if link == "" {
			return true
		}
		var loc []string
		for _, f := range []string{"job_city", "job_state", "job_country"} {
			if v := item.Get(f).String(); v != "" {
				loc = append(loc, v)
			}
		}
		results = append(results, SearchResult{
			Title:    item.Get("job_title").String(),
			Link:     link,
			Snippet:  truncate(item.Get("job_description").String(), snippetLimit),
			Source:   item.Get("job_publisher").String(),
			Company:  item.Get("employer_name").String(),
			Location: strings.Join(loc, ", "),
		})
		return true
	})
	return results
}

func cacheKey(kind, query string, n int) string {
	sum := sha1.Sum([]byte(strings.ToLower(query) + "|" + strconv.Itoa(n)))
	return "search:" + kind + ":" + hex.EncodeToString(sum[:])
}

func clampResults(n int) int {
	if n <= 0 || n > maxSearchResults {
		return maxSearchResults
	}
	return n
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
