package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/edubridge/progress-backend/internal/cache"
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/envutil"
	"github.com/edubridge/progress-backend/internal/pkg/httpx"
)

type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Video struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CourseID        string `json:"courseId"`
	SectionID       string `json:"sectionId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CourseID string `json:"courseId"`
}

// Client is the CMS collaborator. Absence (upstream 404) is a recoverable
// condition and surfaces as (nil, nil); only transport/5xx failures are
// errors. Course and video lookups are cached for an hour.
type Client interface {
	GetCourse(ctx context.Context, courseID string) (*Course, error)
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	GetSections(ctx context.Context, courseID string) ([]Section, error)
	GetVideos(ctx context.Context, sectionID string) ([]Video, error)
	InvalidateCourse(ctx context.Context, courseID string)
	InvalidateVideo(ctx context.Context, videoID string)
}

type client struct {
	log   *logger.Logger
	http  *httpx.Client
	cache cache.Cache
}

type Config struct {
	httpx.Config
}

func ConfigFromEnv() Config {
	return Config{Config: httpx.Config{
		BaseURL:    envutil.String("CMS_BASE_URL", ""),
		ServerKey:  envutil.String("CMS_SERVER_KEY", ""),
		Timeout:    envutil.Duration("CMS_TIMEOUT", 0),
		MaxRetries: envutil.Int("CMS_MAX_RETRIES", 3),
	}}
}

func New(log *logger.Logger, cfg Config, c cache.Cache) (Client, error) {
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	httpClient, err := httpx.NewClient(log, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	return &client{
		log:   log.With("client", "CatalogClient"),
		http:  httpClient,
		cache: c,
	}, nil
}

func (c *client) GetCourse(ctx context.Context, courseID string) (*Course, error) {
	key := cache.KeyCourse(courseID)
	var cached Course
	if c.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var course Course
	err := c.http.GetJSON(ctx, "/api/v1/cms/get-all?courseId="+courseID, &course)
	if errors.Is(err, httpx.ErrNotFound) {
		c.log.Warn("course not found in catalog", "course_id", courseID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}
	c.cache.SetJSON(ctx, key, course, cache.TTLCatalog)
	return &course, nil
}

func (c *client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	key := cache.KeyVideo(videoID)
	var cached Video
	if c.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var video Video
	err := c.http.GetJSON(ctx, "/api/v1/cms/video/get-video/"+videoID, &video)
	if errors.Is(err, httpx.ErrNotFound) {
		c.log.Warn("video not found in catalog", "video_id", videoID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", videoID, err)
	}
	c.cache.SetJSON(ctx, key, video, cache.TTLCatalog)
	return &video, nil
}

func (c *client) GetSections(ctx context.Context, courseID string) ([]Section, error) {
	var sections []Section
	err := c.http.GetJSON(ctx, "/api/v1/cms/section/get-all/"+courseID, &sections)
	if errors.Is(err, httpx.ErrNotFound) {
		return []Section{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch sections for course %s: %w", courseID, err)
	}
	return sections, nil
}

func (c *client) GetVideos(ctx context.Context, sectionID string) ([]Video, error) {
	var videos []Video
	err := c.http.GetJSON(ctx, "/api/v1/cms/video/get-all/"+sectionID, &videos)
	if errors.Is(err, httpx.ErrNotFound) {
		return []Video{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch videos for section %s: %w", sectionID, err)
	}
	return videos, nil
}

func (c *client) InvalidateCourse(ctx context.Context, courseID string) {
	c.cache.Delete(ctx, cache.KeyCourse(courseID))
}

func (c *client) InvalidateVideo(ctx context.Context, videoID string) {
	c.cache.Delete(ctx, cache.KeyVideo(videoID))
}
