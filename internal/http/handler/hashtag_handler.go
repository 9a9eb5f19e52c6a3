package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wikihashtags/hashtagd/internal/app/repository"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// HashtagDeps groups dependencies required by the read API handlers.
type HashtagDeps struct {
	Logger   *zap.Logger
	Hashtags repository.HashtagRepository
	Postgres *pgxpool.Pool
}

// HashtagHandler implements the read-only search and stats endpoints over
// the rows the ingestion pipeline writes. It never mutates the store.
type HashtagHandler struct {
	logger   *zap.Logger
	hashtags repository.HashtagRepository
	postgres *pgxpool.Pool
}

// NewHashtagHandler creates a handler with the provided dependencies.
func NewHashtagHandler(deps HashtagDeps) *HashtagHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HashtagHandler{
		logger:   logger,
		hashtags: deps.Hashtags,
		postgres: deps.Postgres,
	}
}

// Register wires routes onto the provided router.
func (h *HashtagHandler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)

	api := router.Group("/api")
	{
		api.Get("/edits", h.SearchEdits)

		stats := api.Group("/stats")
		{
			stats.Get("/top", h.TopTags)
			stats.Get("/daily", h.EditsPerDay)
		}
	}
}

// EditResponse is one edit in a search result. An edit matched by several
// queried hashtags appears once.
type EditResponse struct {
	Domain      string    `json:"domain"`
	Timestamp   time.Time `json:"timestamp"`
	Username    string    `json:"username"`
	PageTitle   string    `json:"page_title"`
	EditSummary string    `json:"edit_summary"`
	RcID        int64     `json:"rc_id"`
	RevID       *int64    `json:"rev_id,omitempty"`
	HasImage    bool      `json:"has_image"`
	HasVideo    bool      `json:"has_video"`
	HasAudio    bool      `json:"has_audio"`
}

// SearchEdits handles GET /api/edits
func (h *HashtagHandler) SearchEdits(c *fiber.Ctx) error {
	q, err := parseSearchQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	rows, err := h.hashtags.Search(c.Context(), q)
	if err != nil {
		h.logger.Error("edit search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "search failed",
		})
	}

	edits := make([]EditResponse, 0, len(rows))
	for _, r := range rows {
		edits = append(edits, EditResponse{
			Domain:      r.Domain,
			Timestamp:   r.Timestamp,
			Username:    r.Username,
			PageTitle:   r.PageTitle,
			EditSummary: r.EditSummary,
			RcID:        r.RcID,
			RevID:       r.RevID,
			HasImage:    r.HasImage,
			HasVideo:    r.HasVideo,
			HasAudio:    r.HasAudio,
		})
	}

	return c.JSON(fiber.Map{
		"edits":  edits,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// TopTags handles GET /api/stats/top
func (h *HashtagHandler) TopTags(c *fiber.Ctx) error {
	days := c.QueryInt("days", 100)
	limit := c.QueryInt("limit", 10)

	since := time.Now().UTC().AddDate(0, 0, -days)
	tags, err := h.hashtags.TopTags(c.Context(), since, limit)
	if err != nil {
		h.logger.Error("top tags query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "query failed",
		})
	}

	return c.JSON(fiber.Map{"tags": tags, "days": days})
}

// EditsPerDay handles GET /api/stats/daily
func (h *HashtagHandler) EditsPerDay(c *fiber.Ctx) error {
	q, err := parseSearchQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	days, err := h.hashtags.EditsPerDay(c.Context(), q)
	if err != nil {
		h.logger.Error("daily stats query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "query failed",
		})
	}

	return c.JSON(fiber.Map{"days": days})
}

// Health handles GET /healthz
func (h *HashtagHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	if err := h.postgres.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func parseSearchQuery(c *fiber.Ctx) (repository.SearchQuery, error) {
	q := repository.SearchQuery{
		Hashtags: splitHashtags(c.Query("tags")),
		AllTags:  strings.EqualFold(c.Query("op"), "and"),
		Domain:   c.Query("project"),
		Username: c.Query("user"),
		Limit:    c.QueryInt("limit", 20),
		Offset:   c.QueryInt("offset", 0),
	}

	if len(q.Hashtags) == 0 {
		return q, fiber.NewError(fiber.StatusBadRequest, "tags parameter is required")
	}

	if v := c.Query("startdate"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "invalid startdate")
		}
		q.StartDate = &t
	}
	if v := c.Query("enddate"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "invalid enddate")
		}
		// Inclusive end date: the filter's upper bound is exclusive,
		// so push it past the named day.
		end := t.AddDate(0, 0, 1)
		q.EndDate = &end
	}

	for param, dest := range map[string]**bool{
		"has_image": &q.HasImage,
		"has_video": &q.HasVideo,
		"has_audio": &q.HasAudio,
	} {
		if v := c.Query(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return q, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
			}
			*dest = &b
		}
	}

	return q, nil
}

// splitHashtags parses a comma-separated hashtag list, trimming whitespace
// and a leading marker if the user typed one.
func splitHashtags(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		tag = strings.TrimPrefix(tag, "#")
		tag = strings.TrimPrefix(tag, "＃")
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
