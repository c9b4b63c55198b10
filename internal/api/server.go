package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/camilo/tender-radar/internal/db"
	"github.com/camilo/tender-radar/internal/ingest"
	"github.com/camilo/tender-radar/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Store   *db.Store
	Fetcher ingest.Fetcher
	Syncer  *ingest.Syncer
	Echo    *echo.Echo
	DB      *pgxpool.Pool

	// Guards the sync endpoint: one batch at a time.
	syncMu      sync.Mutex
	syncRunning bool
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, fetcher ingest.Fetcher) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	store := db.NewStore(pool)

	s := &Server{
		DB:      pool,
		Store:   store,
		Fetcher: fetcher,
		Syncer:  ingest.NewSyncer(fetcher, store, store),
		Echo:    e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:reference", s.handleGetTender)
	api.GET("/live", s.handleLiveTenders)
	api.GET("/stats", s.handleGetStats)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/sync", s.handleTriggerSync)
	admin.GET("/sync/runs", s.handleListSyncRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// resolveCodes turns the codes/profile_id query params into the declared
// interest set. The bool reports whether a profile was requested but matches
// nothing (unknown, inactive, or empty code set).
func (s *Server) resolveCodes(c echo.Context) (codes []string, profile *models.InterestProfile, matchNone bool, err error) {
	if raw := c.QueryParam("codes"); raw != "" {
		return splitCSV(raw), nil, false, nil
	}

	rawID := c.QueryParam("profile_id")
	if rawID == "" {
		return nil, nil, false, nil
	}

	profileID, parseErr := uuid.Parse(rawID)
	if parseErr != nil {
		return nil, nil, false, echo.NewHTTPError(http.StatusBadRequest, "invalid profile_id")
	}

	profile, err = s.Store.GetInterestProfile(c.Request().Context(), profileID)
	if err != nil {
		return nil, nil, false, err
	}
	if profile == nil || len(profile.Codes) == 0 {
		// A subscriber with nothing declared gets nothing, never everything.
		return nil, profile, true, nil
	}

	return profile.Codes, profile, false, nil
}

func (s *Server) handleListTenders(c echo.Context) error {
	codes, profile, matchNone, err := s.resolveCodes(c)
	if err != nil {
		if httpErr, ok := err.(*echo.HTTPError); ok {
			return httpErr
		}
		c.Logger().Errorf("Failed to resolve interest profile: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	limit := 20
	offset := 0
	var minPrice, maxPrice float64

	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_price"), 64); err == nil && v > 0 {
		minPrice = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_price"), 64); err == nil && v > 0 {
		maxPrice = v
	}

	if matchNone {
		return c.JSON(http.StatusOK, &db.ListResult{
			Tenders: []models.Tender{},
			Limit:   limit,
			Offset:  offset,
		})
	}

	params := db.ListParams{
		Query:       c.QueryParam("q"),
		Departments: splitCSV(c.QueryParam("department")),
		City:        c.QueryParam("city"),
		Modality:    c.QueryParam("modality"),
		Phase:       c.QueryParam("phase"),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		Codes:       codes,
		Limit:       limit,
		Offset:      offset,
		SortBy:      c.QueryParam("sort"),
	}

	// Profile-scoped listing inherits the subscriber's own constraints unless
	// the request overrides them.
	if profile != nil {
		if len(params.Departments) == 0 {
			params.Departments = profile.Departments
		}
		if params.MinPrice == 0 && profile.MinValue > 0 {
			params.MinPrice = profile.MinValue
		}
		if params.MaxPrice == 0 && profile.MaxValue > 0 {
			params.MaxPrice = profile.MaxValue
		}
	}

	result, err := s.Store.ListTenders(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list tenders: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetTender(c echo.Context) error {
	reference := c.Param("reference")
	tender, err := s.Store.FindByReference(c.Request().Context(), reference)
	if err != nil {
		c.Logger().Errorf("Failed to load tender %q: %v", reference, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if tender == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, tender)
}

// handleLiveTenders previews the upstream feed without persisting anything.
// Upstream failures surface as an empty list, not an error status: the caller
// cannot distinguish "nothing open" from "source down" and is not meant to.
func (s *Server) handleLiveTenders(c echo.Context) error {
	codes, _, matchNone, err := s.resolveCodes(c)
	if err != nil {
		if httpErr, ok := err.(*echo.HTTPError); ok {
			return httpErr
		}
		c.Logger().Errorf("Failed to resolve interest profile: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if matchNone {
		return c.JSON(http.StatusOK, []models.Tender{})
	}

	tenders := s.Fetcher.FetchOpportunities(c.Request().Context(), codes)
	if tenders == nil {
		tenders = []models.Tender{}
	}
	return c.JSON(http.StatusOK, tenders)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTriggerSync(c echo.Context) error {
	s.syncMu.Lock()
	if s.syncRunning {
		s.syncMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]string{"error": "A sync batch is already running"})
	}
	s.syncRunning = true
	s.syncMu.Unlock()

	defer func() {
		s.syncMu.Lock()
		s.syncRunning = false
		s.syncMu.Unlock()
	}()

	stats, err := s.Syncer.SyncBatch(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Sync batch failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "sync failed",
			"stats": stats,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Sync complete",
		"stats":   stats,
	})
}

func (s *Server) handleListSyncRuns(c echo.Context) error {
	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	runs, err := s.Store.ListSyncRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
