package devserver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitesentry/livesync/internal/events"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/metadata"
	"github.com/sitesentry/livesync/internal/models"
)

// Config configures the simulation server.
type Config struct {
	Addr      string
	JWTSecret string
	Username  string
	Password  string

	// RunDuration is how long a triggered login run stays IN_PROGRESS
	// before completing on its own. Zero disables auto-completion; tests
	// then drive runs with CompleteRun.
	RunDuration time.Duration
}

// Server serves the simulated dashboard backend.
type Server struct {
	cfg       Config
	store     *Store
	hub       *Hub
	sessions  *sessionManager
	extractor *metadata.Extractor
	log       logger.Logger
	engine    *gin.Engine
	httpSrv   *http.Server
}

// NewServer wires the routes. Call Start to listen or use Handler with
// httptest.
func NewServer(cfg Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		store:     NewStore(),
		hub:       NewHub(log),
		sessions:  newSessionManager(cfg.JWTSecret),
		extractor: metadata.NewExtractor(log),
		log:       log,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Store exposes the backing store for test seeding.
func (s *Server) Store() *Store { return s.store }

// Handler returns the HTTP handler, for mounting under httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/user/login", s.handleLogin)
	s.engine.POST("/user/logout", s.handleLogout)
	s.engine.GET("/user/data", s.handleUserData)
	s.engine.GET("/ws", gin.WrapF(s.hub.Serve))
	s.engine.GET("/api/health", s.handleHealth)

	api := s.engine.Group("/api", s.sessions.requireSession())
	api.GET("/websites", s.handleListWebsites)
	api.POST("/websites", s.handleAddWebsite)
	api.POST("/websites/check_custom_login_script", s.handleCheckScript)
	api.GET("/websites/metadata", s.handleWebsiteMetadata)
	api.GET("/screenshot/:screenshot_id", s.handleScreenshot)
	api.GET("/websites/:id", s.handleGetWebsite)
	api.PUT("/websites/:id", s.handleEditWebsite)
	api.DELETE("/websites/:id", s.handleDeleteWebsite)

	api.GET("/action_history/:website_id", s.handleListExecutions)
	api.POST("/action_history/manual_add/:website_id", s.handleManualExecution)
	api.POST("/trigger_login", s.handleTriggerLogin)

	api.GET("/notifications", s.handleListNotifications)
	api.POST("/notifications", s.handleAddNotification)
	api.POST("/notifications/test", s.handleTestNotification)
	api.PUT("/notifications/:id", s.handleEditNotification)
	api.DELETE("/notifications/:id", s.handleDeleteNotification)
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.log.Info("dev server listening", logger.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) broadcast(event events.Type, websiteID int64) {
	s.hub.Broadcast(events.New(event, events.Payload{WebsiteID: websiteID}))
}

func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username != s.cfg.Username || password != s.cfg.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	token, err := s.sessions.issueToken(username)
	if err != nil {
		s.log.Error("failed to issue session token", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.SetCookie(sessionCookie, token, int(sessionMaxAge.Seconds()), cookiePathRoot, "", false, true)
	c.Status(http.StatusOK)
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, cookiePathRoot, "", false, true)
	c.Status(http.StatusOK)
}

func (s *Server) handleUserData(c *gin.Context) {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	username, err := s.sessions.validateToken(cookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
		return
	}
	c.JSON(http.StatusOK, models.UserData{Username: username})
}

func (s *Server) handleListWebsites(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	c.JSON(http.StatusOK, s.store.ListWebsites(page, pageSize, c.Query("search")))
}

func (s *Server) handleGetWebsite(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website id"})
		return
	}
	w, err := s.store.GetWebsite(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleAddWebsite(c *gin.Context) {
	var patch models.WebsitePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if patch.URL == nil || *patch.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	w := s.store.AddWebsite(patch)
	s.log.Info("website added", logger.Int64("website_id", w.ID), logger.String("name", w.Name))
	s.broadcast(events.WebsiteAdded, w.ID)
	c.JSON(http.StatusCreated, w)
}

func (s *Server) handleEditWebsite(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website id"})
		return
	}
	var patch models.WebsitePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	w, err := s.store.EditWebsite(id, patch)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	s.broadcast(events.WebsiteUpdated, id)
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleDeleteWebsite(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website id"})
		return
	}
	if err := s.store.DeleteWebsite(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	s.broadcast(events.WebsiteDeleted, id)
	c.Status(http.StatusNoContent)
}

// scriptCommands are the statements the login script runner understands.
var scriptCommands = map[string]bool{
	"goto":          true,
	"fill_username": true,
	"fill_password": true,
	"fill_pin":      true,
	"submit":        true,
	"wait":          true,
	"screenshot":    true,
}

// checkScript validates a custom login script line by line. Empty return
// means the script passed.
func checkScript(source string) string {
	if strings.TrimSpace(source) == "" {
		return "script is empty"
	}
	for i, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		command := strings.Fields(line)[0]
		if !scriptCommands[command] {
			return fmt.Sprintf("line %d: unknown command %q", i+1, command)
		}
	}
	return ""
}

func (s *Server) handleCheckScript(c *gin.Context) {
	var req struct {
		Script string `json:"script"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if msg := checkScript(req.Script); msg != "" {
		c.JSON(http.StatusOK, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": nil})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebsiteMetadata fetches the given login page and returns prefill
// suggestions for the add-website form.
func (s *Server) handleWebsiteMetadata(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	suggestion, err := s.extractor.Extract(c.Request.Context(), pageURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Metadata extraction failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (s *Server) handleScreenshot(c *gin.Context) {
	data, err := s.store.GetScreenshot(c.Param("screenshot_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Screenshot not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleListExecutions(c *gin.Context) {
	websiteID, err := strconv.ParseInt(c.Param("website_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	result, err := s.store.ListExecutions(websiteID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleManualExecution(c *gin.Context) {
	websiteID, err := strconv.ParseInt(c.Param("website_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid website id"})
		return
	}
	// The client sends no body; a completed successful run is synthesized.
	// A body, when present, supplies the execution instead.
	var exec models.ActionExecution
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&exec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
		if !exec.ExecutionStatus.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid execution status"})
			return
		}
	} else {
		ended := time.Now().UTC()
		exec = models.ActionExecution{
			ExecutionStatus: models.StatusSuccess,
			ExecutionEnded:  &ended,
		}
	}
	created, err := s.store.AddManualExecution(websiteID, exec)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	s.broadcast(events.ActionHistoryUpdated, websiteID)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleTriggerLogin(c *gin.Context) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	exec, err := s.store.StartExecution(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Website not found"})
		return
	}
	s.log.Info("login run started",
		logger.Int64("website_id", req.ID),
		logger.Int64("execution_id", exec.ID),
	)
	s.broadcast(events.ActionStarted, req.ID)

	if s.cfg.RunDuration > 0 {
		executionID := exec.ID
		websiteID := req.ID
		time.AfterFunc(s.cfg.RunDuration, func() {
			s.CompleteRun(executionID, websiteID, models.StatusSuccess)
		})
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListNotifications())
}

func (s *Server) handleAddNotification(c *gin.Context) {
	var n models.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	created := s.store.AddNotification(n)
	s.broadcast(events.NotificationAdded, 0)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleEditNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}
	var patch models.NotificationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	patch.ID = id
	updated, err := s.store.EditNotification(patch)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	s.broadcast(events.NotificationUpdated, 0)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}
	if err := s.store.DeleteNotification(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	s.broadcast(events.NotificationDeleted, 0)
	c.Status(http.StatusNoContent)
}

// handleTestNotification pretends to deliver the notification. The
// simulation has no Apprise backend; a well-formed config always passes.
func (s *Server) handleTestNotification(c *gin.Context) {
	var n models.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if n.Title == "" && n.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Notification has no content"})
		return
	}
	c.Status(http.StatusOK)
}

// placeholderScreenshot renders the stand-in image served for simulated
// runs. The simulation has no browser; a single gray pixel stands in for
// the real capture.
func placeholderScreenshot() []byte {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// CompleteRun resolves a triggered run and broadcasts the completion
// events. Successful runs on screenshot-enabled websites get a screenshot
// id.
func (s *Server) CompleteRun(executionID, websiteID int64, status models.ActionStatus) {
	result := models.ActionExecution{ExecutionStatus: status}
	if status == models.StatusSuccess {
		if w, err := s.store.GetWebsite(websiteID); err == nil && w.TakeScreenshot {
			screenshotID := uuid.New().String()
			result.ScreenshotID = &screenshotID
			s.store.SaveScreenshot(screenshotID, placeholderScreenshot())
		}
	}
	if _, err := s.store.FinishExecution(executionID, result); err != nil {
		s.log.Warn("cannot complete unknown run",
			logger.Int64("execution_id", executionID),
			logger.Error(err),
		)
		return
	}
	s.broadcast(events.ActionCompleted, websiteID)
	s.broadcast(events.ActionHistoryUpdated, websiteID)
}
