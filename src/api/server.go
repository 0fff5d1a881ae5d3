package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lungscan-server-go/src/configs"
	"lungscan-server-go/src/core/analysis"
	"lungscan-server-go/src/core/auth"
	"lungscan-server-go/src/core/chat"
	"lungscan-server-go/src/core/classifier"
	"lungscan-server-go/src/core/imaging"
	"lungscan-server-go/src/core/report"
	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
	"lungscan-server-go/src/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Uploads above 5MB are rejected.
	MAX_FILE_SIZE = 5 * 1024 * 1024

	resultLabelKey = "result_label"
	requestIDKey   = "request_id"
)

// Service is the HTTP gateway: one handler per service call, uniform
// error translation, no business logic of its own.
type Service struct {
	logger     *utils.Logger
	config     *configs.Config
	classifier *classifier.Service
	analyzer   *analysis.Analyzer
	chat       *chat.Service
	auditor    *store.Auditor
	authToken  *auth.AuthToken
}

// NewService creates the gateway.
func NewService(config *configs.Config, logger *utils.Logger, cls *classifier.Service, analyzer *analysis.Analyzer, chatService *chat.Service, auditor *store.Auditor) *Service {
	service := &Service{
		logger:     logger,
		config:     config,
		classifier: cls,
		analyzer:   analyzer,
		chat:       chatService,
		auditor:    auditor,
	}

	if config.Server.Auth.Enabled {
		service.authToken = auth.NewAuthToken(config.Server.Auth.Token)
	}

	return service
}

// Start registers all routes on the engine.
func (s *Service) Start(ctx context.Context, engine *gin.Engine) error {
	engine.Use(s.requestIDMiddleware, s.corsMiddleware, s.auditMiddleware)

	engine.GET("/", s.handleRoot)

	group := engine.Group("/")
	if s.authToken != nil {
		group.Use(s.authMiddleware)
	}

	group.POST("/predict", s.handlePredict)
	group.POST("/analyze", s.handleAnalyze)
	group.POST("/chat", s.handleChat)
	group.POST("/educational-chat", s.handleEducationalChat)
	group.POST("/analyze-risk", s.handleAnalyzeRisk)
	group.POST("/generate-report", s.handleGenerateReport)
	group.GET("/chat/stream", s.handleChatStream)

	s.logger.Info("API routes registered")
	return nil
}

func (s *Service) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Msg: "Lung Cancer Prediction API is running."})
}

func (s *Service) handlePredict(c *gin.Context) {
	imageBytes, ok := s.readImageUpload(c)
	if !ok {
		return
	}

	result, err := s.classifier.Classify(c.Request.Context(), imageBytes)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Set(resultLabelKey, result.Label)
	c.JSON(http.StatusOK, PredictResponse{
		Prediction:  result.Label,
		Confidence:  result.Confidence,
		CancerClass: result.Label,
	})
}

func (s *Service) handleAnalyze(c *gin.Context) {
	imageBytes, ok := s.readImageUpload(c)
	if !ok {
		return
	}

	description := c.Request.FormValue("description")

	// Tolerant contract: failures come back as 200 with an error field so
	// the client widget handles both variants the same way.
	outcome := s.analyzer.Analyze(c.Request.Context(), imageBytes, description)
	c.JSON(http.StatusOK, outcome)
}

func (s *Service) handleChat(c *gin.Context) {
	var req ChatMessage
	if !s.bindJSON(c, &req) {
		return
	}

	text, err := s.chat.Respond(c.Request.Context(), req.Message, req.Context)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: text})
}

func (s *Service) handleEducationalChat(c *gin.Context) {
	var req ChatMessage
	if !s.bindJSON(c, &req) {
		return
	}

	text, err := s.chat.RespondEducational(c.Request.Context(), req.Message, req.Context)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: text})
}

func (s *Service) handleAnalyzeRisk(c *gin.Context) {
	var req chat.RiskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.chat.AssessRisk(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) handleGenerateReport(c *gin.Context) {
	var req report.Request
	if !s.bindJSON(c, &req) {
		return
	}

	c.JSON(http.StatusOK, report.Assemble(req))
}

// readImageUpload parses the multipart upload, enforces the image
// content-type and size cap and optionally archives the file. Responds on
// failure and returns ok=false.
func (s *Service) readImageUpload(c *gin.Context) ([]byte, bool) {
	if err := c.Request.ParseMultipartForm(MAX_FILE_SIZE); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("invalid multipart form: %v", err)})
		return nil, false
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("missing image file: %v", err)})
		return nil, false
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid image format."})
		return nil, false
	}

	if header.Size > MAX_FILE_SIZE {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("file too large, limit is %dMB", MAX_FILE_SIZE/1024/1024)})
		return nil, false
	}

	imageBytes, err := io.ReadAll(io.LimitReader(file, MAX_FILE_SIZE))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("read image file: %v", err)})
		return nil, false
	}
	if len(imageBytes) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "empty image file"})
		return nil, false
	}

	if s.config.Server.SaveUploads {
		s.saveUpload(imageBytes)
	}

	return imageBytes, true
}

func (s *Service) saveUpload(imageBytes []byte) {
	format := imaging.DetectFormat(imageBytes)
	if format == "" {
		format = "bin"
	}
	filename := fmt.Sprintf("%s.%s", uuid.New().String(), format)
	path := filepath.Join("uploads", filename)

	if err := os.MkdirAll("uploads", 0755); err != nil {
		s.logger.Warn(fmt.Sprintf("create uploads dir: %v", err))
		return
	}
	if err := os.WriteFile(path, imageBytes, 0644); err != nil {
		s.logger.Warn(fmt.Sprintf("save upload: %v", err))
		return
	}

	s.logger.Debug(fmt.Sprintf("upload archived at %s", path))
}

// bindJSON binds the request body, answering 422 on schema violations.
func (s *Service) bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error()})
		return false
	}
	return true
}

// respondError maps a service failure onto the HTTP taxonomy.
func (s *Service) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, types.ErrInvalidImage) {
		status = http.StatusBadRequest
	}

	s.logger.Warn(fmt.Sprintf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err))
	c.JSON(status, ErrorResponse{Detail: err.Error()})
}

func (s *Service) requestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader("X-Request-Id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-Id", requestID)
	c.Next()
}

func (s *Service) corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "content-type, authorization, x-request-id")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}

func (s *Service) auditMiddleware(c *gin.Context) {
	if s.auditor == nil {
		c.Next()
		return
	}

	start := time.Now()
	c.Next()

	s.auditor.Record(store.AuditRecord{
		RequestID: c.GetString(requestIDKey),
		Endpoint:  c.FullPath(),
		Status:    c.Writer.Status(),
		Label:     c.GetString(resultLabelKey),
		LatencyMS: time.Since(start).Milliseconds(),
	})
}

func (s *Service) authMiddleware(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Detail: "missing bearer token"})
		return
	}

	isValid, clientID, err := s.authToken.VerifyToken(authHeader[7:])
	if err != nil || !isValid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Detail: "invalid or expired token"})
		return
	}

	c.Set("client_id", clientID)
	c.Next()
}
