package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finsight/ragqa/rag"
	"github.com/finsight/ragqa/readers"
)

type answerer interface {
	Answer(ctx context.Context, question string, history []rag.Turn) rag.Answer
	Documents() []rag.DocumentInfo
	DocumentCount(ctx context.Context) int
}

type syncer interface {
	Sync(ctx context.Context) error
}

// ApiServer exposes the pipeline over HTTP. Uploads land in the upload
// directory and are indexed through the registry, so files uploaded over
// the API and files dropped into the directory behave identically.
type ApiServer struct {
	log            *slog.Logger
	pipeline       answerer
	registry       syncer
	uploadDir      string
	readers        []readers.FileReader
	allowedOrigins []string
}

func NewApiServer(pipeline answerer, registry syncer, uploadDir string, rs []readers.FileReader, allowedOrigins []string, log *slog.Logger) *ApiServer {
	return &ApiServer{
		log:            log,
		pipeline:       pipeline,
		registry:       registry,
		uploadDir:      uploadDir,
		readers:        rs,
		allowedOrigins: allowedOrigins,
	}
}

func (s *ApiServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(s.allowedOrigins))

	router.GET("/", s.health)
	router.POST("/api/upload", s.upload)
	router.POST("/api/chat", s.chat)
	router.GET("/api/documents", s.documents)
	router.GET("/api/chunks", s.chunks)

	return router
}

func (s *ApiServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"documents": s.pipeline.DocumentCount(c.Request.Context()),
	})
}

func (s *ApiServer) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	name := filepath.Base(file.Filename)
	if !s.supported(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type: %s", filepath.Ext(name))})
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.log.Error("failed to create upload dir", "dir", s.uploadDir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	dst := filepath.Join(s.uploadDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		s.log.Error("failed to save upload", "file", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	if err := s.registry.Sync(c.Request.Context()); err != nil {
		s.log.Error("failed to sync after upload", "file", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to index file"})
		return
	}

	chunks := 0
	for _, d := range s.pipeline.Documents() {
		if d.Source == name {
			chunks = d.Chunks
			break
		}
	}
	if chunks == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("no extractable text in %s", name)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"source": name, "chunks": chunks})
}

type chatRequest struct {
	Question string     `json:"question"`
	History  []rag.Turn `json:"history"`
}

func (s *ApiServer) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	c.JSON(http.StatusOK, s.pipeline.Answer(c.Request.Context(), req.Question, req.History))
}

func (s *ApiServer) documents(c *gin.Context) {
	docs := s.pipeline.Documents()
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (s *ApiServer) chunks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chunks": s.pipeline.DocumentCount(c.Request.Context())})
}

func (s *ApiServer) supported(name string) bool {
	for _, r := range s.readers {
		if r.CanRead(name) {
			return true
		}
	}
	return false
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
