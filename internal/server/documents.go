package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/analysis"
	"github.com/joseph-ayodele/medilink/internal/common"
)

type extractResponse struct {
	SessionID       string          `json:"session_id"`
	DocumentType    string          `json:"document_type"`
	ExtractedText   string          `json:"extracted_text"`
	InitialAnalysis string          `json:"initial_analysis"`
	StructuredData  json.RawMessage `json:"structured_data,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) extractText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		badRequest(c, "A file upload is required")
		return
	}

	hint, ok := constants.ParseHint(c.PostForm("document_type"))
	if !ok {
		badRequest(c, "Invalid document_type. Use one of: "+strings.Join(constants.HintTypes(), ", "))
		return
	}
	handwriting, _ := strconv.ParseBool(c.PostForm("handwriting"))

	f, err := fh.Open()
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	out, err := s.analyzer.Analyze(c.Request.Context(), analysis.Upload{
		Filename:    fh.Filename,
		Bytes:       body,
		Hint:        hint,
		Handwriting: handwriting,
	})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, extractResponse{
		SessionID:       out.SessionID,
		DocumentType:    string(out.DocType),
		ExtractedText:   out.Text,
		InitialAnalysis: out.Analysis,
		StructuredData:  out.Structured,
	})
}

func (s *Server) chat(c *gin.Context) {
	id := c.Param("session_id")
	// session ids are minted as UUIDs; anything else cannot exist
	if common.NewValidator().Field("session_id", id, common.UUID).HasErrors() {
		writeError(c, s.logger, fmt.Errorf("session %q: %w", id, common.ErrSessionNotFound))
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with a message field")
		return
	}
	reply, err := s.analyzer.Chat(c.Request.Context(), id, req.Message)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: reply})
}
