package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
	"github.com/KaramelBytes/datalens-cli/internal/render"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(err error) int {
	if errors.Is(err, session.ErrSuperseded) {
		return http.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case apperr.KindParse:
		return http.StatusUnprocessableEntity
	case apperr.KindNoData:
		return http.StatusConflict
	case apperr.KindEmptyDirective:
		return http.StatusBadRequest
	case apperr.KindBusy:
		return http.StatusTooManyRequests
	case apperr.KindGenerationFailure, apperr.KindGenerationEmpty:
		return http.StatusBadGateway
	case apperr.KindExportUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": kind})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.State())
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds the %d MB limit", s.maxUpload>>20), "kind": "too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required", "kind": "bad_request"})
		return
	}
	defer file.Close()

	ticket := s.sess.BeginUpload()
	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read upload: %v", err), "kind": "bad_request"})
		return
	}
	if err := s.sess.Load(ticket, header.Filename, content); err != nil {
		fail(c, err)
		return
	}
	sum, err := s.sess.Summary()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.sess.State(), "summary": sum})
}

func (s *Server) summary(c *gin.Context) {
	sum, err := s.sess.Summary()
	if err != nil {
		fail(c, err)
		return
	}
	cols, err := profile.Build(s.sess.Dataset())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum, "profile": cols})
}

func (s *Server) analyze(c *gin.Context) {
	text, err := s.sess.Analyze(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	s.reportJSON(c, text)
}

type directiveBody struct {
	Directive *string `json:"directive"`
}

func (s *Server) setDirective(c *gin.Context) {
	var body directiveBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Directive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"directive\": \"...\"}", "kind": "bad_request"})
		return
	}
	s.sess.SetDirective(*body.Directive)
	c.JSON(http.StatusOK, s.sess.State())
}

// regenerate accepts an optional directive in the body; without one the
// pending directive is used.
func (s *Server) regenerate(c *gin.Context) {
	var body directiveBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "kind": "bad_request"})
			return
		}
	}
	if body.Directive != nil {
		s.sess.SetDirective(*body.Directive)
	}
	text, err := s.sess.Regenerate(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	s.reportJSON(c, text)
}

func (s *Server) report(c *gin.Context) {
	text, ok := s.sess.Report()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report generated yet", "kind": string(apperr.KindNoData)})
		return
	}
	s.reportJSON(c, text)
}

func (s *Server) reportJSON(c *gin.Context, text string) {
	c.JSON(http.StatusOK, gin.H{
		"report": text,
		"html":   render.Markup(text),
		"state":  s.sess.State(),
	})
}

func (s *Server) export(c *gin.Context) {
	text, ok := s.sess.Report()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report to export", "kind": string(apperr.KindNoData)})
		return
	}
	name := s.sess.FileName()
	stem := exportStem(name)
	switch strings.ToLower(c.DefaultQuery("format", "html")) {
	case "html":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stem+".html"))
		c.Data(http.StatusOK, "text/html; charset=utf-8", export.HTML(name, text))
	case "pdf":
		if s.printer == nil {
			fail(c, apperr.New(apperr.KindExportUnavailable, "pdf export is not configured"))
			return
		}
		pdf, err := s.printer.PDF(c.Request.Context(), name, text)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stem+".pdf"))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be html or pdf", "kind": "bad_request"})
	}
}

func exportStem(fileName string) string {
	base := fileName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "report"
	}
	return base + "-report"
}
