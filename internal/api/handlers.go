package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skshohagmiah/flin-fanout/internal/db"
	"github.com/skshohagmiah/flin-fanout/internal/fanout"
)

// batchLine is one NDJSON line of a streamed query result.
type batchLine struct {
	Variant  int   `json:"variant"`
	Variants int   `json:"variants"`
	Docs     []Doc `json:"docs"`
}

// trailerLine closes a successful stream.
type trailerLine struct {
	Count int          `json:"count"`
	Stats fanout.Stats `json:"stats"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrInvalidQuery),
		errors.Is(err, db.ErrInvalidCollection),
		errors.Is(err, db.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleInsert stores the JSON object body as a document.
// POST /v1/collections/:name/documents
func (s *Server) handleInsert(c *gin.Context) {
	var doc db.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	id, err := s.db.Insert(c.Param("name"), doc)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GET /v1/collections/:name/documents/:id
func (s *Server) handleGet(c *gin.Context) {
	id := c.Param("id")
	doc, err := s.db.Get(c.Param("name"), id)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, Doc{ID: id, Data: doc})
}

// handleExplain returns the physical plan of a query without running it.
// POST /v1/collections/:name/explain
func (s *Server) handleExplain(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	q, err := BuildQuery(s.db, c.Param("name"), req, FanoutOptions(s.fanout, s.log)...)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, q.Plan())
}

// handleQuery runs a fanout query and streams one NDJSON line per physical
// query, followed by a trailer with the count and stats. A failure before
// the first line is a plain JSON error; after it, an error line ends the
// stream.
// POST /v1/collections/:name/query
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	q, err := BuildQuery(s.db, c.Param("name"), req, FanoutOptions(s.fanout, s.log)...)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	enc := json.NewEncoder(c.Writer)
	streaming := false
	res, err := q.Get(c.Request.Context(), func(_ context.Context, b fanout.Batch) error {
		if !streaming {
			streaming = true
			c.Header("Content-Type", "application/x-ndjson")
			c.Status(http.StatusOK)
		}
		if err := enc.Encode(batchLine{Variant: b.Variant, Variants: b.Variants, Docs: toDocs(b.Docs)}); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if !streaming {
			s.fail(c, statusFor(err), err)
			return
		}
		s.log.Warn("query stream aborted", "collection", c.Param("name"), "err", err)
		_ = enc.Encode(gin.H{"error": err.Error()})
		return
	}

	_ = enc.Encode(trailerLine{Count: len(res.Docs), Stats: res.Stats})
	c.Writer.Flush()
}
