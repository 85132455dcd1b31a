package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skshohagmiah/flin-fanout/internal/db"
)

// UpdateRequest is the body of PATCH and PUT on a document.
type UpdateRequest struct {
	Set   db.Document `json:"set"`
	Unset []string    `json:"unset"`
}

// IndexRequest is the body of index creation.
type IndexRequest struct {
	Field string `json:"field" binding:"required"`
}

// handleUpdate merges (PATCH) or replaces (PUT) a document body.
// PATCH|PUT /v1/collections/:name/documents/:id
func (s *Server) handleUpdate(merge bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}

		name, id := c.Param("name"), c.Param("id")
		opts := db.UpdateOptions{Set: req.Set, Unset: req.Unset, Merge: merge}
		if err := s.db.Update(name, id, opts); err != nil {
			s.fail(c, statusFor(err), err)
			return
		}

		doc, err := s.db.Get(name, id)
		if err != nil {
			s.fail(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, Doc{ID: id, Data: doc})
	}
}

// DELETE /v1/collections/:name/documents/:id
func (s *Server) handleDelete(c *gin.Context) {
	if err := s.db.Delete(c.Param("name"), c.Param("id")); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/collections/:name/count
func (s *Server) handleCount(c *gin.Context) {
	n, err := s.db.Count(c.Param("name"))
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// GET /v1/collections/:name/indexes
func (s *Server) handleListIndexes(c *gin.Context) {
	fields := s.db.ListIndexes(c.Param("name"))
	if fields == nil {
		fields = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

// handleCreateIndex builds an equality index; indexed == filters in a
// physical query read it instead of scanning.
// POST /v1/collections/:name/indexes
func (s *Server) handleCreateIndex(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.db.CreateIndex(c.Param("name"), req.Field); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"field": req.Field})
}

// DELETE /v1/collections/:name/indexes/:field
func (s *Server) handleDropIndex(c *gin.Context) {
	if err := s.db.DropIndex(c.Param("name"), c.Param("field")); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}
