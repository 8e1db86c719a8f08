package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/medilink/internal/catalog"
	"github.com/joseph-ayodele/medilink/internal/common"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) catalogReady(c *gin.Context) bool {
	if s.drugs == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Drug catalog unavailable"})
		return false
	}
	return true
}

func (s *Server) listDrugs(c *gin.Context) {
	if !s.catalogReady(c) {
		return
	}
	ctx := c.Request.Context()

	if id := strings.TrimSpace(c.Query("id")); id != "" {
		d, err := s.drugs.Get(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"drug": nil})
			return
		}
		if err != nil {
			writeError(c, s.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"drug": d})
		return
	}

	limit, ok := intParam(c, "limit", catalog.DefaultLimit)
	if !ok {
		return
	}
	page, ok := intParam(c, "page", 0)
	if !ok {
		return
	}
	q := catalog.Query{Search: c.Query("search"), Page: page, Limit: limit}.Normalize()
	res, err := s.drugs.Search(ctx, q)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) exportDrugs(c *gin.Context) {
	if !s.catalogReady(c) {
		return
	}
	xlsx, err := catalog.ExportXLSX(c.Request.Context(), s.drugs, c.Query("search"), s.logger)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="drugs.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, xlsx)
}

func intParam(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return n, true
}
