package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// writeError renders err as {"detail": ...} with the status mapped from its kind.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := common.HTTPStatus(err)
	detail := common.Detail(err)
	if errors.Is(err, common.ErrSessionNotFound) {
		detail = "Session not found"
	}
	l := common.LoggerFrom(c.Request.Context(), logger)
	if status >= http.StatusInternalServerError {
		l.Error("http.error", "stage", common.Stage(err), "status", status, "error", err)
	} else {
		l.Info("http.rejected", "stage", common.Stage(err), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}
