package hooks

import (
	"errors"
	"net/http"

	"github.com/exotech/urchat-api/services"
	"github.com/gin-gonic/gin"
)

// respondErr translates a service failure into its HTTP shape. Every public
// operation fails with exactly one error kind and a human-readable message.
func respondErr(c *gin.Context, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindConflict:
		status = http.StatusConflict
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindIntegrity:
		// Integrity violations are fatal server-side states
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": svcErr.Message})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}
