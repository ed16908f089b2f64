package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics is the recovery callback for gin.CustomRecovery.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("recovered from panic")
		abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
