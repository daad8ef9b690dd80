package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsMiddleware allows the configured origins. "*" allows every origin and
// an empty list leaves CORS off.
func corsMiddleware(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); {
		case o == "*":
			cfg.AllowAllOrigins = true
		case o != "":
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if cfg.AllowAllOrigins {
		cfg.AllowOrigins = nil
	} else if len(cfg.AllowOrigins) == 0 {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cors.New(cfg), nil
}
