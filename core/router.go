package core

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// NewRouter constructs the coordinator's Gin engine.
//
// The /process contract is dispatch-only: a 202 means the task was accepted
// by the broker, not that it was persisted. Callers who need to observe the
// pipeline's output can poll /api/v1/products.
func NewRouter(cfg Config, authClient AuthClient, publisher *TaskPublisher, products ProductRepository, metrics *MetricsService) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/process", func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header missing")
			return
		}

		creds, err := ParseBasicAuthHeader(authHeader)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		var task map[string]any
		if err := c.ShouldBindJSON(&task); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		ctx := c.Request.Context()
		token, err := authClient.Authenticate(ctx, creds.Username, creds.Password)
		if err != nil {
			switch {
			case errors.Is(err, ErrAuthFailed):
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed")
			case errors.Is(err, ErrMissingToken):
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "No access token returned")
			default:
				respondError(c, http.StatusBadGateway, "AUTH_UNAVAILABLE", "auth service unreachable")
			}
			return
		}

		if err := publisher.Publish(ctx, task, token); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to dispatch task")
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "success"})
	})

	r.POST("/register", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		user, status, err := authClient.Register(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if status == 0 {
				status = http.StatusBadGateway
			}
			respondError(c, status, "REGISTRATION_FAILED", "User registration failed")
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	api := r.Group("/api/v1")
	{
		api.GET("/status", func(c *gin.Context) {
			queue, consumers, err := metrics.Overview(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to read metrics")
				return
			}
			if consumers == nil {
				consumers = []ConsumerHeartbeat{}
			}
			c.JSON(http.StatusOK, gin.H{"queue": queue, "consumers": consumers})
		})

		api.GET("/products", func(c *gin.Context) {
			page := intQuery(c, "page", 1)
			perPage := intQuery(c, "per_page", 20)
			items, total, err := products.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list products")
				return
			}
			c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "per_page": perPage})
		})
	}

	return r
}

func intQuery(c *gin.Context, name string, defaultVal int) int {
	if v := c.Query(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
