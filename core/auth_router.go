package core

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewAuthRouter constructs the auth service's Gin engine.
func NewAuthRouter(authService AuthService) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
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

		user, err := authService.Register(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				respondError(c, http.StatusBadRequest, "USERNAME_TAKEN", "Username already registered")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to register user")
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	r.POST("/authenticate", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		token, err := authService.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username or password")
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
	})

	return r
}
