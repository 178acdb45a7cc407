package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"backend/internal/ai"
)

type chatbotRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chatbot proxies a single prompt to the generative-text service. The
// service being down degrades to a canned apology instead of a 5xx.
func Chatbot(client *ai.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /chatbot"
		defer handlePanic(c, route)

		var req chatbotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "message is required")
			return
		}

		message := strings.TrimSpace(req.Message)
		if message == "" {
			respondWithError(c, http.StatusBadRequest, route, "message must not be empty")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
		defer cancel()

		reply, err := client.Complete(ctx, message)
		if err != nil {
			logrus.WithFields(logrus.Fields{"route": route, "error": err.Error()}).Warn("chatbot backend unavailable")
			c.JSON(http.StatusOK, gin.H{"reply": "Sorry, the assistant is unavailable right now. Please try again later."})
			return
		}

		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}
