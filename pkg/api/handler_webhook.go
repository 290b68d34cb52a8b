package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
)

// webhookHandler handles POST /webhooks/:entityId: the receiving side of
// eventbus.WebhookClient's fallback delivery, for when a sending process
// can't reach this one's entity id over the mesh (§4.6, §9 "webhook
// fallback is a compatibility shim; prefer the mesh"). The body is a raw
// eventbus.Envelope, the same shape WebhookClient.Emit posts.
func (s *Server) webhookHandler(c *gin.Context) {
	if s.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "ingress dispatcher not configured"})
		return
	}

	var env eventbus.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if messageID, ok := env.Message["id"].(string); ok && messageID != "" && s.dedupe != nil {
		if s.dedupe.SeenBefore(messageID) {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	entityID := c.Param("entityId")
	if err := s.dispatcher.Dispatch(c.Request.Context(), entityID, env); err != nil {
		s.logger.Error("webhook dispatch failed", "entity_id", entityID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
