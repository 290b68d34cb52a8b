package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
)

// healthHandler handles GET /health: worker-pool (mailbox) occupancy,
// circuit breaker states and database reachability (SPEC_FULL.md §10).
// Rule-set cache staleness is not reported.
func (s *Server) healthHandler(c *gin.Context) {
	resp := HealthResponse{Status: healthStatusHealthy}

	if s.occupancy != nil {
		resp.ActiveMailboxes = s.occupancy()
	}

	if s.breakers != nil {
		states := make(map[string]string, len(s.targets))
		for _, target := range s.targets {
			state := s.breakers.Get(c.Request.Context(), target).State()
			states[target] = string(state)
			if state != "closed" {
				resp.Status = healthStatusDegraded
			}
		}
		resp.CircuitBreakers = states
	}

	if s.dbHealth != nil {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.dbHealth(reqCtx); err != nil {
			resp.Status = healthStatusDegraded
			resp.Database = err.Error()
		} else {
			resp.Database = healthStatusHealthy
		}
	}

	c.JSON(http.StatusOK, resp)
}
