package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// debugRuleSetHandler handles GET /debug/ruleset/:key: inspects the
// currently cached (copy-on-write) rule set for an operator-supplied cache
// key ("<assistant-key>:<org-id>" or "<assistant-key>:default"), without
// triggering a Loader round trip (SPEC_FULL.md §10).
func (s *Server) debugRuleSetHandler(c *gin.Context) {
	if s.ruleStore == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "rule store not configured"})
		return
	}

	key := c.Param("key")
	rs, found := s.ruleStore.Inspect(key)
	if !found {
		c.JSON(http.StatusNotFound, RuleSetInspectResponse{Found: false})
		return
	}
	c.JSON(http.StatusOK, RuleSetInspectResponse{Found: true, RuleSet: rs})
}
