package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
	"go.uber.org/zap"
)

const contextOrgIDKey = "org_id"

// OrgContext scopes the request to the organization in X-Org-Id. Requests
// without the header fall back to the configured default organization.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(orgcontext.HeaderOrgID))

		var orgID snowflake.ID
		switch {
		case raw != "":
			parsed, err := orgcontext.ParseOrgID(raw)
			if err != nil {
				AbortWithError(c, newValidationError("org_id", "invalid_organization", "X-Org-Id must be a positive numeric id"))
				return
			}
			orgID = parsed
		case s.cfg.DefaultOrgID > 0:
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
		default:
			AbortWithError(c, newValidationError("org_id", "required", "X-Org-Id header is required"))
			return
		}

		c.Set(contextOrgIDKey, orgID.String())
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID))
		c.Next()
	}
}

// DocumentWriteLimit applies the per-organization document write budget.
// Limiter failures are logged and the request is let through.
func (s *Server) DocumentWriteLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		orgID := c.GetString(contextOrgIDKey)
		res, err := s.limiter.AllowDocumentWrite(c.Request.Context(), orgID)
		if err != nil {
			s.log.Warn("document write limiter unavailable", zap.String("org_id", orgID), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
