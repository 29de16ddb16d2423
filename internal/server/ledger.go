package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	"github.com/smallbiznis/taxledger/internal/orgcontext"
)

func (s *Server) ListLedgerAccounts(c *gin.Context) {
	resp, err := s.ledgerSvc.ListAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateLedgerAccount(c *gin.Context) {
	var req ledgerdomain.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.CreateAccount(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListAccountRules(c *gin.Context) {
	resp, err := s.ledgerSvc.ListAccountRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertAccountRule(c *gin.Context) {
	var req ledgerdomain.UpsertAccountRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.UpsertAccountRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SeedDefaultChart(c *gin.Context) {
	orgID, _ := orgcontext.OrgIDFromContext(c.Request.Context())
	acquired, err := s.limiter.WithSeedLock(c.Request.Context(), orgID.String(), s.ledgerSvc.SeedDefaultChart)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !acquired {
		AbortWithError(c, ErrSeedInProgress)
		return
	}

	resp, err := s.ledgerSvc.ListAccountRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLedgerEntry(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ledgerdomain.ErrInvalidOrganization)
		return
	}
	entryID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || entryID <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid ledger entry id"))
		return
	}

	resp, err := s.ledgerStore.GetEntry(c.Request.Context(), orgID, entryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TrialBalance(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ledgerdomain.ErrInvalidOrganization)
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		AbortWithError(c, newValidationError("currency", "required", "currency is required"))
		return
	}

	resp, err := s.ledgerStore.TrialBalance(c.Request.Context(), orgID, currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"data":     resp,
	})
}
