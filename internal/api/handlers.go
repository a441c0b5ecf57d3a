package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	Measurements []domain.MeasurementInput `json:"measurements"`
}

// ClassifyResponse lists the classified measurements in input order.
type ClassifyResponse struct {
	Measurements []domain.Measurement `json:"measurements"`
}

// EvaluationList is one page of recorded evaluations.
type EvaluationList struct {
	Evaluations []*domain.Evaluation `json:"evaluations"`
	Total       int64                `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// BiomarkerDetail is one registry entry with the bounds used to classify it.
type BiomarkerDetail struct {
	Biomarker         domain.Biomarker     `json:"biomarker"`
	ReferenceInterval *classifier.Interval `json:"reference_interval,omitempty"`
}

type cacheStatter interface {
	CacheStats() (cache.Stats, bool)
}

type intervalLookup interface {
	ReferenceInterval(id domain.BiomarkerID) (classifier.Interval, bool)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"rules":      len(s.service.Rules()),
		"biomarkers": len(domain.Biomarkers()),
	}
	if cs, ok := s.service.(cacheStatter); ok {
		if stats, enabled := cs.CacheStats(); enabled {
			body["cache"] = stats
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req domain.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err)
		return
	}
	req.RequestID = c.GetString(middleware.CorrelationIDKey)

	eval, err := s.service.Evaluate(c.Request.Context(), &req)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err)
		return
	}

	ms, err := s.service.Resolve(req.Measurements, true)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ClassifyResponse{Measurements: ms})
}

func (s *Server) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.service.Rules()})
}

func (s *Server) handleGetRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "rule id must be an integer", err)
		return
	}

	rule, err := s.service.Rule(id)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleListBiomarkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"biomarkers": domain.Biomarkers()})
}

// handleGetBiomarker accepts a registry code or a numeric id.
func (s *Server) handleGetBiomarker(c *gin.Context) {
	param := c.Param("biomarker")

	var b domain.Biomarker
	if n, err := strconv.Atoi(param); err == nil {
		found, ok := domain.LookupBiomarker(domain.BiomarkerID(n))
		if !ok {
			s.writeError(c, http.StatusNotFound, domain.ErrCodeNotFound, "biomarker not found", nil)
			return
		}
		b = found
	} else {
		found, err := domain.LookupBiomarkerByCode(param)
		if err != nil {
			s.writeError(c, http.StatusNotFound, domain.ErrCodeNotFound, "biomarker not found", err)
			return
		}
		b = found
	}

	detail := BiomarkerDetail{Biomarker: b}
	if il, ok := s.service.(intervalLookup); ok {
		if iv, found := il.ReferenceInterval(b.ID); found {
			detail.ReferenceInterval = &iv
		}
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "limit must be between 1 and 200", err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "offset must be non-negative", err)
		return
	}

	evals, total, err := s.service.ListEvaluations(c.Request.Context(), limit, offset)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	if evals == nil {
		evals = []*domain.Evaluation{}
	}
	c.JSON(http.StatusOK, EvaluationList{Evaluations: evals, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	eval, err := s.service.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (s *Server) handleDeleteEvaluation(c *gin.Context) {
	if err := s.service.DeleteEvaluation(c.Request.Context(), c.Param("id")); err != nil {
		s.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// handleServiceError maps service errors onto HTTP statuses.
func (s *Server) handleServiceError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, verr.Message, err)
	case errors.Is(err, domain.ErrUnknownBiomarker), errors.Is(err, domain.ErrInvalidRange):
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid measurement", err)
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(c, http.StatusNotFound, domain.ErrCodeNotFound, "resource not found", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeStorage, "history storage unavailable", err)
	default:
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "internal error", err)
	}
}

func (s *Server) writeError(c *gin.Context, status int, code, message string, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)
	details := ""
	if err != nil && status < http.StatusInternalServerError {
		details = err.Error()
	}

	entry := s.logger.WithFields(logrus.Fields{
		"correlation_id": requestID,
		"code":           code,
		"status":         status,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID))
}
