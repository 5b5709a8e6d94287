package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/insightflow/insightflow/internal/chat"
	"github.com/insightflow/insightflow/internal/pipeline"
	"github.com/insightflow/insightflow/internal/store"
)

// Server carries the handler dependencies. The store handle is passed
// in explicitly; nothing here reaches for process-global state.
type Server struct {
	Store  *store.Store
	Orch   *pipeline.Orchestrator
	Chat   *chat.Engine
	Logger *log.Logger
}

// Register mounts all API routes.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.POST("/research/", s.handleResearch)
	e.GET("/research/:company/status", s.handleResearchStatus)
	e.POST("/chat/", s.handleChat)
	e.GET("/companies/", s.handleListCompanies)
	e.DELETE("/reset/:company", s.handleReset)
}

type researchRequest struct {
	CompanyName string `json:"company_name"`
}

type vizData struct {
	CompanyName      string         `json:"company_name"`
	TotalSources     int            `json:"total_sources"`
	SourcesBreakdown map[string]int `json:"sources_breakdown"`
	Summary          string         `json:"summary"`
}

type researchResponse struct {
	Response  string              `json:"response"`
	VizData   vizData             `json:"viz_data"`
	ChatReady bool                `json:"chat_ready"`
	Index     pipeline.IndexResult `json:"index"`
	Errors    []string            `json:"errors,omitempty"`
}

type chatRequest struct {
	CompanyName string `json:"company_name"`
	Message     string `json:"message"`
	Prompt      string `json:"prompt"`
	SessionID   string `json:"session_id"`
}

// question accepts either field name; older clients send prompt.
func (r chatRequest) question() string {
	if strings.TrimSpace(r.Message) != "" {
		return r.Message
	}
	return r.Prompt
}

type chatResponse struct {
	CompanyName string           `json:"company_name"`
	Query       string           `json:"query"`
	Response    string           `json:"response"`
	Sources     []chat.SourceRef `json:"sources,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	payload := map[string]any{"status": "healthy"}
	if s.Store != nil {
		if companies, err := s.Store.ListCompanies(c.Request().Context()); err == nil {
			payload["researched_companies"] = len(companies)
		}
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *Server) handleResearch(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.Orch.Research(c.Request().Context(), req.CompanyName)
	observeRun(result, err)
	if err != nil {
		return mapPipelineError(err)
	}

	return c.JSON(http.StatusOK, researchResponse{
		Response: result.Summary,
		VizData: vizData{
			CompanyName:      result.CompanyName,
			TotalSources:     result.TotalSources,
			SourcesBreakdown: result.SourcesBreakdown,
			Summary:          result.Summary,
		},
		ChatReady: true,
		Index:     result.Index,
		Errors:    result.Errors,
	})
}

func (s *Server) handleResearchStatus(c echo.Context) error {
	companyID, _, err := pipeline.NormalizeCompanyName(c.Param("company"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status, ok := s.Orch.CompanyStatus(companyID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no research run found for this company")
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := req.question()
	if strings.TrimSpace(question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	resp, err := s.Chat.Answer(c.Request().Context(), req.CompanyName, req.SessionID, question)
	if err != nil {
		chatRequestsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, store.ErrCompanyNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "research this company first")
		}
		if errors.Is(err, pipeline.ErrInvalidCompany) || errors.Is(err, chat.ErrEmptyQuestion) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	chatRequestsTotal.WithLabelValues("succeeded").Inc()
	return c.JSON(http.StatusOK, chatResponse{
		CompanyName: req.CompanyName,
		Query:       question,
		Response:    resp.Text,
		Sources:     resp.Sources,
		SessionID:   req.SessionID,
	})
}

func (s *Server) handleListCompanies(c echo.Context) error {
	companies, err := s.Store.ListCompanies(c.Request().Context())
	if err != nil {
		return err
	}
	if companies == nil {
		companies = []store.Company{}
	}
	return c.JSON(http.StatusOK, map[string]any{"companies": companies, "count": len(companies)})
}

func (s *Server) handleReset(c echo.Context) error {
	companyID, display, err := pipeline.NormalizeCompanyName(c.Param("company"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.Store.DeleteCompany(c.Request().Context(), companyID); err != nil {
		if errors.Is(err, store.ErrCompanyNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "company not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "research data cleared for " + display, "removed": true})
}

// mapPipelineError translates pipeline failures into HTTP statuses:
// invalid input 400, empty result 422, dependency failure 502.
func mapPipelineError(err error) error {
	if errors.Is(err, pipeline.ErrInvalidCompany) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, pipeline.ErrNoData) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "no usable information found for this company")
	}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) && stageErr.Retryable {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return err
}
