// Package api provides HTTP handlers for project and conversation endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kjbranchesi/alfcoach/internal/models"
	"github.com/kjbranchesi/alfcoach/internal/status"
)

// statusResult is the payload for GET /projects/{id}/status: the derived
// status plus the route the client should land on.
type statusResult struct {
	Status models.DerivedStatus `json:"status"`
	Route  string               `json:"route"`
}

// createProjectHandler handles POST /projects
func (s *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("createProjectHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("createProjectHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("createProjectHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	now := time.Now().UTC()
	record := models.ProjectRecord{
		ID:        uuid.NewString(),
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.st.SaveProject(record); err != nil {
		slog.Error("createProjectHandler save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save project"))
		return
	}

	slog.Info("createProjectHandler created project", "projectID", record.ID)
	writeJSONResponse(w, http.StatusCreated, models.Created(record))
}

// listProjectsHandler handles GET /projects
func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := s.st.ListProjects()
	if err != nil {
		slog.Error("listProjectsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list projects"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(projects))
}

// getProjectHandler handles GET /projects/{id}
func (s *Server) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.st.GetProject(id)
	if err != nil {
		slog.Error("getProjectHandler failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get project"))
		return
	}
	if record == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(record))
}

// deleteProjectHandler handles DELETE /projects/{id}
func (s *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.st.GetProject(id)
	if err != nil {
		slog.Error("deleteProjectHandler lookup failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get project"))
		return
	}
	if record == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	if err := s.st.DeleteProject(id); err != nil {
		slog.Error("deleteProjectHandler failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete project"))
		return
	}
	slog.Info("deleteProjectHandler deleted project", "projectID", id)
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// statusHandler handles GET /projects/{id}/status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.st.GetProject(id)
	if err != nil {
		slog.Error("statusHandler failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get project"))
		return
	}
	if record == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}

	derived := s.deriver.Derive(record)
	writeJSONResponse(w, http.StatusOK, models.Success(statusResult{
		Status: derived,
		Route:  status.RouteForStage(record.ID, derived.CurrentStage),
	}))
}

// progressHandler handles GET /projects/{id}/progress
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := s.engine.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
			return
		}
		slog.Error("progressHandler failed", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get progress"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

// turnHandler handles POST /projects/{id}/turn
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("turnHandler invoked", "projectID", id)

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("turnHandler invalid JSON", "error", err, "projectID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.engine.ProcessTurn(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProjectNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		case errors.Is(err, models.ErrEmptyTurnInput), errors.Is(err, models.ErrTurnInputTooLong):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("turnHandler failed", "error", err, "projectID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
