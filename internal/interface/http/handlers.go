package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/malla-ucn/malla-estudiante/internal/application/command"
	"github.com/malla-ucn/malla-estudiante/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLogin handles POST /api/v1/auth/login. The token is returned in the
// body and also set as an HttpOnly cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Login.Handle(r.Context(), command.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.SessionCookie,
		Value:    result.Session.Value,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, result)
}

// handleLogout handles POST /api/v1/auth/logout. Tokens are stateless, so
// logging out only clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, map[string]bool{"loggedOut": true})
}

// handleMe handles GET /api/v1/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{
		"student":   sess.Student,
		"expiresAt": sess.ExpiresAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCurriculum handles GET /api/v1/curricula/{program}/{catalog}
func (s *Server) handleGetCurriculum(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.GetCurriculum.Handle(r.Context(), r.PathValue("program"), r.PathValue("catalog"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, courses, &ResponseMeta{TotalCount: len(courses)})
}

// handleGetProgress handles GET /api/v1/progress?program=&catalog=
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	target := s.target(r, getQueryParam(r, "program", ""), getQueryParam(r, "catalog", ""))
	result, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{Target: target})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetTimeline handles GET /api/v1/timeline?program=&catalog=
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	target := s.target(r, getQueryParam(r, "program", ""), getQueryParam(r, "catalog", ""))
	result, err := s.deps.GetTimeline.Handle(r.Context(), query.GetTimelineQuery{Target: target})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetEnrolled handles GET /api/v1/courses/current
func (s *Server) handleGetEnrolled(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetEnrolled.Handle(r.Context(), sessionFrom(r.Context()).Student.Rut)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePlannerAvailable handles POST /api/v1/planner/available
func (s *Server) handlePlannerAvailable(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.GetAvailable.Handle(r.Context(), query.GetAvailableCoursesQuery{
		Target:    s.target(r, req.Program, req.Catalog),
		Semesters: req.Semesters,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handlePlannerEdit handles POST /api/v1/planner/{action}
func (s *Server) handlePlannerEdit(w http.ResponseWriter, r *http.Request) {
	action, err := command.ParsePlanAction(r.PathValue("action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req EditPlanRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.EditPlan.Handle(r.Context(), command.EditPlanCommand{
		Target:    s.target(r, req.Program, req.Catalog),
		Action:    action,
		Semester:  req.Semester,
		Course:    req.Course,
		Semesters: req.Semesters,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListProjections handles GET /api/v1/projections?program=
func (s *Server) handleListProjections(w http.ResponseWriter, r *http.Request) {
	target := s.target(r, getQueryParam(r, "program", ""), "")
	plans, err := s.deps.ListProjection.Handle(r.Context(), query.ListProjectionsQuery{
		Rut:     target.Rut,
		Program: target.Program,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, plans, &ResponseMeta{TotalCount: len(plans)})
}

// handleSaveProjection handles POST /api/v1/projections. Saving under an
// existing name replaces that plan.
func (s *Server) handleSaveProjection(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Projections.Save(r.Context(), command.SaveProjectionCommand{
		Target:    s.target(r, req.Program, req.Catalog),
		Name:      req.Name,
		Semesters: req.Semesters,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, result.Plan)
}

// handleGetProjection handles GET /api/v1/projections/{id}
func (s *Server) handleGetProjection(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.GetProjection.Handle(r.Context(), query.GetProjectionQuery{
		Rut: sessionFrom(r.Context()).Student.Rut,
		ID:  r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, plan)
}

// handleUpdateProjection handles PUT /api/v1/projections/{id}
func (s *Server) handleUpdateProjection(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.deps.Projections.Update(r.Context(), command.UpdateProjectionCommand{
		Rut:       sessionFrom(r.Context()).Student.Rut,
		ID:        r.PathValue("id"),
		Name:      req.Name,
		Semesters: req.Semesters,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, plan)
}

// handleDeleteProjection handles DELETE /api/v1/projections/{id}
func (s *Server) handleDeleteProjection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.deps.Projections.Delete(r.Context(), command.DeleteProjectionCommand{
		Rut: sessionFrom(r.Context()).Student.Rut,
		ID:  id,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// target builds the query target for the session student. A missing program
// falls back to the student's first career; a missing catalog falls back to
// the career's own catalog, then to the configured default.
func (s *Server) target(r *http.Request, program, catalog string) query.Target {
	sess := sessionFrom(r.Context())
	t := query.Target{
		Rut:     sess.Student.Rut,
		Program: strings.TrimSpace(program),
		Catalog: strings.TrimSpace(catalog),
	}
	if t.Program == "" && len(sess.Student.Careers) > 0 {
		t.Program = sess.Student.Careers[0].Code
	}
	if t.Catalog == "" {
		if career, ok := sess.Student.Career(t.Program); ok {
			t.Catalog = career.Catalog
		}
	}
	if t.Catalog == "" {
		t.Catalog = s.deps.DefaultCatalog
	}
	return t
}

// getQueryParam extracts a query parameter with a default value.
func getQueryParam(r *http.Request, key, defaultValue string) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue
	}
	return value
}
