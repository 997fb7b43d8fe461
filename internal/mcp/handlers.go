// File: internal/mcp/handlers.go
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/orchestrator"
)

// DeviceAccess is the surface the direct tool endpoints need: the driver
// operations plus package listing. Satisfied by *device.Driver.
type DeviceAccess interface {
	schemas.DeviceDriver
	ListPackages(ctx context.Context) ([]string, error)
}

// Handlers manages the HTTP request handling for the tool server.
type Handlers struct {
	log     *zap.Logger
	tasks   *TaskService
	archive Archiver
	driver  DeviceAccess
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, tasks *TaskService, archive Archiver, driver DeviceAccess) *Handlers {
	return &Handlers{
		log:     logger.Named("handlers"),
		tasks:   tasks,
		archive: archive,
		driver:  driver,
	}
}

// RegisterRoutes sets up the routing for the tool server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	// Health check endpoint (unversioned)
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Composite operations
		r.Post("/task", h.HandleRunTask)
		r.Post("/feature", h.HandleTestFeature)
		r.Get("/task/{sessionID}", h.HandleGetTask)
		r.Delete("/task/{sessionID}", h.HandleAbortTask)
		r.Get("/report/{sessionID}", h.HandleGetReport)
		r.Get("/session/{sessionID}", h.HandleGetSession)

		// Direct device tools
		r.Get("/screenshot", h.HandleScreenshot)
		r.Get("/uitree", h.HandleUITree)
		r.Get("/logs", h.HandleLogs)
		r.Post("/action", h.HandleAction)
		r.Post("/back", h.HandleGoBack)
		r.Post("/home", h.HandleGoHome)
		r.Get("/apps", h.HandleListApps)
		r.Post("/app/install", h.HandleInstallApp)
		r.Post("/app/uninstall", h.HandleUninstallApp)
		r.Post("/app/start", h.HandleStartApp)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleRunTask starts (or synchronously runs) a natural-language task.
func (h *Handlers) HandleRunTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	goal := schemas.Goal{
		Text:       req.Goal,
		AppPackage: req.AppPackage,
		MaxSteps:   req.MaxSteps,
		TimeBudget: time.Duration(req.TimeBudgetSeconds) * time.Second,
	}

	h.log.Info("task requested", zap.String("goal", req.Goal), zap.Bool("wait", req.Wait))
	h.startOrRun(w, r, goal, req.Wait)
}

// HandleTestFeature wraps a feature description into a verification task.
func (h *Handlers) HandleTestFeature(w http.ResponseWriter, r *http.Request) {
	var req FeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	goal, err := featureGoal(req)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.log.Info("feature verification requested", zap.String("feature", req.Feature))
	h.startOrRun(w, r, goal, req.Wait)
}

func (h *Handlers) startOrRun(w http.ResponseWriter, r *http.Request, goal schemas.Goal, wait bool) {
	if wait {
		report, err := h.tasks.Run(r.Context(), goal)
		if err != nil {
			h.respondWithAppError(w, err)
			return
		}
		h.respondWithSuccess(w, http.StatusOK, report)
		return
	}

	job, err := h.tasks.Start(goal)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	h.respondWithStatus(w, http.StatusAccepted, "accepted", job)
}

// HandleGetTask reports the state of an initiated task.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	job, ok := h.tasks.GetJob(sessionID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, schemas.ErrCodeSessionNotFound, "session not found in job registry")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, job)
}

// HandleAbortTask cancels a running session.
func (h *Handlers) HandleAbortTask(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.tasks.Abort(sessionID) {
		h.respondWithError(w, http.StatusNotFound, schemas.ErrCodeSessionNotFound, "no running session with that ID")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"session_id": sessionID, "aborting": "true"})
}

// HandleGetReport serves the synthesized report for a finished session.
func (h *Handlers) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	report, err := h.archive.GetReport(r.Context(), sessionID)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	h.respondWithSuccess(w, http.StatusOK, report)
}

// HandleGetSession serves the full archived trace for a finished session.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.archive.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}
	h.respondWithSuccess(w, http.StatusOK, session)
}

// HandleScreenshot serves the current screen as PNG.
func (h *Handlers) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	img, err := h.driver.CaptureScreenshot(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeCaptureFailed, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// HandleUITree serves the parsed accessibility hierarchy.
func (h *Handlers) HandleUITree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.driver.CaptureUITree(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeCaptureFailed, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, tree)
}

// HandleLogs serves recent device log lines. The lines query parameter caps
// the count.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 0
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, "lines must be a positive integer")
			return
		}
		lines = n
	}

	logs, err := h.driver.ReadLogs(r.Context(), lines)
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeDeviceError, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"count": len(logs),
		"lines": logs,
	})
}

// HandleAction performs a single ad-hoc device action outside any session.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	var spec schemas.ActionSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if spec.IsDone() {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, "done is not a device action")
		return
	}
	if err := spec.Validate(); err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, err.Error())
		return
	}

	out, err := h.driver.PerformAction(r.Context(), spec)
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeDeviceError, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"result": out})
}

// HandleGoBack presses the Android back button.
func (h *Handlers) HandleGoBack(w http.ResponseWriter, r *http.Request) {
	h.pressKey(w, r, schemas.KeycodeBack)
}

// HandleGoHome returns to the home screen.
func (h *Handlers) HandleGoHome(w http.ResponseWriter, r *http.Request) {
	h.pressKey(w, r, schemas.KeycodeHome)
}

func (h *Handlers) pressKey(w http.ResponseWriter, r *http.Request, keycode int) {
	spec := schemas.ActionSpec{Kind: schemas.ActionKey, Keycode: keycode}
	out, err := h.driver.PerformAction(r.Context(), spec)
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeDeviceError, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"result": out})
}

// HandleListApps lists installed packages.
func (h *Handlers) HandleListApps(w http.ResponseWriter, r *http.Request) {
	packages, err := h.driver.ListPackages(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeDeviceError, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"count":    len(packages),
		"packages": packages,
	})
}

// HandleInstallApp installs an APK from a path visible to the host.
func (h *Handlers) HandleInstallApp(w http.ResponseWriter, r *http.Request) {
	h.handleAppAction(w, r, func(req AppRequest) (schemas.ActionSpec, error) {
		if req.Path == "" {
			return schemas.ActionSpec{}, errors.New("path is required")
		}
		return schemas.ActionSpec{Kind: schemas.ActionInstall, Path: req.Path}, nil
	})
}

// HandleUninstallApp removes a package.
func (h *Handlers) HandleUninstallApp(w http.ResponseWriter, r *http.Request) {
	h.handleAppAction(w, r, func(req AppRequest) (schemas.ActionSpec, error) {
		if req.Package == "" {
			return schemas.ActionSpec{}, errors.New("package is required")
		}
		return schemas.ActionSpec{Kind: schemas.ActionUninstall, Package: req.Package}, nil
	})
}

// HandleStartApp launches an app, optionally at a specific activity.
func (h *Handlers) HandleStartApp(w http.ResponseWriter, r *http.Request) {
	h.handleAppAction(w, r, func(req AppRequest) (schemas.ActionSpec, error) {
		if req.Package == "" {
			return schemas.ActionSpec{}, errors.New("package is required")
		}
		return schemas.ActionSpec{Kind: schemas.ActionStart, Package: req.Package, Activity: req.Activity}, nil
	})
}

func (h *Handlers) handleAppAction(w http.ResponseWriter, r *http.Request, build func(AppRequest) (schemas.ActionSpec, error)) {
	var req AppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	spec, err := build(req)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, err.Error())
		return
	}

	out, err := h.driver.PerformAction(r.Context(), spec)
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeDeviceError, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"result": out})
}

func featureGoal(req FeatureRequest) (schemas.Goal, error) {
	goal, err := orchestrator.FeatureGoal(req.Feature, req.AppPackage)
	if err != nil {
		return schemas.Goal{}, err
	}
	goal.MaxSteps = req.MaxSteps
	goal.TimeBudget = time.Duration(req.TimeBudgetSeconds) * time.Second
	return goal, nil
}

// respondWithAppError maps domain errors to HTTP statuses.
func (h *Handlers) respondWithAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schemas.ErrDeviceBusy):
		h.respondWithError(w, http.StatusConflict, schemas.ErrCodeDeviceBusy, err.Error())
	case errors.Is(err, schemas.ErrInvalidGoal):
		h.respondWithError(w, http.StatusBadRequest, schemas.ErrCodeInvalidGoal, err.Error())
	case errors.Is(err, schemas.ErrSessionNotFound):
		h.respondWithError(w, http.StatusNotFound, schemas.ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, schemas.ErrCaptureFailed):
		h.respondWithError(w, http.StatusBadGateway, schemas.ErrCodeCaptureFailed, err.Error())
	default:
		h.log.Error("internal error", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, schemas.ErrCodeDeviceError, "internal error")
	}
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, code schemas.ErrorCode, message string) {
	h.writeJSON(w, statusCode, APIResponse{Status: "error", Error: message, Code: code})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.writeJSON(w, statusCode, APIResponse{Status: "success", Data: data})
}

// respondWithStatus sends a standardized JSON response with a specific status string.
func (h *Handlers) respondWithStatus(w http.ResponseWriter, statusCode int, status string, data interface{}) {
	h.writeJSON(w, statusCode, APIResponse{Status: status, Data: data})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}
