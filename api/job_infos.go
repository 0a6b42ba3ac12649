package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/pkg/models"
)

const msgInvalidJob = "Invalid job data"

type JobInfosHandler struct {
	access *access.Layer
}

func NewJobInfosHandler(a *access.Layer) *JobInfosHandler {
	return &JobInfosHandler{access: a}
}

type jobInfoRequest struct {
	Title           *string `json:"title" validate:"omitempty,max=255"`
	Name            string  `json:"name" validate:"required,max=255"`
	Description     string  `json:"description" validate:"required"`
	ExperienceLevel string  `json:"experienceLevel" validate:"required,experience_level"`
}

func (req *jobInfoRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			req.Title = nil
		} else {
			req.Title = &t
		}
	}
}

func (h *JobInfosHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req jobInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, validationMessage(err, msgInvalidJob), http.StatusBadRequest)
		return
	}
	req.normalize()
	if req.Name == "" || req.Description == "" {
		http.Error(w, msgInvalidJob, http.StatusBadRequest)
		return
	}

	j := &models.JobInfo{
		UserID:          p.UserID,
		Title:           req.Title,
		Name:            req.Name,
		Description:     req.Description,
		ExperienceLevel: models.ExperienceLevel(req.ExperienceLevel),
	}
	if _, err := h.access.JobInfos.Insert(r.Context(), j); err != nil {
		internalError(w, "create job info", err)
		return
	}
	writeJSON(w, j, http.StatusCreated)
}

// List returns the caller's job infos, most recently updated first.
func (h *JobInfosHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.access.JobInfos.ListByUser(r.Context(), p.UserID)
	if err != nil {
		internalError(w, "list job infos", err)
		return
	}
	if list == nil {
		list = []models.JobInfo{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *JobInfosHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	j, err := h.access.JobInfos.Get(r.Context(), mux.Vars(r)["id"], p.UserID)
	if err != nil {
		internalError(w, "load job info", err)
		return
	}
	if j == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}
	writeJSON(w, j, http.StatusOK)
}

// Update replaces the editable fields of a job info. A null or blank title
// clears it.
func (h *JobInfosHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req jobInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, validationMessage(err, msgInvalidJob), http.StatusBadRequest)
		return
	}
	req.normalize()
	if req.Name == "" || req.Description == "" {
		http.Error(w, msgInvalidJob, http.StatusBadRequest)
		return
	}

	level := models.ExperienceLevel(req.ExperienceLevel)
	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	j, err := h.access.JobInfos.Update(r.Context(), mux.Vars(r)["id"], p.UserID, models.JobInfoUpdate{
		Title:           &title,
		Name:            &req.Name,
		Description:     &req.Description,
		ExperienceLevel: &level,
	})
	if err != nil {
		internalError(w, "update job info", err)
		return
	}
	if j == nil {
		http.Error(w, msgNoPermission, http.StatusForbidden)
		return
	}
	writeJSON(w, j, http.StatusOK)
}
