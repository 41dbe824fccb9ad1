package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/usecase"
)

const (
	dateLayout = "2006-01-02"
	maxBatch   = 100
)

type ProjectHandlers struct {
	createUC       *usecase.CreateProject
	addMemberUC    *usecase.AddMember
	listMembersUC  *usecase.ListMembers
	removeMemberUC *usecase.RemoveMember
	log            *zap.Logger
}

func NewProjectHandlers(
	createUC *usecase.CreateProject,
	addMemberUC *usecase.AddMember,
	listMembersUC *usecase.ListMembers,
	removeMemberUC *usecase.RemoveMember,
	log *zap.Logger,
) *ProjectHandlers {
	return &ProjectHandlers{
		createUC:       createUC,
		addMemberUC:    addMemberUC,
		listMembersUC:  listMembersUC,
		removeMemberUC: removeMemberUC,
		log:            log,
	}
}

type createProjectRequest struct {
	Code        string `json:"code" validate:"required,max=20"`
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=2000"`
	Status      string `json:"status" validate:"omitempty,oneof=PLANNED ACTIVE ON_HOLD COMPLETED"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

func (h *ProjectHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	// Layouts were checked by the validator.
	start, _ := time.Parse(dateLayout, req.StartDate)
	params := usecase.CreateProjectParams{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   start,
	}
	if req.EndDate != "" {
		end, _ := time.Parse(dateLayout, req.EndDate)
		params.EndDate = &end
	}

	p, err := h.createUC.Execute(r.Context(), params)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, p)
}

type addMemberRequest struct {
	EmployeeID        int64  `json:"employeeId" validate:"required,gt=0"`
	Role              string `json:"role" validate:"required,max=50"`
	AllocationPercent int    `json:"allocationPercent" validate:"omitempty,min=1,max=100"`
}

// AddMember takes one member object, or an array of them. A single member
// answers 201, or 404 naming the employee when the employee service cannot
// confirm it, including when that service is unreachable. An array answers
// 207 with one result per item in request order.
func (h *ProjectHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeProblem(w, h.log, apperrors.Invalid("malformed request body: %v", err))
		return
	}
	if isJSONArray(raw) {
		h.addMembers(w, r, projectID, raw)
		return
	}

	var req addMemberRequest
	if err := decodeRaw(raw, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	m, err := h.addMemberUC.Execute(r.Context(), projectID, usecase.AddMemberParams(req))
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type memberResult struct {
	EmployeeID int64  `json:"employeeId"`
	Status     int    `json:"status"`
	ID         int64  `json:"id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []memberResult `json:"results"`
}

func (h *ProjectHandlers) addMembers(w http.ResponseWriter, r *http.Request, projectID int64, raw json.RawMessage) {
	var reqs []addMemberRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		writeProblem(w, h.log, apperrors.Invalid("malformed request body: %v", err))
		return
	}
	if err := validate.Var(reqs, "min=1,max="+strconv.Itoa(maxBatch)); err != nil {
		writeProblem(w, h.log, apperrors.Invalid("between 1 and %d members are required", maxBatch))
		return
	}

	params := make([]usecase.AddMemberParams, len(reqs))
	for i, req := range reqs {
		params[i] = usecase.AddMemberParams(req)
	}

	results, err := h.addMemberUC.ExecuteBatch(r.Context(), projectID, params)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	resp := batchResponse{Results: make([]memberResult, len(results))}
	for i, res := range results {
		if res.Err != nil {
			p := problemFor(res.Err)
			if p.Status >= http.StatusInternalServerError {
				h.log.Error("batch member add failed", zap.Int64("employee_id", res.EmployeeID), zap.Error(res.Err))
			}
			resp.Results[i] = memberResult{EmployeeID: res.EmployeeID, Status: p.Status, Error: p.Detail}
			continue
		}
		resp.Results[i] = memberResult{EmployeeID: res.EmployeeID, Status: http.StatusCreated, ID: res.Member.ID}
	}
	writeJSON(w, http.StatusMultiStatus, resp)
}

// ListMembers answers enrich=true with a snapshot of each employee. Members
// the employee service cannot resolve carry {"id":...,"error":"not found"}.
func (h *ProjectHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	enrich := false
	if v := r.URL.Query().Get("enrich"); v != "" {
		enrich, err = strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, h.log, apperrors.Invalid("enrich must be true or false"))
			return
		}
	}

	views, err := h.listMembersUC.Execute(r.Context(), projectID, enrich)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ProjectHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	employeeID, err := idParam(r, "employeeId")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	if err := h.removeMemberUC.Execute(r.Context(), projectID, employeeID); err != nil {
		writeProblem(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
