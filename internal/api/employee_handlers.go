package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"staffsync/internal/api/middleware"
	"staffsync/internal/apperrors"
	"staffsync/internal/usecase"
)

type EmployeeHandlers struct {
	createUC *usecase.CreateEmployee
	getUC    *usecase.GetEmployee
	updateUC *usecase.UpdateEmployee
	deleteUC *usecase.DeleteEmployee
	countUC  *usecase.CountEmployees
	listUC   *usecase.ListEmployees
	log      *zap.Logger
}

func NewEmployeeHandlers(
	createUC *usecase.CreateEmployee,
	getUC *usecase.GetEmployee,
	updateUC *usecase.UpdateEmployee,
	deleteUC *usecase.DeleteEmployee,
	countUC *usecase.CountEmployees,
	listUC *usecase.ListEmployees,
	log *zap.Logger,
) *EmployeeHandlers {
	return &EmployeeHandlers{
		createUC: createUC,
		getUC:    getUC,
		updateUC: updateUC,
		deleteUC: deleteUC,
		countUC:  countUC,
		listUC:   listUC,
		log:      log,
	}
}

type createEmployeeRequest struct {
	FirstName    string `json:"firstName" validate:"required,max=100"`
	LastName     string `json:"lastName" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=255"`
	DepartmentID *int64 `json:"departmentId" validate:"omitempty,gt=0"`
}

// Create answers 201 for a new employee and 200 when the Idempotency-Key was
// already bound, with the bound employee as body.
func (h *EmployeeHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	e, created, err := h.createUC.Execute(r.Context(), middleware.IdempotencyKey(r.Context()), usecase.CreateEmployeeParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/employees/"+strconv.FormatInt(e.ID, 10))
	}
	writeJSON(w, status, e)
}

func (h *EmployeeHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	view, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Replace is PUT: every field is overwritten and an omitted departmentId
// detaches the employee.
func (h *EmployeeHandlers) Replace(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	var req createEmployeeRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	e, err := h.updateUC.Replace(r.Context(), id, usecase.ReplaceEmployeeParams(req))
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type patchEmployeeRequest struct {
	FirstName    *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName     *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	DepartmentID *int64  `json:"departmentId" validate:"omitempty,gt=0"`
}

func (h *EmployeeHandlers) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	var req patchEmployeeRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	e, err := h.updateUC.Patch(r.Context(), id, usecase.PatchEmployeeParams(req))
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EmployeeHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	if err := h.deleteUC.Execute(r.Context(), id); err != nil {
		writeProblem(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type countResponse struct {
	DepartmentID int64 `json:"departmentId"`
	Count        int64 `json:"count"`
}

func departmentIDQuery(r *http.Request) (int64, error) {
	deptID, err := strconv.ParseInt(r.URL.Query().Get("departmentId"), 10, 64)
	if err != nil || deptID <= 0 {
		return 0, apperrors.Invalid("departmentId must be a positive integer")
	}
	return deptID, nil
}

func (h *EmployeeHandlers) CountByDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := departmentIDQuery(r)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	n, err := h.countUC.ByDepartment(r.Context(), deptID)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{DepartmentID: deptID, Count: n})
}

// ListByDepartment answers the plain array other services read.
func (h *EmployeeHandlers) ListByDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := departmentIDQuery(r)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	list, err := h.listUC.ByDepartment(r.Context(), deptID)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
