package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"staffsync/internal/usecase"
)

type DepartmentHandlers struct {
	createUC    *usecase.CreateDepartment
	getUC       *usecase.GetDepartment
	deleteUC    *usecase.DeleteDepartment
	employeesUC *usecase.ListDepartmentEmployees
	log         *zap.Logger
}

func NewDepartmentHandlers(
	createUC *usecase.CreateDepartment,
	getUC *usecase.GetDepartment,
	deleteUC *usecase.DeleteDepartment,
	employeesUC *usecase.ListDepartmentEmployees,
	log *zap.Logger,
) *DepartmentHandlers {
	return &DepartmentHandlers{createUC: createUC, getUC: getUC, deleteUC: deleteUC, employeesUC: employeesUC, log: log}
}

type createDepartmentRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"required,max=20"`
	Description  string `json:"description" validate:"max=1000"`
	ManagerEmail string `json:"managerEmail" validate:"omitempty,email"`
}

func (h *DepartmentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, h.log, err)
		return
	}

	d, err := h.createUC.Execute(r.Context(), usecase.CreateDepartmentParams(req))
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	w.Header().Set("Location", "/api/v1/departments/"+strconv.FormatInt(d.ID, 10))
	writeJSON(w, http.StatusCreated, d)
}

func (h *DepartmentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	d, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Delete answers 409 while employees still reference the department.
func (h *DepartmentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
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

// Employees answers 404 for an unknown department and 503 when the employee
// service cannot list.
func (h *DepartmentHandlers) Employees(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}

	list, err := h.employeesUC.Execute(r.Context(), id)
	if err != nil {
		writeProblem(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
