package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gartstein/payroll/internal/payroll/auth"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// HTTPHandler serves the payroll JSON API. Path parameters name the
// records; request bodies carry the remaining inputs.
type HTTPHandler struct {
	service PayrollController
	logger  *zap.Logger
}

func NewHTTPHandler(service PayrollController, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		logger:  logger.Named("http_handler"),
	}
}

// Routes builds the router. Authentication is applied by the caller.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Post("/companies", h.CreateCompany)
		api.Route("/companies/{company}", func(c chi.Router) {
			c.Get("/", h.GetCompany)
			c.Get("/treasury", h.GetTreasury)
			c.Post("/payroll", h.ProcessPayroll)
			c.Get("/employees", h.ListEmployees)
			c.Post("/employees", h.AddEmployee)
			c.Route("/employees/{employee}", func(emp chi.Router) {
				emp.Get("/", h.GetEmployee)
				emp.Delete("/", h.RemoveEmployee)
				emp.Put("/salary", h.UpdateEmployeeSalary)
				emp.Post("/payments", h.ProcessPayment)
				emp.Get("/proofs", h.ListPaymentProofs)
				emp.Post("/proofs", h.RecordPaymentProof)
			})
		})
		api.Get("/payment-proofs/{address}", h.GetPaymentProof)
		api.Post("/token-accounts", h.OpenTokenAccount)
		api.Get("/token-accounts/{address}", h.GetTokenAccount)
		api.Post("/token-accounts/{address}/deposits", h.Deposit)
	})
	return r
}

func (h *HTTPHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	company, err := req.toModel()
	if err != nil {
		h.respond(w, 0, nil, err)
		return
	}
	created, err := h.service.CreateCompany(r.Context(), caller, company)
	h.respond(w, http.StatusCreated, created, err)
}

func (h *HTTPHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathKey(w, r, "company")
	if !ok {
		return
	}
	company, err := h.service.GetCompany(r.Context(), addr)
	h.respond(w, http.StatusOK, company, err)
}

func (h *HTTPHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathKey(w, r, "company")
	if !ok {
		return
	}
	treasury, err := h.service.GetTreasury(r.Context(), addr)
	h.respond(w, http.StatusOK, treasury, err)
}

func (h *HTTPHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathKey(w, r, "company")
	if !ok {
		return
	}
	employees, err := h.service.ListEmployees(r.Context(), addr)
	h.respond(w, http.StatusOK, &EmployeesResponse{Employees: employees}, err)
}

func (h *HTTPHandler) AddEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	company, ok := h.pathKey(w, r, "company")
	if !ok {
		return
	}
	var req AddEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Company = company
	employee, err := req.toModel()
	if err != nil {
		h.respond(w, 0, nil, err)
		return
	}
	added, err := h.service.AddEmployee(r.Context(), caller, employee)
	h.respond(w, http.StatusCreated, added, err)
}

func (h *HTTPHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	employee, err := h.service.GetEmployee(r.Context(), ref.Employee)
	if err == nil && employee.Company != ref.Company {
		err = fmt.Errorf("%w: %s", e.ErrEmployeeNotFound, ref.Employee)
	}
	h.respond(w, http.StatusOK, employee, err)
}

func (h *HTTPHandler) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	in := ref.toModel()
	employee, err := h.service.RemoveEmployee(r.Context(), caller, &in)
	h.respond(w, http.StatusOK, employee, err)
}

func (h *HTTPHandler) UpdateEmployeeSalary(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	var req UpdateSalaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.EmployeeRequest = ref
	employee, err := h.service.UpdateEmployeeSalary(r.Context(), caller, req.toModel())
	h.respond(w, http.StatusOK, employee, err)
}

func (h *HTTPHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.EmployeeRequest = ref
	employee, err := h.service.ProcessPayment(r.Context(), caller, req.toModel())
	h.respond(w, http.StatusOK, employee, err)
}

func (h *HTTPHandler) ProcessPayroll(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	company, ok := h.pathKey(w, r, "company")
	if !ok {
		return
	}
	var req PayrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Company = company
	run, err := h.service.ProcessPayroll(r.Context(), caller, company, req.toModel())
	h.respond(w, http.StatusOK, run, err)
}

func (h *HTTPHandler) RecordPaymentProof(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	var req PaymentProofRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.EmployeeRequest = ref
	proof, err := h.service.RecordPaymentProof(r.Context(), caller, req.toModel())
	h.respond(w, http.StatusCreated, proof, err)
}

func (h *HTTPHandler) ListPaymentProofs(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.employeeRef(w, r)
	if !ok {
		return
	}
	proofs, err := h.service.ListPaymentProofs(r.Context(), ref.Company, ref.Employee)
	h.respond(w, http.StatusOK, &PaymentProofsResponse{PaymentProofs: proofs}, err)
}

func (h *HTTPHandler) GetPaymentProof(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathKey(w, r, "address")
	if !ok {
		return
	}
	proof, err := h.service.GetPaymentProof(r.Context(), addr)
	h.respond(w, http.StatusOK, proof, err)
}

func (h *HTTPHandler) OpenTokenAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	var req OpenTokenAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.OpenTokenAccount(r.Context(), req.Owner, req.Mint)
	h.respond(w, http.StatusCreated, account, err)
}

func (h *HTTPHandler) GetTokenAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathKey(w, r, "address")
	if !ok {
		return
	}
	account, err := h.service.GetTokenAccount(r.Context(), addr)
	h.respond(w, http.StatusOK, account, err)
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	addr, ok := h.pathKey(w, r, "address")
	if !ok {
		return
	}
	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Deposit(r.Context(), addr, req.Amount)
	h.respond(w, http.StatusOK, account, err)
}

func (h *HTTPHandler) caller(w http.ResponseWriter, r *http.Request) (models.Pubkey, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return models.Pubkey{}, false
	}
	return caller, true
}

func (h *HTTPHandler) pathKey(w http.ResponseWriter, r *http.Request, name string) (models.Pubkey, bool) {
	key, err := models.ParsePubkey(chi.URLParam(r, name))
	if err != nil {
		h.respond(w, 0, nil, fmt.Errorf("%w: %s: %v", e.ErrInvalidInput, name, err))
		return models.Pubkey{}, false
	}
	return key, true
}

func (h *HTTPHandler) employeeRef(w http.ResponseWriter, r *http.Request) (EmployeeRequest, bool) {
	company, ok := h.pathKey(w, r, "company")
	if !ok {
		return EmployeeRequest{}, false
	}
	employee, ok := h.pathKey(w, r, "employee")
	if !ok {
		return EmployeeRequest{}, false
	}
	return EmployeeRequest{Company: company, Employee: employee}, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		h.respond(w, 0, nil, fmt.Errorf("%w: payload: %v", e.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *HTTPHandler) respond(w http.ResponseWriter, okStatus int, result interface{}, err error) {
	if err != nil {
		_, httpStatus := statusOf(err)
		if httpStatus == http.StatusInternalServerError {
			h.logger.Error("Internal server error", zap.Error(err))
			body := errorBody(err)
			body.Message = "internal server error"
			h.writeJSON(w, httpStatus, body)
			return
		}
		h.writeJSON(w, httpStatus, errorBody(err))
		return
	}
	h.writeJSON(w, okStatus, result)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
