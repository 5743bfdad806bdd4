package handlers

import (
	"context"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PayrollServiceServer is the gRPC surface of the payroll service. Messages
// are google.protobuf.Struct values carrying the JSON request and response
// bodies of the HTTP API.
type PayrollServiceServer interface {
	CreateCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEmployeeSalary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessPayroll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordPaymentProof(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTreasury(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEmployees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPaymentProof(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPaymentProofs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTokenAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenTokenAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(h PayrollServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, fn structMethod) grpc.MethodDesc {
	fullMethod := "/" + auth.ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(PayrollServiceServer)
			if interceptor == nil {
				return fn(h, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(h, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PayrollServiceDesc describes payroll.v1.PayrollService for grpc.Server.
var PayrollServiceDesc = grpc.ServiceDesc{
	ServiceName: auth.ServiceName,
	HandlerType: (*PayrollServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateCompany", PayrollServiceServer.CreateCompany),
		unaryMethod("AddEmployee", PayrollServiceServer.AddEmployee),
		unaryMethod("UpdateEmployeeSalary", PayrollServiceServer.UpdateEmployeeSalary),
		unaryMethod("RemoveEmployee", PayrollServiceServer.RemoveEmployee),
		unaryMethod("ProcessPayment", PayrollServiceServer.ProcessPayment),
		unaryMethod("ProcessPayroll", PayrollServiceServer.ProcessPayroll),
		unaryMethod("RecordPaymentProof", PayrollServiceServer.RecordPaymentProof),
		unaryMethod("GetCompany", PayrollServiceServer.GetCompany),
		unaryMethod("GetTreasury", PayrollServiceServer.GetTreasury),
		unaryMethod("GetEmployee", PayrollServiceServer.GetEmployee),
		unaryMethod("ListEmployees", PayrollServiceServer.ListEmployees),
		unaryMethod("GetPaymentProof", PayrollServiceServer.GetPaymentProof),
		unaryMethod("ListPaymentProofs", PayrollServiceServer.ListPaymentProofs),
		unaryMethod("GetTokenAccount", PayrollServiceServer.GetTokenAccount),
		unaryMethod("OpenTokenAccount", PayrollServiceServer.OpenTokenAccount),
		unaryMethod("Deposit", PayrollServiceServer.Deposit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payroll/v1/payroll.proto",
}

// PayrollHandler provides gRPC methods for payroll operations,
// mapping requests to a PayrollController interface.
type PayrollHandler struct {
	service PayrollController
	logger  *zap.Logger
}

// NewPayrollHandler constructs a new PayrollHandler with the given service and logger.
func NewPayrollHandler(service PayrollController, logger *zap.Logger) *PayrollHandler {
	return &PayrollHandler{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

func (h *PayrollHandler) CreateCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CreateCompanyRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	company, err := in.toModel()
	if err != nil {
		return h.reply(nil, err)
	}
	created, err := h.service.CreateCompany(ctx, caller, company)
	return h.reply(created, err)
}

func (h *PayrollHandler) AddEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddEmployeeRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	employee, err := in.toModel()
	if err != nil {
		return h.reply(nil, err)
	}
	added, err := h.service.AddEmployee(ctx, caller, employee)
	return h.reply(added, err)
}

func (h *PayrollHandler) UpdateEmployeeSalary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in UpdateSalaryRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	employee, err := h.service.UpdateEmployeeSalary(ctx, caller, in.toModel())
	return h.reply(employee, err)
}

func (h *PayrollHandler) RemoveEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in EmployeeRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	ref := in.toModel()
	employee, err := h.service.RemoveEmployee(ctx, caller, &ref)
	return h.reply(employee, err)
}

func (h *PayrollHandler) ProcessPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in PaymentRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	employee, err := h.service.ProcessPayment(ctx, caller, in.toModel())
	return h.reply(employee, err)
}

func (h *PayrollHandler) ProcessPayroll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in PayrollRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	run, err := h.service.ProcessPayroll(ctx, caller, in.Company, in.toModel())
	return h.reply(run, err)
}

func (h *PayrollHandler) RecordPaymentProof(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in PaymentProofRequest
	caller, err := h.begin(ctx, req, &in)
	if err != nil {
		return nil, err
	}
	proof, err := h.service.RecordPaymentProof(ctx, caller, in.toModel())
	return h.reply(proof, err)
}

func (h *PayrollHandler) GetCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	company, err := h.service.GetCompany(ctx, in.Address)
	return h.reply(company, err)
}

func (h *PayrollHandler) GetTreasury(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	treasury, err := h.service.GetTreasury(ctx, in.Address)
	return h.reply(treasury, err)
}

func (h *PayrollHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	employee, err := h.service.GetEmployee(ctx, in.Address)
	return h.reply(employee, err)
}

func (h *PayrollHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	employees, err := h.service.ListEmployees(ctx, in.Address)
	return h.reply(&EmployeesResponse{Employees: employees}, err)
}

func (h *PayrollHandler) GetPaymentProof(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	proof, err := h.service.GetPaymentProof(ctx, in.Address)
	return h.reply(proof, err)
}

func (h *PayrollHandler) ListPaymentProofs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in EmployeeRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	proofs, err := h.service.ListPaymentProofs(ctx, in.Company, in.Employee)
	return h.reply(&PaymentProofsResponse{PaymentProofs: proofs}, err)
}

func (h *PayrollHandler) GetTokenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AddressRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}
	account, err := h.service.GetTokenAccount(ctx, in.Address)
	return h.reply(account, err)
}

func (h *PayrollHandler) OpenTokenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in OpenTokenAccountRequest
	if _, err := h.begin(ctx, req, &in); err != nil {
		return nil, err
	}
	account, err := h.service.OpenTokenAccount(ctx, in.Owner, in.Mint)
	return h.reply(account, err)
}

func (h *PayrollHandler) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in DepositRequest
	if _, err := h.begin(ctx, req, &in); err != nil {
		return nil, err
	}
	account, err := h.service.Deposit(ctx, in.Account, in.Amount)
	return h.reply(account, err)
}

// begin decodes a mutating request and returns the verified caller.
func (h *PayrollHandler) begin(ctx context.Context, req *structpb.Struct, out interface{}) (models.Pubkey, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return models.Pubkey{}, status.Error(codes.Unauthenticated, "caller identity missing")
	}
	if err := h.decode(req, out); err != nil {
		return models.Pubkey{}, err
	}
	return caller, nil
}

func (h *PayrollHandler) decode(req *structpb.Struct, out interface{}) error {
	if err := decodeStruct(req, out); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func (h *PayrollHandler) reply(result interface{}, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	out, err := encodeStruct(result)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// mapServiceError maps domain or repository errors to appropriate gRPC status codes.
func (h *PayrollHandler) mapServiceError(err error) error {
	code, _ := statusOf(err)
	if code == codes.Internal {
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
	return status.Error(code, err.Error())
}
