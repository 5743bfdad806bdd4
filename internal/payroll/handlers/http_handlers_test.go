package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gartstein/payroll/internal/payroll/address"
	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	handler := NewHTTPHandler(newTestService(t), zaptest.NewLogger(t))
	server := httptest.NewServer(auth.HTTPMiddleware(handler.Routes(), testSecret))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

// do sends body as JSON, signed by wallet unless it is zero, and decodes
// the response into out when out is not nil.
func (c *apiClient) do(method, path string, wallet models.Pubkey, body interface{}, out interface{}) int {
	c.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if !wallet.IsZero() {
		token, err := auth.GenerateToken(wallet, testSecret, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHTTPHandler_Health(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", models.Pubkey{}, nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/metrics", models.Pubkey{}, nil, nil))
}

func TestHTTPHandler_PayrollFlow(t *testing.T) {
	api := newAPI(t)
	authority, wallet, mint := key(1), key(2), key(9)
	companyAddr := address.Company(authority)
	companyPath := "/v1/companies/" + companyAddr.String()

	status := api.do(http.MethodPost, "/v1/companies", models.Pubkey{}, &CreateCompanyRequest{Name: "Acme", PaymentToken: mint}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var company models.Company
	status = api.do(http.MethodPost, "/v1/companies", authority, &CreateCompanyRequest{
		Name:             "Acme",
		PaymentToken:     mint,
		PaymentFrequency: frequency(models.Biweekly),
	}, &company)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, companyAddr, company.Address)

	var errBody ErrorBody
	status = api.do(http.MethodPost, "/v1/companies", authority, &CreateCompanyRequest{
		Name:             "Acme",
		PaymentToken:     mint,
		PaymentFrequency: frequency(models.Weekly),
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CompanyAlreadyExists", errBody.Error)

	status = api.do(http.MethodPost, "/v1/companies", key(3), &CreateCompanyRequest{
		Name:         "No Cadence",
		PaymentToken: mint,
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidInput", errBody.Error)
	assert.Contains(t, errBody.Message, "payment_frequency")

	var account models.TokenAccount
	status = api.do(http.MethodPost, "/v1/token-accounts", wallet, &OpenTokenAccountRequest{Owner: wallet, Mint: mint}, &account)
	require.Equal(t, http.StatusCreated, status)

	var treasury models.TokenAccount
	status = api.do(http.MethodPost, "/v1/token-accounts/"+address.Treasury(companyAddr).String()+"/deposits",
		authority, `{"amount":"3000000"}`, &treasury)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(3_000_000), treasury.Amount)

	status = api.do(http.MethodPost, companyPath+"/employees", authority, &AddEmployeeRequest{
		Wallet:          wallet,
		EncryptedSalary: []byte("ciphertext"),
		TokenAccount:    account.Address,
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidInput", errBody.Error)

	var employee models.Employee
	status = api.do(http.MethodPost, companyPath+"/employees", authority, &AddEmployeeRequest{
		Wallet:           wallet,
		EncryptedSalary:  []byte("ciphertext"),
		PaymentFrequency: frequency(models.Biweekly),
		TokenAccount:     account.Address,
	}, &employee)
	require.Equal(t, http.StatusCreated, status)
	employeePath := companyPath + "/employees/" + employee.Address.String()

	var updated models.Employee
	status = api.do(http.MethodPut, employeePath+"/salary", authority, &UpdateSalaryRequest{
		EncryptedSalary:  []byte("new ciphertext"),
		SalaryCommitment: models.Hash{7},
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []byte("new ciphertext"), updated.EncryptedSalary)

	var paid models.Employee
	status = api.do(http.MethodPost, employeePath+"/payments", authority, &PaymentRequest{
		RecipientAccount: account.Address,
		Amount:           2_000_000,
	}, &paid)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(1), paid.TotalPaymentsReceived)

	status = api.do(http.MethodPost, employeePath+"/payments", authority, &PaymentRequest{
		RecipientAccount: account.Address,
		Amount:           2_000_000,
	}, &errBody)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "InsufficientCompanyBalance", errBody.Error)
	assert.Equal(t, "wait", errBody.Retry)

	var proof models.PaymentProof
	status = api.do(http.MethodPost, employeePath+"/proofs", authority, &PaymentProofRequest{
		PaymentID:   1,
		ZKProof:     []byte{1, 2, 3},
		TxSignature: "sig",
	}, &proof)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.Completed, proof.Status)

	var proofs PaymentProofsResponse
	status = api.do(http.MethodGet, employeePath+"/proofs", models.Pubkey{}, nil, &proofs)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, proofs.PaymentProofs, 1)

	var single models.PaymentProof
	status = api.do(http.MethodGet, "/v1/payment-proofs/"+proof.Address.String(), models.Pubkey{}, nil, &single)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, proof.Address, single.Address)

	var removed models.Employee
	status = api.do(http.MethodDelete, employeePath, authority, nil, &removed)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, removed.IsActive)

	var roster EmployeesResponse
	status = api.do(http.MethodGet, companyPath+"/employees", models.Pubkey{}, nil, &roster)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, roster.Employees, 1)
	assert.False(t, roster.Employees[0].IsActive)

	var stored models.Company
	status = api.do(http.MethodGet, companyPath, models.Pubkey{}, nil, &stored)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint16(0), stored.EmployeeCount)
	assert.Equal(t, uint64(1), stored.TotalPaymentsMade)

	var balance models.TokenAccount
	status = api.do(http.MethodGet, companyPath+"/treasury", models.Pubkey{}, nil, &balance)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(1_000_000), balance.Amount)
}

func TestHTTPHandler_Errors(t *testing.T) {
	api := newAPI(t)
	authority := key(1)

	tests := []struct {
		name       string
		method     string
		path       string
		wallet     models.Pubkey
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown company",
			method:     http.MethodGet,
			path:       "/v1/companies/" + key(5).String(),
			wantStatus: http.StatusNotFound,
			wantError:  "CompanyNotFound",
		},
		{
			name:       "malformed key",
			method:     http.MethodGet,
			path:       "/v1/companies/0OIl",
			wantStatus: http.StatusBadRequest,
			wantError:  "InvalidInput",
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			path:       "/v1/companies",
			wallet:     authority,
			body:       `{"name":"Acme","color":"blue"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "InvalidInput",
		},
		{
			name:       "name too long",
			method:     http.MethodPost,
			path:       "/v1/companies",
			wallet:     authority,
			body:       fmt.Sprintf(`{"name":%q,"payment_token":%q,"payment_frequency":"WEEKLY"}`, string(bytes.Repeat([]byte("x"), 51)), key(9)),
			wantStatus: http.StatusBadRequest,
			wantError:  "CompanyNameTooLong",
		},
		{
			name:       "unknown proof",
			method:     http.MethodGet,
			path:       "/v1/payment-proofs/" + key(6).String(),
			wantStatus: http.StatusNotFound,
			wantError:  "NotFound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorBody
			status := api.do(tt.method, tt.path, tt.wallet, tt.body, &body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}
