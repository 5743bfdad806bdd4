package main

import (
	"context"
	"testing"

	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditEvent(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	handle := auditEvent(zap.New(core))

	company := &models.Company{Address: models.Pubkey{1}, EmployeeCount: 2, TotalPaymentsMade: 5}
	commitment := models.Hash{0xAB}
	event := events.NewEvent(events.PaymentProcessed, 1_700_000_000, company)
	event.Employee = &models.Employee{Address: models.Pubkey{2}, Wallet: models.Pubkey{3}, IsActive: true}
	event.AmountCommitment = &commitment

	require.NoError(t, handle(context.Background(), event))

	logs := recorded.FilterMessage("Payroll event").All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "payment_processed", fields["type"])
	assert.Equal(t, company.Address.String(), fields["company"])
	assert.Equal(t, models.Pubkey{2}.String(), fields["employee"])
	assert.Equal(t, commitment.String(), fields["amount_commitment"])
	assert.Equal(t, uint64(5), fields["total_payments_made"])
}

func TestAuditEvent_RejectsEventWithoutCompany(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	handle := auditEvent(zap.New(core))

	assert.Error(t, handle(context.Background(), events.Event{Type: events.CompanyCreated}))
	assert.Zero(t, recorded.Len())
}
