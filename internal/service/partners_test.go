package service

import (
	"context"
	"testing"

	"memoriqr-service/internal/apperr"
	"memoriqr-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePartner(t *testing.T) {
	s := newMemStore()
	svc := NewPartnerService(s, nil)

	p, err := svc.CreatePartner(context.Background(), &CreatePartnerRequest{Name: " Funeral Home ", ContactEmail: "owner@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Funeral Home", p.Name)
	assert.True(t, p.CommissionRate.Equal(DefaultCommissionRate))
	assert.True(t, p.IsActive)

	tooHigh := decimal.NewFromInt(101)
	tests := []CreatePartnerRequest{
		{Name: "", ContactEmail: "a@b.c"},
		{Name: "x", ContactEmail: "not-an-email"},
		{Name: "x", ContactEmail: "a@b.c", CommissionRate: &tooHigh},
	}
	for _, req := range tests {
		req := req
		_, err := svc.CreatePartner(context.Background(), &req)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}

	_, err = svc.GetPartner(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAssignAndUnassignCodes(t *testing.T) {
	s := newMemStore()
	p := s.addPartner("Funeral Home", "owner@example.com", 15, true)
	other := s.addPartner("Other", "other@example.com", 15, true)
	closed := s.addPartner("Closed", "closed@example.com", 15, false)
	s.addCode("MQR-5N-AAAAAA", variant5N, nil, nil)
	s.addCode("MQR-5N-BBBBBB", variant5N, &other.ID, nil)
	used := s.addCode("MQR-5N-CCCCCC", variant5N, nil, nil)
	used.IsUsed = true
	svc := NewPartnerService(s, nil)

	res, err := svc.AssignCodes(context.Background(), &AssignRequest{
		Codes:     []string{"mqr-5n-aaaaaa", "MQR-5N-BBBBBB", "MQR-5N-CCCCCC", "MQR-5N-DDDDDD"},
		PartnerID: p.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignResult{Assigned: 1, SkippedAlreadyAssigned: 1, SkippedUsed: 1, NotFound: 1}, *res)
	assert.Equal(t, p.ID, *s.codes["MQR-5N-AAAAAA"].PartnerID)

	_, err = svc.AssignCodes(context.Background(), &AssignRequest{Codes: []string{"MQR-5N-AAAAAA"}, PartnerID: closed.ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AssignCodes(context.Background(), &AssignRequest{Codes: []string{"MQR-5N-AAAAAA"}, PartnerID: "missing"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	n, err := svc.UnassignCodes(context.Background(), []string{"MQR-5N-AAAAAA", "MQR-5N-CCCCCC"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, s.codes["MQR-5N-AAAAAA"].PartnerID)
}

func TestTransferCodes(t *testing.T) {
	s := newMemStore()
	from := s.addPartner("Branch A", "Owner@Example.com", 15, true)
	to := s.addPartner("Branch B", "owner@example.com", 15, true)
	stranger := s.addPartner("Someone Else", "else@example.com", 15, true)
	s.addCode("MQR-5N-AAAAAA", variant5N, &from.ID, nil)
	s.addCode("MQR-5N-BBBBBB", variant5N, &from.ID, nil)
	redeemed := s.addCode("MQR-5N-CCCCCC", variant5N, &from.ID, nil)
	redeemed.IsUsed = true
	pub := &recordingPublisher{}
	svc := NewPartnerService(s, pub)

	res, err := svc.TransferCodes(context.Background(), from.ID, &TransferRequest{
		Codes:       []string{"MQR-5N-AAAAAA", "MQR-5N-CCCCCC"},
		ToPartnerID: to.ID,
		Notes:       "moving stock to branch B",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"MQR-5N-AAAAAA"}, res.Transferred)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, to.ID, *s.codes["MQR-5N-AAAAAA"].PartnerID)
	assert.Equal(t, from.ID, *s.codes["MQR-5N-CCCCCC"].PartnerID)

	require.Len(t, pub.transferred, 1)
	assert.Equal(t, []string{"MQR-5N-AAAAAA"}, pub.transferred[0].Codes)

	_, err = svc.TransferCodes(context.Background(), from.ID, &TransferRequest{Codes: []string{"MQR-5N-BBBBBB"}, ToPartnerID: stranger.ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.TransferCodes(context.Background(), from.ID, &TransferRequest{Codes: []string{"MQR-5N-BBBBBB"}, ToPartnerID: from.ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, from.ID, *s.codes["MQR-5N-BBBBBB"].PartnerID)
}

func TestListPartnerCodes(t *testing.T) {
	s := newMemStore()
	p := s.addPartner("Branch A", "owner@example.com", 15, true)
	s.addCode("MQR-5N-AAAAAA", variant5N, &p.ID, nil)
	used := s.addCode("MQR-5N-BBBBBB", variant5N, &p.ID, nil)
	used.IsUsed = true
	s.addCode("MQR-5N-CCCCCC", variant5N, nil, nil)
	svc := NewPartnerService(s, nil)

	codes, total, err := svc.ListPartnerCodes(context.Background(), p.ID, models.CodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, codes, 2)

	_, total, err = svc.ListPartnerCodes(context.Background(), p.ID, models.CodeFilter{Status: models.CodeStatusUnused})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = svc.ListPartnerCodes(context.Background(), p.ID, models.CodeFilter{Status: models.CodeStatusUnassigned})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCommissionLifecycle(t *testing.T) {
	s := newMemStore()
	p := s.addPartner("Funeral Home", "owner@example.com", 15, true)
	s.addCode("MQR-10B-AAAAAA", variant10B, &p.ID, nil)
	s.addCode("MQR-5Q-BBBBBB", variant5Q, &p.ID, nil)
	r := newTestRecorder(s, nil)
	first, err := r.Redeem(context.Background(), &RedeemRequest{Code: "MQR-10B-AAAAAA", MemorialID: "m1"})
	require.NoError(t, err)
	second, err := r.Redeem(context.Background(), &RedeemRequest{Code: "MQR-5Q-BBBBBB", MemorialID: "m2"})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewCommissionService(s, pub)

	pending, err := svc.List(context.Background(), models.CommissionFilter{PartnerID: p.ID, Status: models.CommissionPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = svc.MarkPaid(context.Background(), []string{first.Commission.ID}, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionPending, s.commissions[first.Commission.ID].Status, "only approved commissions can be paid")

	approved, err := svc.Approve(context.Background(), []string{first.Commission.ID, second.Commission.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, approved, 2)
	require.Len(t, pub.approved, 2)
	assert.Equal(t, p.ID, pub.approved[0].PartnerID)

	again, err := svc.Approve(context.Background(), []string{first.Commission.ID})
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = svc.MarkPaid(context.Background(), []string{first.Commission.ID}, " ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	paid, err := svc.MarkPaid(context.Background(), []string{first.Commission.ID}, "PAY-1")
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "PAY-1", *paid[0].PayoutReference)

	_, err = svc.Cancel(context.Background(), first.Commission.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	cancelled, err := svc.Cancel(context.Background(), second.Commission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.List(context.Background(), models.CommissionFilter{Status: "refunded"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
