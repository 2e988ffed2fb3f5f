package services

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/susupay/backend/internal/models"
)

func TestBuildPacs008(t *testing.T) {
	withdrawal := &models.Transaction{
		ID:          "wd1",
		UserID:      "user1",
		UserName:    "Ama Mensah",
		Type:        models.TxWithdrawal,
		Amount:      2550,
		Currency:    "GHS",
		Provider:    ProviderMTN,
		PhoneNumber: "0244123456",
		Status:      models.TxCompleted,
	}

	t.Run("completed withdrawal converts", func(t *testing.T) {
		doc, err := BuildPacs008(withdrawal)
		assert.NoError(t, err)

		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, "GHS", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
		// 2550 pesewas exports as 25.50 cedis
		assert.Equal(t, 25.50, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)

		assert.Len(t, doc.CdtTrfTxInf, 1)
		transfer := doc.CdtTrfTxInf[0]
		assert.Equal(t, "wd1", string(transfer.PmtId.EndToEndId))
		assert.Equal(t, 25.50, transfer.IntrBkSttlmAmt.Value)
		assert.Equal(t, "Ama Mensah", string(*transfer.Cdtr.Nm))
		assert.Equal(t, ProviderMTN, string(transfer.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	})

	t.Run("document marshals to XML", func(t *testing.T) {
		doc, err := BuildPacs008(withdrawal)
		assert.NoError(t, err)

		data, err := xml.Marshal(doc)
		assert.NoError(t, err)
		assert.Contains(t, string(data), "Ama Mensah")
	})

	t.Run("non-withdrawal types are refused", func(t *testing.T) {
		deposit := *withdrawal
		deposit.Type = models.TxDeposit
		_, err := BuildPacs008(&deposit)
		assert.ErrorContains(t, err, "cannot settle transaction of type")
	})

	t.Run("pending rows are refused", func(t *testing.T) {
		pending := *withdrawal
		pending.Status = models.TxPending
		_, err := BuildPacs008(&pending)
		assert.ErrorContains(t, err, "cannot settle transaction in status")
	})
}
