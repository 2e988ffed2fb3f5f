package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/susupay/backend/internal/config"
	"github.com/susupay/backend/internal/models"
)

const platformBIC = "SUSUPAYG"

// SettlementService drains completed withdrawals off the Redis queue and
// exports each as a pacs.008 credit transfer for the mobile-money
// settlement file. No provider call is made; the export is handed to the
// out-of-band settlement process.
type SettlementService struct {
	redis *redis.Client
	cfg   *config.EngineConfig
}

func NewSettlementService(redisClient *redis.Client) *SettlementService {
	return &SettlementService{
		redis: redisClient,
		cfg:   config.LoadEngineConfig(),
	}
}

// BuildPacs008 converts a withdrawal into a pacs.008
// FIToFICustomerCreditTransfer. Amounts are stored in minor units and
// exported in major units.
func BuildPacs008(t *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if t.Type != models.TxWithdrawal {
		return nil, fmt.Errorf("cannot settle transaction of type %s", t.Type)
	}
	if t.Status != models.TxCompleted {
		return nil, fmt.Errorf("cannot settle transaction in status %s", t.Status)
	}

	msgID := uuid.New().String()
	now := time.Now()
	amount := float64(t.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(t.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(t.ID)}[0],
					EndToEndId: common.Max35Text(t.ID),
					TxId:       &[]common.Max35Text{common.Max35Text(t.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(t.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(platformBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Susu Pool Account")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(t.Provider),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(t.UserName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// exportDocument renders the document as XML and hands it to the
// settlement drop. File delivery is environment specific; the default
// writes the message to the log.
func (s *SettlementService) exportDocument(doc *pacs_v08.FIToFICustomerCreditTransferV08) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settlement message: %w", err)
	}
	log.Printf("[SETTLEMENT] Exported pacs.008: %s", string(data))
	return nil
}

// DrainOnce pops at most one queued withdrawal and exports it. Returns
// false when the queue is empty.
func (s *SettlementService) DrainOnce(ctx context.Context) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	payload, err := s.redis.LPop(ctx, s.cfg.SettlementQueue).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var t models.Transaction
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		log.Printf("[SETTLEMENT] Dropping malformed queue entry: %v", err)
		return true, nil
	}

	doc, err := BuildPacs008(&t)
	if err != nil {
		log.Printf("[SETTLEMENT] Dropping unsettleable entry %s: %v", t.ID, err)
		return true, nil
	}

	if err := s.exportDocument(doc); err != nil {
		// Requeue so the export is retried on the next pass.
		s.redis.RPush(ctx, s.cfg.SettlementQueue, payload)
		return false, err
	}

	log.Printf("[SETTLEMENT] Withdrawal %s settled: %d %s via %s", t.ID, t.Amount, t.Currency, t.Provider)
	return true, nil
}

// RunWorker drains the settlement queue on an interval until the context
// is cancelled.
func (s *SettlementService) RunWorker(ctx context.Context, interval time.Duration) {
	if s.redis == nil {
		log.Println("[SETTLEMENT] Redis unavailable, settlement worker not started")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SETTLEMENT] Worker started, draining %s every %s", s.cfg.SettlementQueue, interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[SETTLEMENT] Worker stopped")
			return
		case <-ticker.C:
			for {
				more, err := s.DrainOnce(ctx)
				if err != nil {
					log.Printf("[SETTLEMENT] Drain failed: %v", err)
					break
				}
				if !more {
					break
				}
			}
		}
	}
}
