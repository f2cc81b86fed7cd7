package syncer

import (
	"context"
	"log"
	"time"

	"github.com/TrumanStellar/Story-Creation/internal/database"
)

// RunSettlement polls the journal for unsettled transactions until ctx is
// cancelled. It runs independently of the state sync loop.
func (s *Syncer) RunSettlement(ctx context.Context) {
	log.Printf("[settle] %s settlement every %v", s.integr.ChainID(), s.settleInterval)
	ticker := time.NewTicker(s.settleInterval)
	defer ticker.Stop()

	for {
		if err := s.settlePass(ctx); err != nil {
			log.Printf("[settle] %s pass failed: %v", s.integr.ChainID(), err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[settle] %s settlement stopped", s.integr.ChainID())
			return
		case <-ticker.C:
		}
	}
}

// settlePass checks every open journal record against the ledger. Side
// effects are applied through SettleTransaction, whose settled flag flip
// and asset mutation share one store transaction, so a record's effects
// land at most once no matter how often the pass observes it confirmed.
// Per-record errors are logged and the pass moves on.
func (s *Syncer) settlePass(ctx context.Context) error {
	txs, err := s.db.ListUnsettledTransactions(s.integr.ChainID())
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return nil
	}

	settled := 0
	for _, t := range txs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ok, err := s.integr.TransactionSucceeded(ctx, t.TxHash)
		if err != nil {
			log.Printf("[settle] tx %s (%s): lookup failed: %v", t.ID, t.TxType, err)
			continue
		}
		if !ok {
			abandoned, err := s.db.RecordUnconfirmedAttempt(t.ID, s.maxAttempts)
			if err != nil {
				log.Printf("[settle] tx %s (%s): recording attempt failed: %v", t.ID, t.TxType, err)
				continue
			}
			if abandoned {
				log.Printf("[settle] tx %s (%s, hash %s) unconfirmed after %d attempts, abandoned", t.ID, t.TxType, t.TxHash, s.maxAttempts)
			}
			continue
		}

		// A confirmed publish resolves the asset's contract address so the
		// store record carries it from the moment it goes live.
		contractID := ""
		if t.TxType == database.TxTypePublishAsset {
			contractID, err = s.integr.AssetContractID(t.Code, t.Issuer)
			if err != nil {
				log.Printf("[settle] tx %s: resolving contract id for %s:%s failed: %v", t.ID, t.Code, t.Issuer, err)
				continue
			}
		}

		applied, err := s.db.SettleTransaction(t, contractID)
		if err != nil {
			log.Printf("[settle] tx %s (%s): settle failed: %v", t.ID, t.TxType, err)
			continue
		}
		if applied {
			settled++
			log.Printf("[settle] tx %s (%s, story %d) settled", t.ID, t.TxType, t.ChainStoryID)
		}
	}
	if settled > 0 {
		log.Printf("[settle] %d of %d open transactions settled", settled, len(txs))
	}
	return nil
}
