// Package syncer keeps the local store converged with on-chain state. It
// runs two independent loops: a state sync that snapshots the contract and
// applies a reconciliation plan, and a settlement poller that confirms
// journaled transactions and applies their side effects exactly once.
package syncer

import (
	"context"
	"log"
	"time"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/database"
)

type Syncer struct {
	db             *database.DB
	integr         chain.Integration
	syncInterval   time.Duration
	settleInterval time.Duration
	maxAttempts    int
}

func NewSyncer(db *database.DB, integr chain.Integration, syncInterval, settleInterval time.Duration, maxAttempts int) *Syncer {
	return &Syncer{
		db:             db,
		integr:         integr,
		syncInterval:   syncInterval,
		settleInterval: settleInterval,
		maxAttempts:    maxAttempts,
	}
}

// RunStateSync runs the snapshot/reconcile/apply loop until ctx is
// cancelled. A failed pass is logged and the next tick retries from
// scratch; passes never carry state across ticks.
func (s *Syncer) RunStateSync(ctx context.Context) {
	log.Printf("[sync] %s state sync every %v", s.integr.ChainID(), s.syncInterval)
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		if err := s.syncPass(ctx); err != nil {
			log.Printf("[sync] %s pass failed: %v", s.integr.ChainID(), err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[sync] %s state sync stopped", s.integr.ChainID())
			return
		case <-ticker.C:
		}
	}
}

func (s *Syncer) syncPass(ctx context.Context) error {
	chainID := s.integr.ChainID()

	snap, err := s.integr.Snapshot(ctx)
	if err != nil {
		return err
	}

	stories, err := s.db.ListStories(chainID)
	if err != nil {
		return err
	}
	tasks, err := s.db.ListTasks(chainID)
	if err != nil {
		return err
	}
	submits, err := s.db.ListSubmits(chainID)
	if err != nil {
		return err
	}
	assets, err := s.db.ListAssets(chainID)
	if err != nil {
		return err
	}

	plan := Reconcile(chainID, s.integr.FactoryAddress(), snap, stories, tasks, submits, assets)
	if plan.Empty() {
		log.Printf("[sync] %s: %d stories on chain, store up to date", chainID, len(snap.Stories))
		return nil
	}
	log.Printf("[sync] %s: %d stories on chain, applying %d/%d/%d/%d story/task/submit/sale ops",
		chainID, len(snap.Stories),
		len(plan.StoriesToCreate)+len(plan.StoriesToUpdate),
		len(plan.TaskOps), len(plan.SubmitOps),
		len(plan.SalesToCreate)+len(plan.SalesToUpdate))
	return s.applyPlan(ctx, plan)
}

// applyPlan persists a reconciliation plan. Status updates are guarded
// compare-and-set writes, and any refund or reward is submitted before its
// paired status update: if the payout submission fails, the update is
// skipped so the next pass retries both.
func (s *Syncer) applyPlan(ctx context.Context, plan *Plan) error {
	chainID := s.integr.ChainID()

	for _, st := range plan.StoriesToCreate {
		if err := s.db.CreateStory(st); err != nil {
			return err
		}
	}
	for _, u := range plan.StoriesToUpdate {
		if err := s.db.UpdateStoryContentHash(chainID, u.StoryID, u.ContentHash); err != nil {
			return err
		}
	}

	for _, op := range plan.TaskOps {
		if op.Create != nil {
			if err := s.db.CreateTask(op.Create); err != nil {
				return err
			}
			continue
		}
		u := op.Update
		if op.Refund != nil {
			hash, err := s.integr.PayReward(ctx, op.Refund.StoryID, op.Refund.Destination, op.Refund.AmountBase)
			if err != nil {
				log.Printf("[sync] task %d,%d refund failed, deferring status update: %v", u.StoryID, u.TaskID, err)
				continue
			}
			log.Printf("[sync] task %d,%d refunded %d to %s (tx %s)", u.StoryID, u.TaskID, op.Refund.AmountBase, op.Refund.Destination, hash)
		}
		applied, err := s.db.UpdateTaskStatus(chainID, u.StoryID, u.TaskID, u.ContentHash, u.Status, u.ExpectedStatus)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("[sync] task %d,%d moved off %q concurrently, skipping", u.StoryID, u.TaskID, u.ExpectedStatus)
		}
	}

	for _, op := range plan.SubmitOps {
		if op.Create != nil {
			if err := s.db.CreateSubmit(op.Create); err != nil {
				return err
			}
			continue
		}
		u := op.Update
		if op.Reward != nil {
			hash, err := s.integr.PayReward(ctx, op.Reward.StoryID, op.Reward.Destination, op.Reward.AmountBase)
			if err != nil {
				log.Printf("[sync] submit %d,%d,%d reward failed, deferring status update: %v", u.StoryID, u.TaskID, u.SubmitID, err)
				continue
			}
			log.Printf("[sync] submit %d,%d,%d rewarded %d to %s (tx %s)", u.StoryID, u.TaskID, u.SubmitID, op.Reward.AmountBase, op.Reward.Destination, hash)
		}
		applied, err := s.db.UpdateSubmitStatus(chainID, u.StoryID, u.TaskID, u.SubmitID, u.Status, u.ExpectedStatus)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("[sync] submit %d,%d,%d moved off %q concurrently, skipping", u.StoryID, u.TaskID, u.SubmitID, u.ExpectedStatus)
		}
	}

	for _, a := range plan.SalesToCreate {
		if err := s.db.SaveAsset(a); err != nil {
			return err
		}
	}
	for _, u := range plan.SalesToUpdate {
		if err := s.db.UpdateAssetCounters(chainID, u.StoryID, u.Sold, u.AuthorClaimed); err != nil {
			return err
		}
	}
	return nil
}
