package syncer

import (
	"log"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/database"
)

// mapTaskStatus maps the contract's task status strings 1:1 onto local
// values. Unknown strings fail the mapping instead of defaulting.
func mapTaskStatus(raw string) (string, bool) {
	switch raw {
	case chain.RawTaskTodo:
		return database.TaskStatusTodo, true
	case chain.RawTaskDone:
		return database.TaskStatusDone, true
	case chain.RawTaskCancelled:
		return database.TaskStatusCancelled, true
	}
	return "", false
}

func mapSubmitStatus(raw string) (string, bool) {
	switch raw {
	case chain.RawSubmitPending:
		return database.SubmitStatusPending, true
	case chain.RawSubmitApproved:
		return database.SubmitStatusApproved, true
	case chain.RawSubmitRejected:
		return database.SubmitStatusRejected, true
	case chain.RawSubmitWithdrawn:
		return database.SubmitStatusWithdrawn, true
	}
	return "", false
}

// Payout is a token transfer that must be executed before its paired
// status update is persisted.
type Payout struct {
	StoryID     uint64
	Destination string
	AmountBase  int64
}

type StoryUpdate struct {
	StoryID     uint64
	ContentHash string
}

type TaskUpdate struct {
	StoryID        uint64
	TaskID         uint64
	ContentHash    string
	Status         string
	ExpectedStatus string // compare-and-set guard: the status we diffed against
}

type SubmitUpdate struct {
	StoryID        uint64
	TaskID         uint64
	SubmitID       uint64
	Status         string
	ExpectedStatus string
}

// TaskOp is one task mutation. When Refund is set it is executed before
// Update; Create and Update are mutually exclusive.
type TaskOp struct {
	Refund *Payout
	Create *database.Task
	Update *TaskUpdate
}

// SubmitOp mirrors TaskOp for submissions; Reward pays the submission's
// creator the owning task's reward.
type SubmitOp struct {
	Reward *Payout
	Create *database.Submit
	Update *SubmitUpdate
}

type SaleUpdate struct {
	StoryID       uint64
	Sold          int64
	AuthorClaimed int64
}

// Plan is the minimal set of local mutations that brings the store in line
// with one snapshot. Applying the plan and reconciling again against the
// same snapshot yields an empty plan.
type Plan struct {
	StoriesToCreate []*database.Story
	StoriesToUpdate []StoryUpdate
	TaskOps         []TaskOp
	SubmitOps       []SubmitOp
	SalesToCreate   []*database.Asset
	SalesToUpdate   []SaleUpdate
}

func (p *Plan) Empty() bool {
	return len(p.StoriesToCreate) == 0 && len(p.StoriesToUpdate) == 0 &&
		len(p.TaskOps) == 0 && len(p.SubmitOps) == 0 &&
		len(p.SalesToCreate) == 0 && len(p.SalesToUpdate) == 0
}

// Reconcile diffs a snapshot against the locally persisted records and
// computes the plan. It is a pure computation: no I/O, no store writes.
// Records observed on chain but unchanged locally produce nothing; local
// records are never deleted (chain state is monotonic from here).
func Reconcile(chainID, factoryAddr string, snap *chain.Snapshot,
	stories []*database.Story, tasks []*database.Task,
	submits []*database.Submit, assets []*database.Asset) *Plan {

	storyIdx := make(map[uint64]*database.Story, len(stories))
	for _, s := range stories {
		storyIdx[s.ChainStoryID] = s
	}
	taskIdx := make(map[chain.TaskKey]*database.Task, len(tasks))
	for _, t := range tasks {
		taskIdx[chain.TaskKey{StoryID: t.ChainStoryID, TaskID: t.ChainTaskID}] = t
	}
	submitIdx := make(map[chain.SubmitKey]*database.Submit, len(submits))
	for _, s := range submits {
		submitIdx[chain.SubmitKey{StoryID: s.ChainStoryID, TaskID: s.ChainTaskID, SubmitID: s.ChainSubmitID}] = s
	}
	assetIdx := make(map[uint64]*database.Asset, len(assets))
	for _, a := range assets {
		assetIdx[a.ChainStoryID] = a
	}

	plan := &Plan{}

	for storyID := uint64(1); storyID < snap.NextStoryID; storyID++ {
		rec, ok := snap.Stories[storyID]
		if !ok {
			continue
		}

		if local := storyIdx[storyID]; local == nil {
			plan.StoriesToCreate = append(plan.StoriesToCreate, &database.Story{
				Chain:        chainID,
				ChainStoryID: storyID,
				OnChainAddr:  factoryAddr,
				Author:       rec.Author,
				ContentHash:  rec.ContentHash,
			})
		} else if local.ContentHash != rec.ContentHash {
			// The content hash is the only story field that moves.
			plan.StoriesToUpdate = append(plan.StoriesToUpdate, StoryUpdate{
				StoryID:     storyID,
				ContentHash: rec.ContentHash,
			})
		}

		for taskID := uint64(1); taskID < rec.NextTaskID; taskID++ {
			key := chain.TaskKey{StoryID: storyID, TaskID: taskID}
			trec, ok := snap.Tasks[key]
			if !ok {
				continue
			}
			status, ok := mapTaskStatus(trec.Status)
			if !ok {
				log.Printf("[reconcile] task %d,%d: unknown status %q", storyID, taskID, trec.Status)
				continue
			}

			local := taskIdx[key]
			if local == nil {
				plan.TaskOps = append(plan.TaskOps, TaskOp{Create: &database.Task{
					Chain:        chainID,
					ChainStoryID: storyID,
					ChainTaskID:  taskID,
					Creator:      trec.Creator,
					NftAddress:   trec.NftAddress,
					RewardAmount: trec.RewardAmount,
					ContentHash:  trec.ContentHash,
					Status:       status,
				}})
			} else if local.Status != status || local.ContentHash != trec.ContentHash {
				op := TaskOp{Update: &TaskUpdate{
					StoryID:        storyID,
					TaskID:         taskID,
					ContentHash:    trec.ContentHash,
					Status:         status,
					ExpectedStatus: local.Status,
				}}
				// A pending task that got cancelled returns its escrowed
				// reward to the creator, before the status flip lands.
				if local.Status == database.TaskStatusTodo &&
					status == database.TaskStatusCancelled &&
					trec.RewardAmount != 0 {
					op.Refund = &Payout{
						StoryID:     storyID,
						Destination: trec.Creator,
						AmountBase:  trec.RewardAmount,
					}
				}
				plan.TaskOps = append(plan.TaskOps, op)
			}

			for submitID := uint64(1); submitID < trec.NextSubmitID; submitID++ {
				skey := chain.SubmitKey{StoryID: storyID, TaskID: taskID, SubmitID: submitID}
				srec, ok := snap.Submits[skey]
				if !ok {
					continue
				}
				sstatus, ok := mapSubmitStatus(srec.Status)
				if !ok {
					log.Printf("[reconcile] submit %d,%d,%d: unknown status %q", storyID, taskID, submitID, srec.Status)
					continue
				}

				localSub := submitIdx[skey]
				if localSub == nil {
					plan.SubmitOps = append(plan.SubmitOps, SubmitOp{Create: &database.Submit{
						Chain:         chainID,
						ChainStoryID:  storyID,
						ChainTaskID:   taskID,
						ChainSubmitID: submitID,
						Creator:       srec.Creator,
						ContentHash:   srec.ContentHash,
						Status:        sstatus,
					}})
				} else if localSub.Status != sstatus {
					op := SubmitOp{Update: &SubmitUpdate{
						StoryID:        storyID,
						TaskID:         taskID,
						SubmitID:       submitID,
						Status:         sstatus,
						ExpectedStatus: localSub.Status,
					}}
					// An approved submission earns the task's reward.
					if localSub.Status == database.SubmitStatusPending &&
						sstatus == database.SubmitStatusApproved &&
						trec.RewardAmount != 0 {
						op.Reward = &Payout{
							StoryID:     storyID,
							Destination: srec.Creator,
							AmountBase:  trec.RewardAmount,
						}
					}
					plan.SubmitOps = append(plan.SubmitOps, op)
				}
			}
		}

		if sale, ok := snap.Sales[storyID]; ok {
			if local := assetIdx[storyID]; local == nil {
				plan.SalesToCreate = append(plan.SalesToCreate, &database.Asset{
					Chain:          chainID,
					ChainStoryID:   storyID,
					Code:           sale.AssetCode,
					Issuer:         sale.Issuer,
					Name:           sale.Name,
					ImageCID:       sale.URIPrefix,
					Price:          sale.Price,
					Total:          sale.Total,
					AuthorReserved: sale.AuthorReserved,
					Sold:           sale.Sold,
					AuthorClaimed:  sale.AuthorClaimed,
					IsPublished:    true,
				})
			} else if local.Sold != sale.Sold || local.AuthorClaimed != sale.AuthorClaimed {
				// Everything else about a sale is immutable once published.
				plan.SalesToUpdate = append(plan.SalesToUpdate, SaleUpdate{
					StoryID:       storyID,
					Sold:          sale.Sold,
					AuthorClaimed: sale.AuthorClaimed,
				})
			}
		}
	}

	return plan
}
