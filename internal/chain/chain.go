// Package chain defines the contract a ledger integration must satisfy and
// the snapshot model the sync engine reconciles against. Integrations are
// registered at startup and selected by chain identifier.
package chain

import (
	"context"
	"sort"
)

// On-chain status strings, as written by the story factory contract.
const (
	RawTaskTodo      = "TODO"
	RawTaskDone      = "DONE"
	RawTaskCancelled = "CANCELLED"

	RawSubmitPending   = "PENDING"
	RawSubmitApproved  = "APPROVED"
	RawSubmitRejected  = "REJECTED"
	RawSubmitWithdrawn = "WITHDRAWED"
)

// TaskKey identifies a task within a chain's story registry.
type TaskKey struct {
	StoryID uint64
	TaskID  uint64
}

// SubmitKey identifies a submission within a task.
type SubmitKey struct {
	StoryID  uint64
	TaskID   uint64
	SubmitID uint64
}

// StoryRecord is one story as read from the chain.
type StoryRecord struct {
	ID          uint64
	Author      string
	ContentHash string
	NextTaskID  uint64
}

// TaskRecord is one story task as read from the chain. RewardAmount is in
// base units; Status is one of the RawTask* strings.
type TaskRecord struct {
	ID           uint64
	Creator      string
	NftAddress   string
	RewardAmount int64
	ContentHash  string
	Status       string
	NextSubmitID uint64
}

// SubmitRecord is one task submission as read from the chain.
type SubmitRecord struct {
	ID          uint64
	Creator     string
	ContentHash string
	Status      string
}

// SaleRecord is one story's NFT sale as read from the chain. Quantity
// fields are in base units.
type SaleRecord struct {
	AssetCode      string
	Issuer         string
	Name           string
	URIPrefix      string
	Price          string
	Total          int64
	Sold           int64
	AuthorReserved int64
	AuthorClaimed  int64
}

// Snapshot is one point-in-time read of every registry this service
// mirrors. It is owned by a single sync pass and never cached: staleness
// is avoided by re-fetching on every pass.
type Snapshot struct {
	NextStoryID uint64
	Stories     map[uint64]StoryRecord
	Tasks       map[TaskKey]TaskRecord
	Submits     map[SubmitKey]SubmitRecord
	Sales       map[uint64]SaleRecord
}

// EmptySnapshot is what an uninitialized contract projects to.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		NextStoryID: 1,
		Stories:     map[uint64]StoryRecord{},
		Tasks:       map[TaskKey]TaskRecord{},
		Submits:     map[SubmitKey]SubmitRecord{},
		Sales:       map[uint64]SaleRecord{},
	}
}

// Integration is one ledger network plugged into the platform. Lookup
// methods return nil (not an error) when the record does not exist.
type Integration interface {
	// ChainID is the stable chain identifier persisted records are keyed by.
	ChainID() string
	// Name is the human-readable network name.
	Name() string
	Enabled() bool
	FactoryAddress() string

	// IsValidSignature reports whether signature was produced by account
	// over message.
	IsValidSignature(account, message, signature string) (bool, error)

	// Snapshot reads the full on-chain state.
	Snapshot(ctx context.Context) (*Snapshot, error)

	GetStory(ctx context.Context, storyID uint64) (*StoryRecord, error)
	GetTask(ctx context.Context, storyID, taskID uint64) (*TaskRecord, error)
	GetSubmit(ctx context.Context, storyID, taskID, submitID uint64) (*SubmitRecord, error)

	// PayReward sends amountBase units of the story's NFT asset from the
	// custodial account to destination and journals the submission.
	// Returns the transaction hash.
	PayReward(ctx context.Context, storyID uint64, destination string, amountBase int64) (string, error)

	// TransactionSucceeded reports whether the transaction with the given
	// hash reached the ledger successfully. An unknown hash is (false, nil),
	// not an error.
	TransactionSucceeded(ctx context.Context, hash string) (bool, error)

	// AssetContractID derives the on-chain contract address of an issued
	// asset, recorded locally once its publication settles.
	AssetContractID(code, issuer string) (string, error)
}

// Registry holds the enabled integrations, keyed by chain identifier.
type Registry struct {
	chains map[string]Integration
}

func NewRegistry(impls ...Integration) *Registry {
	r := &Registry{chains: make(map[string]Integration)}
	for _, integr := range impls {
		if integr.Enabled() {
			r.chains[integr.ChainID()] = integr
		}
	}
	return r
}

func (r *Registry) Get(chainID string) (Integration, bool) {
	integr, ok := r.chains[chainID]
	return integr, ok
}

func (r *Registry) List() []Integration {
	var out []Integration
	for _, integr := range r.chains {
		out = append(out, integr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID() < out[j].ChainID() })
	return out
}
