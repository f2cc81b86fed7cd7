package database

import "time"

// Task status values, mapped 1:1 from the contract's status strings.
const (
	TaskStatusTodo      = "todo"
	TaskStatusDone      = "done"
	TaskStatusCancelled = "cancelled"
)

// Submission status values.
const (
	SubmitStatusPending   = "pending"
	SubmitStatusApproved  = "approved"
	SubmitStatusRejected  = "rejected"
	SubmitStatusWithdrawn = "withdrawn"
)

// Transaction kinds recorded in the journal.
const (
	TxTypePublishAsset   = "publish_asset"
	TxTypeBuyAsset       = "buy_asset"
	TxTypeClaimAsset     = "claim_asset"
	TxTypeRewardPayout   = "reward_payout"
	TxTypeRewardTransfer = "reward_transfer"
)

// Story mirrors one on-chain story record.
type Story struct {
	Chain        string    `json:"chain"`
	ChainStoryID uint64    `json:"chain_story_id"`
	OnChainAddr  string    `json:"on_chain_addr"`
	Author       string    `json:"author"`
	ContentHash  string    `json:"content_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task mirrors one on-chain story task. RewardAmount is in base units.
type Task struct {
	Chain        string    `json:"chain"`
	ChainStoryID uint64    `json:"chain_story_id"`
	ChainTaskID  uint64    `json:"chain_task_id"`
	Creator      string    `json:"creator"`
	NftAddress   string    `json:"nft_address"`
	RewardAmount int64     `json:"reward_amount"`
	ContentHash  string    `json:"content_hash"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Submit mirrors one on-chain task submission.
type Submit struct {
	Chain         string    `json:"chain"`
	ChainStoryID  uint64    `json:"chain_story_id"`
	ChainTaskID   uint64    `json:"chain_task_id"`
	ChainSubmitID uint64    `json:"chain_submit_id"`
	Creator       string    `json:"creator"`
	ContentHash   string    `json:"content_hash"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Asset is the local record of a story's NFT sale. Quantity fields (total,
// author_reserved, sold, author_claimed) are in base units.
type Asset struct {
	Chain          string    `json:"chain"`
	ChainStoryID   uint64    `json:"chain_story_id"`
	Code           string    `json:"code"`
	Issuer         string    `json:"issuer"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ImageCID       string    `json:"image_cid"`
	Price          string    `json:"price"`
	Total          int64     `json:"total"`
	AuthorReserved int64     `json:"author_reserved"`
	Sold           int64     `json:"sold"`
	AuthorClaimed  int64     `json:"author_claimed"`
	ContractID     string    `json:"contract_id"`
	IsPublished    bool      `json:"is_published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is one journaled ledger submission awaiting settlement.
// A record is settled at most once; retries past the attempt cap flip it to
// abandoned instead. A hash is never resubmitted: retrying an operation
// means building a fresh envelope and a fresh record.
type Transaction struct {
	ID           string    `json:"id"`
	Chain        string    `json:"chain"`
	TxType       string    `json:"tx_type"`
	ChainStoryID uint64    `json:"chain_story_id"`
	Code         string    `json:"code"`
	Issuer       string    `json:"issuer"`
	Amount       int64     `json:"amount"`
	TxHash       string    `json:"tx_hash"`
	Settled      bool      `json:"settled"`
	Abandoned    bool      `json:"abandoned"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
