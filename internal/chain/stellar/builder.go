package stellar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"

	"github.com/TrumanStellar/Story-Creation/internal/database"
)

// Caller-visible rejections. Builders return these instead of assembling an
// envelope that could not be valid.
var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrAlreadyPublished = errors.New("asset already published")
	ErrOverClaim        = errors.New("claim exceeds author reserve")
	ErrOverSupply       = errors.New("purchase exceeds remaining supply")
)

// HorizonClient is the slice of the Horizon API this service consumes.
// *horizonclient.Client satisfies it.
type HorizonClient interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error)
	TransactionDetail(txHash string) (hProtocol.Transaction, error)
}

const (
	// Starting balance for a fresh issuer account: enough for its base
	// reserve, one data entry, and fees.
	issuerStartingBalance = "2"

	envelopeTimeoutSeconds = 300
)

// BuiltEnvelope is a fully assembled transaction, signed with every key the
// service holds. When the source account is a user's, that user's signature
// must be added out-of-band before submission.
type BuiltEnvelope struct {
	XDR      string `json:"xdr"`
	Hash     string `json:"hash"`
	RecordID string `json:"record_id"`
}

type PublishAssetParams struct {
	PublicKey      string // publishing user's account, pays the fee
	StoryID        uint64
	Code           string // <= 12 alphanumeric characters
	Name           string
	Description    string
	ImageCID       string
	MetadataCID    string // pinned metadata document, attached as account data
	Total          string // decimal units
	Price          string // decimal native price per unit
	AuthorReserved string // decimal units
}

type BuyAssetParams struct {
	PublicKey   string // buyer's account
	StoryID     uint64
	Amount      string // decimal units
	StoryAuthor string // receives the native payment
}

type ClaimReservedAssetParams struct {
	PublicKey string // author's account
	StoryID   uint64
	Amount    string // decimal units
}

type TaskRewardTransferParams struct {
	PublicKey string // task creator's account, funds the reward
	StoryID   uint64
	Amount    string // decimal units
}

// PublishAsset assembles the envelope that brings a story's NFT asset into
// existence: create the issuer account, open the admin trust line, attach
// the metadata pointer, move the full supply to the admin, and lock the
// issuer. A fresh issuer keypair is generated per asset; its secret only
// lives for the duration of this call, which is fine because the final
// operation zeroes the issuer's master weight.
func (s *Service) PublishAsset(ctx context.Context, p PublishAssetParams) (*BuiltEnvelope, error) {
	existing, err := s.db.GetAsset(s.chainID, p.StoryID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsPublished {
		return nil, ErrAlreadyPublished
	}

	totalBase, err := ToBaseUnits(p.Total)
	if err != nil {
		return nil, err
	}
	reservedBase, err := ToBaseUnits(p.AuthorReserved)
	if err != nil {
		return nil, err
	}
	if _, err := ToBaseUnits(p.Price); err != nil {
		return nil, err
	}

	issuer, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("generating issuer keypair: %w", err)
	}
	nftAsset := txnbuild.CreditAsset{Code: p.Code, Issuer: issuer.Address()}
	total := FromBaseUnits(totalBase)

	ops := []txnbuild.Operation{
		&txnbuild.CreateAccount{
			Destination: issuer.Address(),
			Amount:      issuerStartingBalance,
		},
		&txnbuild.ChangeTrust{
			Line:          txnbuild.ChangeTrustAssetWrapper{Asset: nftAsset},
			Limit:         total,
			SourceAccount: s.admin.Address(),
		},
		&txnbuild.ManageData{
			Name:          "ipfshash",
			Value:         []byte("ipfs://" + p.MetadataCID),
			SourceAccount: issuer.Address(),
		},
		&txnbuild.Payment{
			Destination:   s.admin.Address(),
			Asset:         nftAsset,
			Amount:        total,
			SourceAccount: issuer.Address(),
		},
		&txnbuild.SetOptions{
			MasterWeight:  txnbuild.NewThreshold(0),
			SourceAccount: issuer.Address(),
		},
	}

	tx, err := s.assemble(p.PublicKey, ops)
	if err != nil {
		return nil, err
	}
	tx, err = tx.Sign(s.networkPassphrase, issuer, s.admin)
	if err != nil {
		return nil, fmt.Errorf("signing envelope: %w", err)
	}

	if err := s.db.SaveAsset(&database.Asset{
		Chain:          s.chainID,
		ChainStoryID:   p.StoryID,
		Code:           p.Code,
		Issuer:         issuer.Address(),
		Name:           p.Name,
		Description:    p.Description,
		ImageCID:       p.ImageCID,
		Price:          p.Price,
		Total:          totalBase,
		AuthorReserved: reservedBase,
	}); err != nil {
		return nil, fmt.Errorf("saving asset record: %w", err)
	}

	return s.journal(tx, database.TxTypePublishAsset, p.StoryID, p.Code, issuer.Address(), totalBase)
}

// BuyAsset assembles the purchase envelope: buyer pays the story author in
// native currency, opens a trust line for the asset, and the admin delivers
// the units. Only the admin signs here; the buyer signs before submission.
func (s *Service) BuyAsset(ctx context.Context, p BuyAssetParams) (*BuiltEnvelope, error) {
	asset, err := s.db.GetPublishedAsset(s.chainID, p.StoryID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}

	amountBase, err := ToBaseUnits(p.Amount)
	if err != nil {
		return nil, err
	}
	if amountBase <= 0 || amountBase > asset.Total-asset.Sold {
		return nil, ErrOverSupply
	}
	priceBase, err := ToBaseUnits(asset.Price)
	if err != nil {
		return nil, err
	}
	// amountBase is bounded by the supply, but the total cost still has to
	// fit in an int64 for very expensive assets.
	if priceBase > 0 && amountBase > math.MaxInt64/priceBase {
		return nil, fmt.Errorf("purchase cost overflows: %s x %s", asset.Price, p.Amount)
	}

	nftAsset := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}
	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: p.StoryAuthor,
			Asset:       txnbuild.NativeAsset{},
			Amount:      FromBaseUnits(priceBase * amountBase),
		},
		&txnbuild.ChangeTrust{
			Line:          txnbuild.ChangeTrustAssetWrapper{Asset: nftAsset},
			Limit:         FromBaseUnits(asset.Total),
			SourceAccount: p.PublicKey,
		},
		&txnbuild.Payment{
			Destination:   p.PublicKey,
			Asset:         nftAsset,
			Amount:        FromBaseUnits(amountBase),
			SourceAccount: s.admin.Address(),
		},
	}

	tx, err := s.assemble(p.PublicKey, ops)
	if err != nil {
		return nil, err
	}
	tx, err = tx.Sign(s.networkPassphrase, s.admin)
	if err != nil {
		return nil, fmt.Errorf("signing envelope: %w", err)
	}

	return s.journal(tx, database.TxTypeBuyAsset, p.StoryID, asset.Code, asset.Issuer, amountBase)
}

// ClaimReservedAsset assembles the author's claim against their reserved
// allotment. A claim that would exceed the reserve is rejected before any
// envelope is built.
func (s *Service) ClaimReservedAsset(ctx context.Context, p ClaimReservedAssetParams) (*BuiltEnvelope, error) {
	asset, err := s.db.GetPublishedAsset(s.chainID, p.StoryID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}

	amountBase, err := ToBaseUnits(p.Amount)
	if err != nil {
		return nil, err
	}
	if asset.AuthorClaimed+amountBase > asset.AuthorReserved {
		return nil, ErrOverClaim
	}

	nftAsset := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}
	ops := []txnbuild.Operation{
		&txnbuild.ChangeTrust{
			Line:          txnbuild.ChangeTrustAssetWrapper{Asset: nftAsset},
			Limit:         FromBaseUnits(asset.Total),
			SourceAccount: p.PublicKey,
		},
		&txnbuild.Payment{
			Destination:   p.PublicKey,
			Asset:         nftAsset,
			Amount:        FromBaseUnits(amountBase),
			SourceAccount: s.admin.Address(),
		},
	}

	tx, err := s.assemble(p.PublicKey, ops)
	if err != nil {
		return nil, err
	}
	tx, err = tx.Sign(s.networkPassphrase, s.admin)
	if err != nil {
		return nil, fmt.Errorf("signing envelope: %w", err)
	}

	return s.journal(tx, database.TxTypeClaimAsset, p.StoryID, asset.Code, asset.Issuer, amountBase)
}

// TaskRewardTransfer assembles the payment that escrows a task's reward
// with the custodial account. The envelope carries no service signature:
// the funding user is both source and payer.
func (s *Service) TaskRewardTransfer(ctx context.Context, p TaskRewardTransferParams) (*BuiltEnvelope, error) {
	asset, err := s.db.GetPublishedAsset(s.chainID, p.StoryID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}

	amountBase, err := ToBaseUnits(p.Amount)
	if err != nil {
		return nil, err
	}

	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: s.admin.Address(),
			Asset:       txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer},
			Amount:      FromBaseUnits(amountBase),
		},
	}

	tx, err := s.assemble(p.PublicKey, ops)
	if err != nil {
		return nil, err
	}

	return s.journal(tx, database.TxTypeRewardTransfer, p.StoryID, asset.Code, asset.Issuer, amountBase)
}

// PayReward pays amountBase units of the story's NFT asset from the
// custodial account to destination and submits immediately. The journal
// record is written before submission so the settlement poller can track
// the hash even if this process dies mid-flight.
func (s *Service) PayReward(ctx context.Context, storyID uint64, destination string, amountBase int64) (string, error) {
	asset, err := s.db.GetPublishedAsset(s.chainID, storyID)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", ErrAssetNotFound
	}

	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: destination,
			Asset:       txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer},
			Amount:      FromBaseUnits(amountBase),
		},
	}

	tx, err := s.assemble(s.admin.Address(), ops)
	if err != nil {
		return "", err
	}
	tx, err = tx.Sign(s.networkPassphrase, s.admin)
	if err != nil {
		return "", fmt.Errorf("signing payout: %w", err)
	}

	env, err := s.journal(tx, database.TxTypeRewardPayout, storyID, asset.Code, asset.Issuer, amountBase)
	if err != nil {
		return "", err
	}

	if _, err := s.horizon.SubmitTransaction(tx); err != nil {
		// The journal record stays; the poller will keep checking the hash
		// until the attempt cap abandons it. Resubmitting this envelope is
		// not an option once the sequence number is burned.
		return "", fmt.Errorf("submitting payout: %w", err)
	}
	log.Printf("[stellar] reward payout submitted: story %d -> %s, %s units, hash %s",
		storyID, destination, FromBaseUnits(amountBase), env.Hash)
	return env.Hash, nil
}

// assemble loads the source account's sequence number and builds the
// unsigned envelope with the standard fee and timeout.
func (s *Service) assemble(sourceAccount string, ops []txnbuild.Operation) (*txnbuild.Transaction, error) {
	account, err := s.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: sourceAccount})
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", sourceAccount, err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(envelopeTimeoutSeconds),
		},
		Operations: ops,
	})
	if err != nil {
		return nil, fmt.Errorf("building transaction: %w", err)
	}
	return tx, nil
}

// journal persists the transaction record and renders the envelope. Every
// built envelope gets a record before it is returned, so settlement has
// something to reconcile against even if the caller never reports back.
func (s *Service) journal(tx *txnbuild.Transaction, txType string, storyID uint64, code, issuer string, amountBase int64) (*BuiltEnvelope, error) {
	hash, err := tx.HashHex(s.networkPassphrase)
	if err != nil {
		return nil, fmt.Errorf("hashing envelope: %w", err)
	}
	xdrStr, err := tx.Base64()
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	record := &database.Transaction{
		ID:           uuid.NewString(),
		Chain:        s.chainID,
		TxType:       txType,
		ChainStoryID: storyID,
		Code:         code,
		Issuer:       issuer,
		Amount:       amountBase,
		TxHash:       hash,
	}
	if err := s.db.CreateTransaction(record); err != nil {
		return nil, fmt.Errorf("journaling transaction: %w", err)
	}

	return &BuiltEnvelope{XDR: xdrStr, Hash: hash, RecordID: record.ID}, nil
}
