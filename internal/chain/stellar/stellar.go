// Package stellar implements the chain integration for the Stellar network:
// contract-storage snapshots via Soroban RPC, asset transaction assembly
// via Horizon, and signature verification.
package stellar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/config"
	"github.com/TrumanStellar/Story-Creation/internal/database"
)

const (
	chainID   = "stellar"
	chainName = "Stellar"
)

type Service struct {
	chainID           string
	name              string
	enabled           bool
	factoryAddress    string
	networkPassphrase string

	admin       *keypair.Full
	horizon     HorizonClient
	entries     ledgerEntryFetcher
	instanceKey string
	db          *database.DB
}

func New(cfg *config.Config, db *database.DB) (*Service, error) {
	s := &Service{
		chainID:           chainID,
		name:              chainName,
		enabled:           cfg.StellarEnable,
		factoryAddress:    cfg.FactoryAddress,
		networkPassphrase: cfg.NetworkPassphrase(),
		db:                db,
	}
	if !s.enabled {
		return s, nil
	}

	admin, err := keypair.ParseFull(cfg.AssetAdminSecret)
	if err != nil {
		return nil, fmt.Errorf("parsing asset admin key: %w", err)
	}
	s.admin = admin

	instanceKey, err := contractInstanceKey(cfg.FactoryAddress)
	if err != nil {
		return nil, fmt.Errorf("building factory footprint: %w", err)
	}
	s.instanceKey = instanceKey

	s.horizon = &horizonclient.Client{
		HorizonURL: cfg.StellarHorizonURL(),
		HTTP:       &http.Client{Timeout: cfg.RPCTimeout},
	}
	s.entries = newRPCClient(cfg.StellarRPCURL(), cfg.RPCTimeout)

	return s, nil
}

func (s *Service) ChainID() string        { return s.chainID }
func (s *Service) Name() string           { return s.name }
func (s *Service) Enabled() bool          { return s.enabled }
func (s *Service) FactoryAddress() string { return s.factoryAddress }

// IsValidSignature verifies an ed25519 signature over message. The
// signature arrives the way wallets hand it to the web layer: a
// "[12,34,...]" byte-list string.
func (s *Service) IsValidSignature(account, message, signature string) (bool, error) {
	kp, err := keypair.ParseAddress(account)
	if err != nil {
		return false, fmt.Errorf("parsing account %q: %w", account, err)
	}

	sig, err := parseSignatureBytes(signature)
	if err != nil {
		return false, err
	}

	if err := kp.Verify([]byte(message), sig); err != nil {
		return false, nil
	}
	return true, nil
}

func parseSignatureBytes(signature string) ([]byte, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(signature), "["), "]")
	if trimmed == "" {
		return nil, errors.New("empty signature")
	}

	parts := strings.Split(trimmed, ",")
	sig := make([]byte, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("malformed signature byte %q: %w", p, err)
		}
		sig[i] = byte(n)
	}
	return sig, nil
}

// Snapshot reads the full factory state. Snapshots are never cached;
// every call re-fetches.
func (s *Service) Snapshot(ctx context.Context) (*chain.Snapshot, error) {
	return s.fetchSnapshot(ctx)
}

func (s *Service) GetStory(ctx context.Context, storyID uint64) (*chain.StoryRecord, error) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if rec, ok := snap.Stories[storyID]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *Service) GetTask(ctx context.Context, storyID, taskID uint64) (*chain.TaskRecord, error) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if rec, ok := snap.Tasks[chain.TaskKey{StoryID: storyID, TaskID: taskID}]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *Service) GetSubmit(ctx context.Context, storyID, taskID, submitID uint64) (*chain.SubmitRecord, error) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if rec, ok := snap.Submits[chain.SubmitKey{StoryID: storyID, TaskID: taskID, SubmitID: submitID}]; ok {
		return &rec, nil
	}
	return nil, nil
}

// TransactionSucceeded polls Horizon for a transaction's finality. A hash
// Horizon has never seen is not an error, just not confirmed yet.
func (s *Service) TransactionSucceeded(ctx context.Context, hash string) (bool, error) {
	tx, err := s.horizon.TransactionDetail(hash)
	if err != nil {
		var herr *horizonclient.Error
		if errors.As(err, &herr) && herr.Problem.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return tx.Successful, nil
}

// AssetContractID derives the Stellar Asset Contract address for an issued
// asset on the configured network.
func (s *Service) AssetContractID(code, issuer string) (string, error) {
	xdrAsset, err := txnbuild.CreditAsset{Code: code, Issuer: issuer}.ToXDR()
	if err != nil {
		return "", fmt.Errorf("converting asset: %w", err)
	}
	raw, err := xdrAsset.ContractID(s.networkPassphrase)
	if err != nil {
		return "", fmt.Errorf("deriving asset contract ID: %w", err)
	}
	return strkey.Encode(strkey.VersionByteContract, raw[:])
}
