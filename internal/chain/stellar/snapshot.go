package stellar

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
)

// Well-known keys of the story factory's instance storage.
const (
	storageStateKey = "STATE"
	registryNextSid = "next_sid"
	registryStories = "stories"
	registryTasks   = "story_task"
	registrySubmits = "task_submit"
	registrySales   = "story_nft"
)

// ledgerEntryFetcher is the slice of the Soroban RPC surface the projector
// consumes.
type ledgerEntryFetcher interface {
	getLedgerEntries(ctx context.Context, keys []string) ([]ledgerEntryResult, error)
}

// contractInstanceKey builds the base64 XDR ledger key for a contract's
// instance entry. This is the fixed footprint every snapshot fetch uses.
func contractInstanceKey(contractID string) (string, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return "", fmt.Errorf("decoding contract address %q: %w", contractID, err)
	}

	var id xdr.ContractId
	copy(id[:], raw)

	key := xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract: xdr.ScAddress{
				Type:       xdr.ScAddressTypeScAddressTypeContract,
				ContractId: &id,
			},
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance},
			Durability: xdr.ContractDataDurabilityPersistent,
		},
	}

	b, err := key.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshaling ledger key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// fetchSnapshot reads the factory contract's instance storage and projects
// it into a typed snapshot. An uninitialized contract (no entry, or no
// STATE key yet) projects to a well-formed empty snapshot.
func (s *Service) fetchSnapshot(ctx context.Context) (*chain.Snapshot, error) {
	entries, err := s.entries.getLedgerEntries(ctx, []string{s.instanceKey})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return chain.EmptySnapshot(), nil
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(entries[0].XDR, &data); err != nil {
		return nil, fmt.Errorf("decoding contract data entry: %w", err)
	}
	if data.Type != xdr.LedgerEntryTypeContractData || data.ContractData == nil {
		return nil, fmt.Errorf("unexpected ledger entry type %v", data.Type)
	}

	val := data.ContractData.Val
	if val.Type != xdr.ScValTypeScvContractInstance || val.Instance == nil || val.Instance.Storage == nil {
		return chain.EmptySnapshot(), nil
	}

	for _, entry := range *val.Instance.Storage {
		if name, ok := DecodeVal(entry.Key).Text(); ok && name == storageStateKey {
			return projectSnapshot(DecodeVal(entry.Val)), nil
		}
	}
	return chain.EmptySnapshot(), nil
}

// projectSnapshot walks the decoded STATE map and assembles typed records.
// An entry missing required sub-fields fails that entry alone: it is
// logged and skipped, and the rest of the projection proceeds.
func projectSnapshot(state Value) *chain.Snapshot {
	snap := chain.EmptySnapshot()

	for _, entry := range state.Map {
		name, ok := entry.Key.Text()
		if !ok {
			log.Printf("[projector] skipping registry with unsupported key (%s)", entry.Key.Tag)
			continue
		}

		switch name {
		case registryNextSid:
			if n, ok := entry.Val.Uint(); ok {
				snap.NextStoryID = n
			}

		case registryStories:
			for _, e := range entry.Val.Map {
				id, ok := e.Key.Uint()
				if !ok {
					log.Printf("[projector] stories: skipping entry with non-numeric key")
					continue
				}
				rec, err := projectStory(id, e.Val)
				if err != nil {
					log.Printf("[projector] story %d: %v", id, err)
					continue
				}
				snap.Stories[id] = rec
			}

		case registryTasks:
			for _, e := range entry.Val.Map {
				key, err := parseTaskKey(e.Key)
				if err != nil {
					log.Printf("[projector] story_task: %v", err)
					continue
				}
				rec, err := projectTask(key.TaskID, e.Val)
				if err != nil {
					log.Printf("[projector] task %d,%d: %v", key.StoryID, key.TaskID, err)
					continue
				}
				snap.Tasks[key] = rec
			}

		case registrySubmits:
			for _, e := range entry.Val.Map {
				key, err := parseSubmitKey(e.Key)
				if err != nil {
					log.Printf("[projector] task_submit: %v", err)
					continue
				}
				rec, err := projectSubmit(key.SubmitID, e.Val)
				if err != nil {
					log.Printf("[projector] submit %d,%d,%d: %v", key.StoryID, key.TaskID, key.SubmitID, err)
					continue
				}
				snap.Submits[key] = rec
			}

		case registrySales:
			for _, e := range entry.Val.Map {
				id, ok := e.Key.Uint()
				if !ok {
					log.Printf("[projector] story_nft: skipping entry with non-numeric key")
					continue
				}
				snap.Sales[id] = projectSale(e.Val)
			}
		}
	}

	if snap.NextStoryID == 0 {
		snap.NextStoryID = 1
	}
	return snap
}

func projectStory(id uint64, v Value) (chain.StoryRecord, error) {
	author, ok := fieldText(v, "author")
	if !ok {
		return chain.StoryRecord{}, fmt.Errorf("missing author")
	}
	cid, ok := fieldText(v, "cid")
	if !ok {
		return chain.StoryRecord{}, fmt.Errorf("missing cid")
	}

	rec := chain.StoryRecord{
		ID:          id,
		Author:      author,
		ContentHash: cid,
		NextTaskID:  1,
	}
	if n, ok := fieldUint(v, "next_task_id"); ok {
		rec.NextTaskID = n
	}
	return rec, nil
}

func projectTask(id uint64, v Value) (chain.TaskRecord, error) {
	creator, ok := fieldText(v, "creator")
	if !ok {
		return chain.TaskRecord{}, fmt.Errorf("missing creator")
	}
	status, ok := fieldText(v, "status")
	if !ok {
		return chain.TaskRecord{}, fmt.Errorf("missing status")
	}

	rec := chain.TaskRecord{
		ID:           id,
		Creator:      creator,
		Status:       status,
		NextSubmitID: 1,
	}
	rec.NftAddress, _ = fieldText(v, "nft_address")
	rec.ContentHash, _ = fieldText(v, "cid")
	if n, ok := fieldInt(v, "reward_nfts"); ok {
		rec.RewardAmount = n
	}
	if n, ok := fieldUint(v, "next_submit_id"); ok {
		rec.NextSubmitID = n
	}
	return rec, nil
}

func projectSubmit(id uint64, v Value) (chain.SubmitRecord, error) {
	creator, ok := fieldText(v, "creator")
	if !ok {
		return chain.SubmitRecord{}, fmt.Errorf("missing creator")
	}
	status, ok := fieldText(v, "status")
	if !ok {
		return chain.SubmitRecord{}, fmt.Errorf("missing status")
	}

	rec := chain.SubmitRecord{
		ID:      id,
		Creator: creator,
		Status:  status,
	}
	rec.ContentHash, _ = fieldText(v, "cid")
	return rec, nil
}

// projectSale has no required fields: sale registries are written by the
// contract in one piece, and counters default to zero.
func projectSale(v Value) chain.SaleRecord {
	rec := chain.SaleRecord{}
	rec.AssetCode, _ = fieldText(v, "code")
	rec.Issuer, _ = fieldText(v, "issuer")
	rec.Name, _ = fieldText(v, "name")
	rec.URIPrefix, _ = fieldText(v, "uri_prefix")
	rec.Price, _ = fieldText(v, "price")
	if rec.Price == "" {
		if n, ok := fieldUint(v, "price"); ok {
			rec.Price = strconv.FormatUint(n, 10)
		}
	}
	rec.Total, _ = fieldInt(v, "total")
	rec.Sold, _ = fieldInt(v, "sold")
	rec.AuthorReserved, _ = fieldInt(v, "author_reserve")
	rec.AuthorClaimed, _ = fieldInt(v, "author_claimed")
	return rec
}

func fieldText(v Value, name string) (string, bool) {
	f, ok := v.GetSym(name)
	if !ok {
		return "", false
	}
	return f.Text()
}

func fieldUint(v Value, name string) (uint64, bool) {
	f, ok := v.GetSym(name)
	if !ok {
		return 0, false
	}
	return f.Uint()
}

func fieldInt(v Value, name string) (int64, bool) {
	f, ok := v.GetSym(name)
	if !ok {
		return 0, false
	}
	return f.Int()
}

// Task and submit registries are keyed by "storyId,taskId" and
// "storyId,taskId,submitId" strings on chain.

func parseTaskKey(key Value) (chain.TaskKey, error) {
	parts, err := splitKey(key, 2)
	if err != nil {
		return chain.TaskKey{}, err
	}
	return chain.TaskKey{StoryID: parts[0], TaskID: parts[1]}, nil
}

func parseSubmitKey(key Value) (chain.SubmitKey, error) {
	parts, err := splitKey(key, 3)
	if err != nil {
		return chain.SubmitKey{}, err
	}
	return chain.SubmitKey{StoryID: parts[0], TaskID: parts[1], SubmitID: parts[2]}, nil
}

func splitKey(key Value, want int) ([]uint64, error) {
	s, ok := key.Text()
	if !ok {
		return nil, fmt.Errorf("skipping entry with non-text key")
	}
	fields := strings.Split(s, ",")
	if len(fields) != want {
		return nil, fmt.Errorf("malformed key %q", s)
	}
	parts := make([]uint64, want)
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed key %q: %w", s, err)
		}
		parts[i] = n
	}
	return parts, nil
}
