package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Two sync loops share this handle; serialize writes at the pool level.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	statements := strings.Split(schemaSQL, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

// --- Stories ---

func (db *DB) CreateStory(s *Story) error {
	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO stories
		(chain, chain_story_id, on_chain_addr, author, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.Chain, s.ChainStoryID, s.OnChainAddr, s.Author, s.ContentHash, now, now)
	return err
}

func (db *DB) UpdateStoryContentHash(chain string, storyID uint64, contentHash string) error {
	_, err := db.conn.Exec(`
		UPDATE stories SET content_hash = ?, updated_at = ?
		WHERE chain = ? AND chain_story_id = ?
	`, contentHash, time.Now(), chain, storyID)
	return err
}

func (db *DB) GetStory(chain string, storyID uint64) (*Story, error) {
	row := db.conn.QueryRow(`
		SELECT chain, chain_story_id, on_chain_addr, author, content_hash, created_at, updated_at
		FROM stories WHERE chain = ? AND chain_story_id = ?
	`, chain, storyID)

	s := &Story{}
	err := row.Scan(&s.Chain, &s.ChainStoryID, &s.OnChainAddr, &s.Author, &s.ContentHash, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) ListStories(chain string) ([]*Story, error) {
	rows, err := db.conn.Query(`
		SELECT chain, chain_story_id, on_chain_addr, author, content_hash, created_at, updated_at
		FROM stories WHERE chain = ? ORDER BY chain_story_id
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*Story
	for rows.Next() {
		s := &Story{}
		if err := rows.Scan(&s.Chain, &s.ChainStoryID, &s.OnChainAddr, &s.Author, &s.ContentHash, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// --- Tasks ---

func (db *DB) CreateTask(t *Task) error {
	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO tasks
		(chain, chain_story_id, chain_task_id, creator, nft_address, reward_amount, content_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Chain, t.ChainStoryID, t.ChainTaskID, t.Creator, t.NftAddress, t.RewardAmount, t.ContentHash, t.Status, now, now)
	return err
}

// UpdateTaskStatus writes the new content hash and status only if the row
// still holds expectedStatus. Returns false when another pass got there
// first, so a concurrent loop cannot double-apply a transition.
func (db *DB) UpdateTaskStatus(chain string, storyID, taskID uint64, contentHash, status, expectedStatus string) (bool, error) {
	res, err := db.conn.Exec(`
		UPDATE tasks SET content_hash = ?, status = ?, updated_at = ?
		WHERE chain = ? AND chain_story_id = ? AND chain_task_id = ? AND status = ?
	`, contentHash, status, time.Now(), chain, storyID, taskID, expectedStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) GetTask(chain string, storyID, taskID uint64) (*Task, error) {
	row := db.conn.QueryRow(`
		SELECT chain, chain_story_id, chain_task_id, creator, nft_address, reward_amount, content_hash, status, created_at, updated_at
		FROM tasks WHERE chain = ? AND chain_story_id = ? AND chain_task_id = ?
	`, chain, storyID, taskID)

	t := &Task{}
	err := row.Scan(&t.Chain, &t.ChainStoryID, &t.ChainTaskID, &t.Creator, &t.NftAddress, &t.RewardAmount, &t.ContentHash, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) ListTasks(chain string) ([]*Task, error) {
	rows, err := db.conn.Query(`
		SELECT chain, chain_story_id, chain_task_id, creator, nft_address, reward_amount, content_hash, status, created_at, updated_at
		FROM tasks WHERE chain = ? ORDER BY chain_story_id, chain_task_id
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		if err := rows.Scan(&t.Chain, &t.ChainStoryID, &t.ChainTaskID, &t.Creator, &t.NftAddress, &t.RewardAmount, &t.ContentHash, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// --- Submits ---

func (db *DB) CreateSubmit(s *Submit) error {
	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO submits
		(chain, chain_story_id, chain_task_id, chain_submit_id, creator, content_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Chain, s.ChainStoryID, s.ChainTaskID, s.ChainSubmitID, s.Creator, s.ContentHash, s.Status, now, now)
	return err
}

// UpdateSubmitStatus is the compare-and-set write for submission status,
// mirroring UpdateTaskStatus.
func (db *DB) UpdateSubmitStatus(chain string, storyID, taskID, submitID uint64, status, expectedStatus string) (bool, error) {
	res, err := db.conn.Exec(`
		UPDATE submits SET status = ?, updated_at = ?
		WHERE chain = ? AND chain_story_id = ? AND chain_task_id = ? AND chain_submit_id = ? AND status = ?
	`, status, time.Now(), chain, storyID, taskID, submitID, expectedStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) GetSubmit(chain string, storyID, taskID, submitID uint64) (*Submit, error) {
	row := db.conn.QueryRow(`
		SELECT chain, chain_story_id, chain_task_id, chain_submit_id, creator, content_hash, status, created_at, updated_at
		FROM submits WHERE chain = ? AND chain_story_id = ? AND chain_task_id = ? AND chain_submit_id = ?
	`, chain, storyID, taskID, submitID)

	s := &Submit{}
	err := row.Scan(&s.Chain, &s.ChainStoryID, &s.ChainTaskID, &s.ChainSubmitID, &s.Creator, &s.ContentHash, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) ListSubmits(chain string) ([]*Submit, error) {
	rows, err := db.conn.Query(`
		SELECT chain, chain_story_id, chain_task_id, chain_submit_id, creator, content_hash, status, created_at, updated_at
		FROM submits WHERE chain = ? ORDER BY chain_story_id, chain_task_id, chain_submit_id
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submits []*Submit
	for rows.Next() {
		s := &Submit{}
		if err := rows.Scan(&s.Chain, &s.ChainStoryID, &s.ChainTaskID, &s.ChainSubmitID, &s.Creator, &s.ContentHash, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		submits = append(submits, s)
	}
	return submits, rows.Err()
}

// --- Assets ---

func (db *DB) SaveAsset(a *Asset) error {
	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT INTO assets
		(chain, chain_story_id, code, issuer, name, description, image_cid, price, total, author_reserved, sold, author_claimed, contract_id, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, chain_story_id) DO UPDATE SET
			code = excluded.code,
			issuer = excluded.issuer,
			name = excluded.name,
			description = excluded.description,
			image_cid = excluded.image_cid,
			price = excluded.price,
			total = excluded.total,
			author_reserved = excluded.author_reserved,
			sold = excluded.sold,
			author_claimed = excluded.author_claimed,
			contract_id = excluded.contract_id,
			is_published = excluded.is_published,
			updated_at = excluded.updated_at
	`, a.Chain, a.ChainStoryID, a.Code, a.Issuer, a.Name, a.Description, a.ImageCID, a.Price,
		a.Total, a.AuthorReserved, a.Sold, a.AuthorClaimed, a.ContractID, a.IsPublished, now, now)
	return err
}

func (db *DB) UpdateAssetCounters(chain string, storyID uint64, sold, authorClaimed int64) error {
	_, err := db.conn.Exec(`
		UPDATE assets SET sold = ?, author_claimed = ?, updated_at = ?
		WHERE chain = ? AND chain_story_id = ?
	`, sold, authorClaimed, time.Now(), chain, storyID)
	return err
}

func (db *DB) GetAsset(chain string, storyID uint64) (*Asset, error) {
	row := db.conn.QueryRow(`
		SELECT chain, chain_story_id, code, issuer, name, description, image_cid, price, total, author_reserved, sold, author_claimed, contract_id, is_published, created_at, updated_at
		FROM assets WHERE chain = ? AND chain_story_id = ?
	`, chain, storyID)
	return scanAsset(row)
}

func (db *DB) GetPublishedAsset(chain string, storyID uint64) (*Asset, error) {
	row := db.conn.QueryRow(`
		SELECT chain, chain_story_id, code, issuer, name, description, image_cid, price, total, author_reserved, sold, author_claimed, contract_id, is_published, created_at, updated_at
		FROM assets WHERE chain = ? AND chain_story_id = ? AND is_published = 1
	`, chain, storyID)
	return scanAsset(row)
}

func scanAsset(row *sql.Row) (*Asset, error) {
	a := &Asset{}
	err := row.Scan(&a.Chain, &a.ChainStoryID, &a.Code, &a.Issuer, &a.Name, &a.Description, &a.ImageCID, &a.Price,
		&a.Total, &a.AuthorReserved, &a.Sold, &a.AuthorClaimed, &a.ContractID, &a.IsPublished, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (db *DB) ListAssets(chain string) ([]*Asset, error) {
	rows, err := db.conn.Query(`
		SELECT chain, chain_story_id, code, issuer, name, description, image_cid, price, total, author_reserved, sold, author_claimed, contract_id, is_published, created_at, updated_at
		FROM assets WHERE chain = ? ORDER BY chain_story_id
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		if err := rows.Scan(&a.Chain, &a.ChainStoryID, &a.Code, &a.Issuer, &a.Name, &a.Description, &a.ImageCID, &a.Price,
			&a.Total, &a.AuthorReserved, &a.Sold, &a.AuthorClaimed, &a.ContractID, &a.IsPublished, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// --- Transactions ---

func (db *DB) CreateTransaction(t *Transaction) error {
	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT INTO transactions
		(id, chain, tx_type, chain_story_id, code, issuer, amount, tx_hash, settled, abandoned, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)
	`, t.ID, t.Chain, t.TxType, t.ChainStoryID, t.Code, t.Issuer, t.Amount, t.TxHash, now, now)
	return err
}

func (db *DB) ListUnsettledTransactions(chain string) ([]*Transaction, error) {
	rows, err := db.conn.Query(`
		SELECT id, chain, tx_type, chain_story_id, code, issuer, amount, tx_hash, settled, abandoned, attempts, created_at, updated_at
		FROM transactions WHERE chain = ? AND settled = 0 AND abandoned = 0 ORDER BY created_at
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (db *DB) ListTransactions(chain string) ([]*Transaction, error) {
	rows, err := db.conn.Query(`
		SELECT id, chain, tx_type, chain_story_id, code, issuer, amount, tx_hash, settled, abandoned, attempts, created_at, updated_at
		FROM transactions WHERE chain = ? ORDER BY created_at
	`, chain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var txs []*Transaction
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(&t.ID, &t.Chain, &t.TxType, &t.ChainStoryID, &t.Code, &t.Issuer, &t.Amount, &t.TxHash,
			&t.Settled, &t.Abandoned, &t.Attempts, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SettleTransaction flips the settled flag and applies the kind-specific
// asset mutation in one SQL transaction. The flag flip is a compare-and-set
// (settled = 0 guard), so calling this twice for the same record applies
// the side effect exactly once; the second call reports false.
func (db *DB) SettleTransaction(t *Transaction, assetContractID string) (bool, error) {
	sqlTx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer sqlTx.Rollback()

	now := time.Now()
	res, err := sqlTx.Exec(`
		UPDATE transactions SET settled = 1, updated_at = ?
		WHERE id = ? AND settled = 0 AND abandoned = 0
	`, now, t.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	switch t.TxType {
	case TxTypePublishAsset:
		_, err = sqlTx.Exec(`
			UPDATE assets SET is_published = 1, contract_id = ?, updated_at = ?
			WHERE chain = ? AND chain_story_id = ?
		`, assetContractID, now, t.Chain, t.ChainStoryID)
	case TxTypeBuyAsset:
		_, err = sqlTx.Exec(`
			UPDATE assets SET sold = sold + ?, updated_at = ?
			WHERE chain = ? AND chain_story_id = ?
		`, t.Amount, now, t.Chain, t.ChainStoryID)
	case TxTypeClaimAsset:
		_, err = sqlTx.Exec(`
			UPDATE assets SET author_claimed = author_claimed + ?, updated_at = ?
			WHERE chain = ? AND chain_story_id = ?
		`, t.Amount, now, t.Chain, t.ChainStoryID)
	case TxTypeRewardPayout, TxTypeRewardTransfer:
		// Journal-only kinds: the tokens moved on chain; there is no local
		// counter to move.
	default:
		err = fmt.Errorf("unknown transaction type: %s", t.TxType)
	}
	if err != nil {
		return false, err
	}

	if err := sqlTx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// RecordUnconfirmedAttempt bumps the attempt counter for a transaction the
// network has not confirmed yet and marks it abandoned once the cap is hit.
// Returns true when the record was abandoned by this call. The bump and the
// abandoned read share one SQL transaction so the result cannot reflect a
// concurrent write.
func (db *DB) RecordUnconfirmedAttempt(txID string, maxAttempts int) (bool, error) {
	sqlTx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.Exec(`
		UPDATE transactions
		SET attempts = attempts + 1,
		    abandoned = CASE WHEN attempts + 1 >= ? THEN 1 ELSE 0 END,
		    updated_at = ?
		WHERE id = ? AND settled = 0 AND abandoned = 0
	`, maxAttempts, time.Now(), txID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	var abandoned bool
	if err := sqlTx.QueryRow(`SELECT abandoned FROM transactions WHERE id = ?`, txID).Scan(&abandoned); err != nil {
		return false, err
	}
	if err := sqlTx.Commit(); err != nil {
		return false, err
	}
	return abandoned, nil
}
