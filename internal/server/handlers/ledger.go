package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tra-portal/tra-portal/internal/canon"
	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// ActiveNodes is the validator count reported by the mock network.
const ActiveNodes = 4

// ChainRecord is one ledger transaction. Each transaction is sealed in its own block.
type ChainRecord struct {
	TxID        string          `json:"txId"`
	BlockNumber int64           `json:"blockNumber"`
	PrevHash    string          `json:"prevHash"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    string          `json:"entityId"`
	DataHash    string          `json:"dataHash"`
	Record      json.RawMessage `json:"record"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Ledger is a hash-chained log of record digests standing in for the
// blockchain the production backend anchors writes to.
//
// A record's dataHash is canon.Digest of the record, so a client holding a
// copy in any key casing can check it against the ledger.
type Ledger struct {
	mu   sync.Mutex
	repo database.Repository
	now  func() time.Time
}

func NewLedger(repo database.Repository, now func() time.Time) *Ledger {
	return &Ledger{repo: repo, now: now}
}

// Record appends a transaction for record and returns it. record must not
// yet carry the transaction id.
func (l *Ledger) Record(ctx context.Context, action, entityType, entityID string, record any) (ChainRecord, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return ChainRecord{}, fmt.Errorf("failed to encode %s %s: %w", entityType, entityID, err)
	}
	digest, err := canon.DigestJSON(raw)
	if err != nil {
		return ChainRecord{}, err
	}

	// one writer at a time keeps block numbers and prevHash consistent
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head(ctx)
	if err != nil {
		return ChainRecord{}, err
	}

	rec := ChainRecord{
		BlockNumber: head.BlockNumber + 1,
		PrevHash:    head.TxID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		DataHash:    digest,
		Record:      raw,
		Timestamp:   l.now(),
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%s|%s", rec.BlockNumber, rec.PrevHash, rec.DataHash, rec.Timestamp.Format(time.RFC3339Nano)))
	rec.TxID = "0x" + hex.EncodeToString(sum[:])

	data, err := json.Marshal(rec)
	if err != nil {
		return ChainRecord{}, err
	}
	err = l.repo.Put(ctx, database.Document{
		Kind:      database.KindChainRecord,
		ID:        rec.TxID,
		ParentID:  entityID,
		Data:      data,
		CreatedAt: rec.Timestamp,
	})
	if err != nil {
		return ChainRecord{}, err
	}
	return rec, nil
}

// head returns the latest transaction, or the zero record for an empty chain.
func (l *Ledger) head(ctx context.Context) (ChainRecord, error) {
	docs, err := l.repo.List(ctx, database.KindChainRecord)
	if err != nil || len(docs) == 0 {
		return ChainRecord{}, err
	}
	var head ChainRecord
	if err := json.Unmarshal(docs[0].Data, &head); err != nil {
		return ChainRecord{}, fmt.Errorf("corrupt chain record %s: %w", docs[0].ID, err)
	}
	return head, nil
}

// Verify looks up txID and checks the stored record still hashes to the
// recorded digest.
func (l *Ledger) Verify(ctx context.Context, txID string) (services.VerificationResult, error) {
	doc, err := l.repo.Get(ctx, database.KindChainRecord, txID)
	if errors.Is(err, database.ErrNotFound) {
		return services.VerificationResult{}, api.NewNotFoundError(fmt.Sprintf("transaction %s not found", txID))
	}
	if err != nil {
		return services.VerificationResult{}, err
	}
	var rec ChainRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return services.VerificationResult{}, fmt.Errorf("corrupt chain record %s: %w", txID, err)
	}

	digest, err := canon.DigestJSON(rec.Record)
	if err != nil {
		return services.VerificationResult{}, err
	}
	var record map[string]any
	_ = json.Unmarshal(rec.Record, &record)

	return services.VerificationResult{
		TxID:        rec.TxID,
		Verified:    digest == rec.DataHash,
		BlockNumber: services.Int(rec.BlockNumber),
		DataHash:    rec.DataHash,
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		Timestamp:   rec.Timestamp,
		Record:      record,
	}, nil
}

// Entries returns the transactions recorded for entityID, oldest first.
func (l *Ledger) Entries(ctx context.Context, entityID string) ([]services.LedgerEntry, error) {
	docs, err := l.repo.ListByParent(ctx, database.KindChainRecord, entityID)
	if err != nil {
		return nil, err
	}
	recs, err := decodeDocs[ChainRecord](docs)
	if err != nil {
		return nil, err
	}
	slices.Reverse(recs)
	out := make([]services.LedgerEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, services.LedgerEntry{
			TxID:        r.TxID,
			BlockNumber: services.Int(r.BlockNumber),
			Action:      r.Action,
			DataHash:    r.DataHash,
			Timestamp:   r.Timestamp,
		})
	}
	return out, nil
}

// Stats summarises the chain.
func (l *Ledger) Stats(ctx context.Context) (services.BlockchainStats, error) {
	docs, err := l.repo.List(ctx, database.KindChainRecord)
	if err != nil {
		return services.BlockchainStats{}, err
	}

	stats := services.BlockchainStats{
		TotalTransactions: services.Int(len(docs)),
		TotalBlocks:       services.Int(len(docs)),
		ActiveNodes:       ActiveNodes,
		NetworkStatus:     "ONLINE",
	}
	if len(docs) == 0 {
		return stats, nil
	}

	var head ChainRecord
	if err := json.Unmarshal(docs[0].Data, &head); err != nil {
		return stats, fmt.Errorf("corrupt chain record %s: %w", docs[0].ID, err)
	}
	stats.LastBlockHash = head.TxID
	stats.LastBlockTime = head.Timestamp

	if len(docs) > 1 {
		span := docs[0].CreatedAt.Sub(docs[len(docs)-1].CreatedAt)
		stats.AverageBlockTime = span.Seconds() / float64(len(docs)-1)
	}
	return stats, nil
}
