// Package consistency guards migrations with checksums, replica bookkeeping,
// and last-write-wins conflict resolution.
package consistency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/store"
)

var encMode cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("consistency: build cbor encoder: %v", err))
	}
	encMode = mode
}

// snapshot is the canonical content-identity view of an object. Placement
// fields are deliberately excluded: the checksum must survive a migration
// and only change when the data itself does.
type snapshot struct {
	ObjectID    int64  `cbor:"1,keyasint"`
	Name        string `cbor:"2,keyasint"`
	SizeBytes   int64  `cbor:"3,keyasint"`
	ContentType string `cbor:"4,keyasint"`
}

// Checksum computes the canonical content checksum for an object.
func Checksum(obj *store.DataObject) (string, error) {
	encoded, err := encMode.Marshal(snapshot{
		ObjectID:    obj.ID,
		Name:        obj.Name,
		SizeBytes:   obj.SizeBytes,
		ContentType: obj.ContentType,
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "consistency", "checksum", "encode snapshot", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// ReplicaVersion is one replica's view of an object.
type ReplicaVersion struct {
	Location   string
	Checksum   string
	ModifiedAt time.Time
}

// ResolveConflict picks the winning version by last-write-wins. Ties on
// timestamp fall to the earlier entry so resolution stays deterministic.
func ResolveConflict(versions []ReplicaVersion) (ReplicaVersion, error) {
	if len(versions) == 0 {
		return ReplicaVersion{}, services.Wrap(services.ErrValidation, "consistency", "resolve",
			"no replica versions to resolve", nil)
	}
	winner := versions[0]
	for _, v := range versions[1:] {
		if v.ModifiedAt.After(winner.ModifiedAt) {
			winner = v
		}
	}
	return winner, nil
}

// Verifier performs pre/post migration consistency checks against the store.
type Verifier struct {
	store       *store.Store
	minReplicas int
	logger      *slog.Logger
}

// NewVerifier builds a verifier from configuration.
func NewVerifier(st *store.Store, cfg *config.Config, logger *slog.Logger) *Verifier {
	return &Verifier{
		store:       st,
		minReplicas: cfg.Consistency.MinReplicas,
		logger:      logging.NewComponentLogger(logger, "consistency"),
	}
}

// MinReplicas returns the configured replica floor.
func (v *Verifier) MinReplicas() int {
	return v.minReplicas
}

// Prepare records the pre-transfer checksum and replica set for an object.
// Existing replica bookkeeping is preserved; a first-time object starts with
// its current location as the sole replica.
func (v *Verifier) Prepare(ctx context.Context, obj *store.DataObject) (*store.ConsistencyRecord, error) {
	checksum, err := Checksum(obj)
	if err != nil {
		return nil, err
	}
	record, err := v.store.ConsistencyRecordFor(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &store.ConsistencyRecord{
			ObjectID: obj.ID,
			Replicas: []string{obj.Location},
		}
	}
	record.Checksum = checksum
	record.MinReplicas = v.minReplicas
	record.VerifiedAt = time.Now().UTC()
	if err := v.store.SaveConsistencyRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// VerifyAfterTransfer recomputes the checksum and compares it with the
// pre-transfer record. A mismatch is transient: the orchestrator retries the
// whole transfer.
func (v *Verifier) VerifyAfterTransfer(ctx context.Context, obj *store.DataObject) error {
	record, err := v.store.ConsistencyRecordFor(ctx, obj.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrValidation, "consistency", "verify",
			fmt.Sprintf("object %d has no pre-transfer record", obj.ID), nil)
	}
	checksum, err := Checksum(obj)
	if err != nil {
		return err
	}
	if checksum != record.Checksum {
		return services.Wrap(services.ErrChecksumMismatch, "consistency", "verify",
			fmt.Sprintf("checksum mismatch for object %d: recorded %s, computed %s",
				obj.ID, shortSum(record.Checksum), shortSum(checksum)), nil)
	}
	return nil
}

// CommitMove updates replica bookkeeping after a successful transfer. The
// source replica is replaced by the target; if the set would fall below the
// minimum, the source is retained as a replica until replication catches up.
func (v *Verifier) CommitMove(ctx context.Context, obj *store.DataObject, sourceLocation, targetLocation string) error {
	record, err := v.store.ConsistencyRecordFor(ctx, obj.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrValidation, "consistency", "commit",
			fmt.Sprintf("object %d has no pre-transfer record", obj.ID), nil)
	}

	replicas := make([]string, 0, len(record.Replicas)+1)
	replicas = append(replicas, targetLocation)
	for _, loc := range record.Replicas {
		if loc == sourceLocation || loc == targetLocation {
			continue
		}
		replicas = append(replicas, loc)
	}
	if len(replicas) < v.minReplicas && sourceLocation != targetLocation {
		replicas = append(replicas, sourceLocation)
		v.logger.Debug("retaining source as replica",
			logging.Int64(logging.FieldObjectID, obj.ID),
			logging.String("location", sourceLocation))
	}

	record.Replicas = replicas
	record.VerifiedAt = time.Now().UTC()
	return v.store.SaveConsistencyRecord(ctx, record)
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
