package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	releve "garderie-cloud/internal/releve/domain"
)

// allocateRetries bounds the reserve-and-retry loop. Collisions only happen
// under concurrent allocation, so a handful of retries is plenty.
const allocateRetries = 10

// SequenceAllocator hands out collision-free sequence numbers for a
// (tax year, preparer) pair. The reservation table's unique constraint is the
// source of truth; the filesystem scan only survives as a reconciliation
// floor for artifacts that predate the table.
type SequenceAllocator struct {
	sequences  releve.SequenceRepository
	outputRoot string
}

// NewSequenceAllocator constructs an allocator.
func NewSequenceAllocator(sequences releve.SequenceRepository, outputRoot string) (*SequenceAllocator, error) {
	if sequences == nil {
		return nil, errors.New("sequence allocator: nil sequence repository")
	}
	if outputRoot == "" {
		return nil, errors.New("sequence allocator: empty output root")
	}
	return &SequenceAllocator{sequences: sequences, outputRoot: outputRoot}, nil
}

// NextSequence returns the next candidate sequence: one past the maximum of
// the reservation high-water mark and the highest sequence observable on
// disk. The two sources can diverge when a file was written but its database
// write failed, or vice versa; trusting either alone risks overwrite or
// permanent number leakage.
func (a *SequenceAllocator) NextSequence(ctx context.Context, taxYear int, preparerID string) (int, error) {
	reserved, err := a.sequences.HighWaterMark(ctx, taxYear, preparerID)
	if err != nil {
		return 0, fmt.Errorf("sequence allocator: high-water mark: %w", err)
	}
	onDisk := a.scanDiskHighWater(taxYear, preparerID)

	next := reserved
	if onDisk > next {
		next = onDisk
	}
	next++
	if next > releve.MaxSequencePerYear {
		return 0, releve.ErrSequenceExhausted
	}
	return next, nil
}

// AllocateUniqueFilename reserves the next free sequence and returns the
// canonical filename for it. A collision (another run reserving the same
// number first, or a stray file already on disk) advances to the next number,
// bounded by allocateRetries.
func (a *SequenceAllocator) AllocateUniqueFilename(ctx context.Context, taxYear int, preparerID string) (string, int, error) {
	seq, err := a.NextSequence(ctx, taxYear, preparerID)
	if err != nil {
		return "", 0, err
	}

	for attempt := 0; attempt < allocateRetries; attempt++ {
		if seq > releve.MaxSequencePerYear {
			return "", 0, releve.ErrSequenceExhausted
		}
		name, err := releve.GenerateFilename(taxYear, preparerID, seq)
		if err != nil {
			return "", 0, err
		}
		if _, statErr := os.Stat(a.artifactPath(taxYear, name)); statErr == nil {
			seq++
			continue
		}
		err = a.sequences.Reserve(ctx, taxYear, preparerID, seq)
		if err == nil {
			return name, seq, nil
		}
		if errors.Is(err, releve.ErrSequenceTaken) {
			seq++
			continue
		}
		return "", 0, fmt.Errorf("sequence allocator: reserve: %w", err)
	}
	return "", 0, fmt.Errorf("sequence allocator: no free sequence after %d attempts", allocateRetries)
}

// ArtifactPath returns where the artifact for a filename is stored: one
// directory per tax year under the output root.
func (a *SequenceAllocator) ArtifactPath(taxYear int, filename string) string {
	return a.artifactPath(taxYear, filename)
}

func (a *SequenceAllocator) artifactPath(taxYear int, filename string) string {
	return filepath.Join(a.outputRoot, strconv.Itoa(taxYear), filename)
}

// scanDiskHighWater walks the per-tax-year directory for files matching the
// preparer and returns the highest sequence found, zero when the directory is
// missing or empty.
func (a *SequenceAllocator) scanDiskHighWater(taxYear int, preparerID string) int {
	entries, err := os.ReadDir(filepath.Join(a.outputRoot, strconv.Itoa(taxYear)))
	if err != nil {
		return 0
	}
	padded := fmt.Sprintf("%0*s", releve.FilenamePreparerWidth, preparerID)
	max := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts, err := releve.ParseFilename(entry.Name())
		if err != nil {
			continue
		}
		if parts.PreparerID != padded {
			continue
		}
		if parts.TaxYear%100 != taxYear%100 {
			continue
		}
		if parts.Sequence > max {
			max = parts.Sequence
		}
	}
	return max
}
