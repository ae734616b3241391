package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	releve "garderie-cloud/internal/releve/domain"
	"garderie-cloud/internal/releve/infrastructure/memory"
)

func newTestAllocator(t *testing.T) (*SequenceAllocator, string) {
	t.Helper()
	root := t.TempDir()
	alloc, err := NewSequenceAllocator(memory.NewSequenceRepository(), root)
	if err != nil {
		t.Fatalf("NewSequenceAllocator: %v", err)
	}
	return alloc, root
}

func TestAllocateUniqueFilenameSequential(t *testing.T) {
	alloc, _ := newTestAllocator(t)
	ctx := context.Background()

	name1, seq1, err := alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	name2, seq2, err := alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if err != nil {
		t.Fatalf("second allocation: %v", err)
	}
	if seq1 == seq2 || name1 == name2 {
		t.Fatalf("sequential allocations collided: %s/%d vs %s/%d", name1, seq1, name2, seq2)
	}
	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("sequences = %d, %d, want 1, 2", seq1, seq2)
	}
}

func TestAllocateReconcilesWithDisk(t *testing.T) {
	alloc, root := newTestAllocator(t)
	ctx := context.Background()

	// An artifact on disk with no reservation row (a file written before the
	// reservation table existed) must still push the allocator past it.
	dir := filepath.Join(root, "2025")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "25123456007.xml"), []byte("<x/>"), 0o644); err != nil {
		t.Fatalf("write stray artifact: %v", err)
	}

	_, seq, err := alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if err != nil {
		t.Fatalf("AllocateUniqueFilename: %v", err)
	}
	if seq != 8 {
		t.Fatalf("sequence = %d, want 8", seq)
	}
}

func TestAllocateIgnoresOtherPreparers(t *testing.T) {
	alloc, root := newTestAllocator(t)
	ctx := context.Background()

	dir := filepath.Join(root, "2025")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "25999999005.xml"), []byte("<x/>"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	_, seq, err := alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if err != nil {
		t.Fatalf("AllocateUniqueFilename: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence = %d, want 1", seq)
	}
}

func TestAllocateSequenceExhaustion(t *testing.T) {
	seqRepo := memory.NewSequenceRepository()
	ctx := context.Background()
	if err := seqRepo.Reserve(ctx, 2025, "123456", releve.MaxSequencePerYear); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	alloc, err := NewSequenceAllocator(seqRepo, t.TempDir())
	if err != nil {
		t.Fatalf("NewSequenceAllocator: %v", err)
	}

	_, _, err = alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if !errors.Is(err, releve.ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
}

func TestAllocateRetriesPastReservedGap(t *testing.T) {
	seqRepo := memory.NewSequenceRepository()
	ctx := context.Background()
	// Reserve 2 while leaving 1 free: the allocator starts at 3 (high-water
	// plus one), not at the gap, so numbers are never reused out of order.
	if err := seqRepo.Reserve(ctx, 2025, "123456", 2); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	alloc, err := NewSequenceAllocator(seqRepo, t.TempDir())
	if err != nil {
		t.Fatalf("NewSequenceAllocator: %v", err)
	}

	_, seq, err := alloc.AllocateUniqueFilename(ctx, 2025, "123456")
	if err != nil {
		t.Fatalf("AllocateUniqueFilename: %v", err)
	}
	if seq != 3 {
		t.Fatalf("sequence = %d, want 3", seq)
	}
}
