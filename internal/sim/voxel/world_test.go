package voxel

import (
	"testing"

	xerrors "VoxelBench/internal/errors"
)

func smallExtent() Extent {
	return Extent{
		Min: Vec3i{X: 0, Y: 0, Z: 0},
		Max: Vec3i{X: 7, Y: 7, Z: 7},
	}
}

func TestWorldLastWriteWins(t *testing.T) {
	w := NewWorld(smallExtent())
	p := Vec3i{X: 1, Y: 0, Z: 1}

	if err := w.Apply(NewSetBlock(p, Block{Name: "stone"})); err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if err := w.Apply(NewSetBlock(p, Block{Name: "glass"})); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if got := w.At(p).Name; got != "glass" {
		t.Fatalf("同一格子应由后写者胜出: %q", got)
	}
	if w.Size() != 1 {
		t.Fatalf("unexpected size: %d", w.Size())
	}
}

func TestWorldAirClearsCell(t *testing.T) {
	w := NewWorld(smallExtent())
	p := Vec3i{X: 2, Y: 0, Z: 2}

	if err := w.Apply(NewSetBlock(p, Block{Name: "stone"})); err != nil {
		t.Fatalf("apply stone: %v", err)
	}
	if err := w.Apply(NewSetBlock(p, Block{Name: AirBlock})); err != nil {
		t.Fatalf("apply air: %v", err)
	}
	if !w.At(p).IsEmpty() {
		t.Fatalf("写入 air 后格子应为空: %v", w.At(p))
	}
	if w.Size() != 0 {
		t.Fatalf("unexpected size: %d", w.Size())
	}
}

func TestWorldRejectsOutOfBoundsWholeOp(t *testing.T) {
	w := NewWorld(smallExtent())

	// Fill 一部分在界内、一部分在界外：整个操作都不应写入。
	err := w.Apply(NewFill(Vec3i{X: 5, Y: 0, Z: 5}, Vec3i{X: 10, Y: 0, Z: 5}, Block{Name: "stone"}))
	if err == nil {
		t.Fatal("越界 fill 应返回错误")
	}
	if xerrors.CodeOf(err) != CodeOutOfBounds {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
	if w.Size() != 0 {
		t.Fatalf("被拒绝的操作不应留下任何写入: size=%d", w.Size())
	}

	err = w.Apply(NewSetBlock(Vec3i{X: -1, Y: 0, Z: 0}, Block{Name: "stone"}))
	if err == nil || xerrors.CodeOf(err) != CodeOutOfBounds {
		t.Fatalf("越界 setblock 应返回 OUT_OF_BOUNDS, got %v", err)
	}
}

func TestWorldFillCoversBox(t *testing.T) {
	w := NewWorld(smallExtent())
	if err := w.Apply(NewFill(Vec3i{X: 2, Y: 0, Z: 2}, Vec3i{X: 0, Y: 0, Z: 0}, Block{Name: "wool"})); err != nil {
		t.Fatalf("apply fill: %v", err)
	}
	if w.Size() != 9 {
		t.Fatalf("3x1x3 的盒子应写入 9 个格子: %d", w.Size())
	}
	for x := 0; x <= 2; x++ {
		for z := 0; z <= 2; z++ {
			if got := w.At(Vec3i{X: x, Y: 0, Z: z}).Name; got != "wool" {
				t.Fatalf("cell (%d,0,%d) = %q", x, z, got)
			}
		}
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	w := NewWorld(smallExtent())
	p := Vec3i{X: 3, Y: 0, Z: 3}
	if err := w.Apply(NewSetBlock(p, Block{Name: "stone"})); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap := w.Snapshot()
	if err := w.Apply(NewSetBlock(p, Block{Name: "glass"})); err != nil {
		t.Fatalf("apply after snapshot: %v", err)
	}

	if got := snap.At(p).Name; got != "stone" {
		t.Fatalf("快照不应看到后续修改: %q", got)
	}
	if got := w.At(p).Name; got != "glass" {
		t.Fatalf("世界应看到最新写入: %q", got)
	}
}

func TestSnapshotPlaneMaterials(t *testing.T) {
	w := NewWorld(smallExtent())
	ops := []Op{
		NewSetBlock(Vec3i{X: 0, Y: 0, Z: 0}, Block{Name: "stone"}),
		NewSetBlock(Vec3i{X: 1, Y: 0, Z: 2}, Block{Name: "glass"}),
		NewSetBlock(Vec3i{X: 1, Y: 1, Z: 2}, Block{Name: "wool"}), // 不在建造平面上
	}
	for _, op := range ops {
		if err := w.Apply(op); err != nil {
			t.Fatalf("apply %v: %v", op, err)
		}
	}

	plane := w.Snapshot().PlaneMaterials(0)
	if len(plane) != 2 {
		t.Fatalf("unexpected plane size: %d", len(plane))
	}
	if plane[[2]int{0, 0}] != "stone" || plane[[2]int{1, 2}] != "glass" {
		t.Fatalf("unexpected plane content: %v", plane)
	}
}

func TestInvalidExtentFallsBackToDefault(t *testing.T) {
	w := NewWorld(Extent{Min: Vec3i{X: 5}, Max: Vec3i{X: -5}})
	if w.Extent() != DefaultExtent() {
		t.Fatalf("非法范围应退回默认值: %v", w.Extent())
	}
}
