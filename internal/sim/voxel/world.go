package voxel

import (
	xerrors "VoxelBench/internal/errors"
)

// World 是单个任务私有的有界体素网格。未写入的格子一律视为空。
// World 不做任何并发保护：一次模拟在单协程内按提交顺序应用操作，
// 多个任务各自持有独立实例（见 Snapshot）。
type World struct {
	extent Extent
	cells  map[Vec3i]Block
}

// NewWorld 创建一个空世界。extent 非法时退回默认范围。
func NewWorld(extent Extent) *World {
	if !extent.Valid() {
		extent = DefaultExtent()
	}
	return &World{
		extent: extent,
		cells:  make(map[Vec3i]Block),
	}
}

// Extent 返回世界的有界范围。
func (w *World) Extent() Extent {
	return w.extent
}

// At 返回坐标处的方块；未写入的格子返回空哨兵。
func (w *World) At(p Vec3i) Block {
	if b, ok := w.cells[p]; ok {
		return b
	}
	return Block{Name: EmptyBlock}
}

// Size 返回已写入的格子数量。
func (w *World) Size() int {
	return len(w.cells)
}

// Apply 将操作写入网格。坐标越界时返回 ErrOutOfBounds 且网格保持不变；
// 由调用方决定丢弃还是中止。同一格子后写覆盖先写。
func (w *World) Apply(op Op) error {
	switch op.Kind {
	case OpSetBlock:
		if !w.extent.Contains(op.Pos) {
			return xerrors.Wrap(CodeOutOfBounds, ErrOutOfBounds, "setblock at "+op.Pos.String())
		}
		w.write(op.Pos, op.Block)
		return nil
	case OpFill:
		if !w.extent.ContainsBox(op.Min, op.Max) {
			return xerrors.Wrap(CodeOutOfBounds, ErrOutOfBounds, "fill box "+op.Min.String()+".."+op.Max.String())
		}
		// 遍历顺序固定为 x、y、z 字典序：同一盒子内写入内容幂等，
		// 顺序只影响诊断输出的可复现性。
		for x := op.Min.X; x <= op.Max.X; x++ {
			for y := op.Min.Y; y <= op.Max.Y; y++ {
				for z := op.Min.Z; z <= op.Max.Z; z++ {
					w.write(Vec3i{X: x, Y: y, Z: z}, op.Block)
				}
			}
		}
		return nil
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, "unknown operation kind")
	}
}

// write 落盘单个格子；写入 air 等价于清空。
func (w *World) write(p Vec3i, b Block) {
	if b.Clears() {
		delete(w.cells, p)
		return
	}
	w.cells[p] = b
}

// Snapshot 返回当前网格的不可变只读视图，供打分引擎使用。
// 生成快照之后对 World 的继续修改不会影响快照内容。
func (w *World) Snapshot() Snapshot {
	cells := make(map[Vec3i]Block, len(w.cells))
	for p, b := range w.cells {
		cells[p] = b
	}
	return Snapshot{extent: w.extent, cells: cells}
}

// Snapshot 是世界网格的只读副本。
type Snapshot struct {
	extent Extent
	cells  map[Vec3i]Block
}

// Extent 返回快照对应的世界范围。
func (s Snapshot) Extent() Extent {
	return s.extent
}

// At 返回坐标处的方块；未写入的格子返回空哨兵。
func (s Snapshot) At(p Vec3i) Block {
	if b, ok := s.cells[p]; ok {
		return b
	}
	return Block{Name: EmptyBlock}
}

// Size 返回已写入的格子数量。
func (s Snapshot) Size() int {
	return len(s.cells)
}

// Each 按任意顺序遍历所有已写入的格子。
func (s Snapshot) Each(fn func(p Vec3i, b Block)) {
	for p, b := range s.cells {
		fn(p, b)
	}
}

// PlaneMaterials 返回指定建造平面（固定 y）上的材质投影：
// (x, z) -> 材质名。空哨兵格子不会出现在结果里。
func (s Snapshot) PlaneMaterials(y int) map[[2]int]string {
	out := make(map[[2]int]string)
	for p, b := range s.cells {
		if p.Y != y || b.IsEmpty() {
			continue
		}
		out[[2]int{p.X, p.Z}] = b.Name
	}
	return out
}
