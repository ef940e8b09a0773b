package score

import (
	"math"
	"testing"

	"VoxelBench/internal/sim/glyph"
)

func renderMask(t *testing.T, target string) *glyph.Mask {
	t.Helper()
	font, err := glyph.LookupFont(glyph.DefaultFontName)
	if err != nil {
		t.Fatalf("lookup font: %v", err)
	}
	mask, err := font.Render(target)
	if err != nil {
		t.Fatalf("render %q: %v", target, err)
	}
	return mask
}

// perfectGrid 按掩码逐格建造；material 为空时按棋盘交替选材质，
// 使 4 邻接格子材质互异。
func perfectGrid(mask *glyph.Mask, material string) Grid {
	grid := make(Grid)
	for _, c := range mask.Cells() {
		name := material
		if name == "" {
			if (c[0]+c[1])%2 == 0 {
				name = "stone"
			} else {
				name = "white_wool"
			}
		}
		grid[Cell{X: c[0], Z: c[1]}] = name
	}
	return grid
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluatePerfectCheckeredBuild(t *testing.T) {
	mask := renderMask(t, "I")
	grid := perfectGrid(mask, "")

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.ShapeOverlap, 1) {
		t.Fatalf("形状完全重合时 IoU 应为 1: %v", m.ShapeOverlap)
	}
	if !almostEqual(m.Components, 1) {
		t.Fatalf("单字母单分量应得 1: %v", m.Components)
	}
	if !almostEqual(m.Adjacency, 1) {
		t.Fatalf("棋盘交替材质不应有邻接违例: %v", m.Adjacency)
	}
	if !almostEqual(m.Mean, 1) {
		t.Fatalf("unexpected mean: %v", m.Mean)
	}
}

func TestEvaluateUniformMaterialAdjacencyPenalty(t *testing.T) {
	mask := renderMask(t, "I")
	grid := perfectGrid(mask, "stone")

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.ShapeOverlap, 1) {
		t.Fatalf("材质不影响形状得分: %v", m.ShapeOverlap)
	}
	// "I" 的形状里同材质相邻对远超 difficulty=1 的上限。
	if !almostEqual(m.Adjacency, -1) {
		t.Fatalf("违例数超出上限时应得 -1: %v", m.Adjacency)
	}
}

func TestEvaluateEmptyBuild(t *testing.T) {
	mask := renderMask(t, "AB")

	m := Evaluate(Grid{}, mask, 2)
	if !almostEqual(m.ShapeOverlap, 0) {
		t.Fatalf("空建造的 IoU 应为 0: %v", m.ShapeOverlap)
	}
	if !almostEqual(m.Components, 0) {
		t.Fatalf("空建造没有分量: %v", m.Components)
	}
	if !almostEqual(m.Adjacency, 1) {
		t.Fatalf("空建造没有违例，邻接得分按公式退化为 1: %v", m.Adjacency)
	}
	if !almostEqual(m.Mean, 1.0/3.0) {
		t.Fatalf("unexpected mean: %v", m.Mean)
	}
}

func TestEvaluateComponentsPartialBuild(t *testing.T) {
	mask := renderMask(t, "II")
	// 只建第一个字母：2 个字符的任务只得到 1 个分量。
	first := renderMask(t, "I")
	grid := perfectGrid(first, "")

	m := Evaluate(grid, mask, 2)
	if !almostEqual(m.Components, 0.5) {
		t.Fatalf("1 个分量 / difficulty 2 应得 0.5: %v", m.Components)
	}
}

func TestEvaluateComponentsCappedAtOne(t *testing.T) {
	mask := renderMask(t, "I")
	// 三个彼此不连通（8 连通意义下）的格子。
	grid := Grid{
		{X: 0, Z: 0}: "stone",
		{X: 2, Z: 2}: "glass",
		{X: 4, Z: 4}: "wool",
	}

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.Components, 1) {
		t.Fatalf("分量数超出 difficulty 时只封顶: %v", m.Components)
	}
}

func TestEvaluateAdjacencyWithinLimit(t *testing.T) {
	mask := renderMask(t, "II")
	// 两个同材质的相邻格子：恰好 1 个违例，difficulty 2。
	grid := Grid{
		{X: 0, Z: 0}: "stone",
		{X: 1, Z: 0}: "stone",
	}

	m := Evaluate(grid, mask, 2)
	if !almostEqual(m.Adjacency, 0.5) {
		t.Fatalf("1 个违例 / 上限 2 应得 0.5: %v", m.Adjacency)
	}
}

func TestEvaluateDiagonalPairsAreNotViolations(t *testing.T) {
	mask := renderMask(t, "I")
	grid := Grid{
		{X: 0, Z: 0}: "stone",
		{X: 1, Z: 1}: "stone",
	}

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.Adjacency, 1) {
		t.Fatalf("对角相邻不计入违例: %v", m.Adjacency)
	}
	// 但对角相邻在 8 连通意义下属于同一分量。
	if !almostEqual(m.Components, 1) {
		t.Fatalf("对角相邻应连成一个分量: %v", m.Components)
	}
}

func TestEvaluateIgnoresCellsOutsideFootprint(t *testing.T) {
	mask := renderMask(t, "I")
	grid := perfectGrid(mask, "")
	// 足迹外的格子既不扣分也不加分。
	grid[Cell{X: -10, Z: 0}] = "stone"
	grid[Cell{X: 0, Z: 40}] = "stone"

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.ShapeOverlap, 1) {
		t.Fatalf("足迹外的格子不应影响 IoU: %v", m.ShapeOverlap)
	}
}

func TestEvaluateAirCellsIgnored(t *testing.T) {
	mask := renderMask(t, "I")
	grid := Grid{
		{X: 0, Z: 0}: "air",
		{X: 2, Z: 1}: "",
	}

	m := Evaluate(grid, mask, 1)
	if !almostEqual(m.ShapeOverlap, 0) || !almostEqual(m.Components, 0) {
		t.Fatalf("air 与空材质格子视为未建造: %+v", m)
	}
}

func TestGridFromPlaneTranslatesOrigin(t *testing.T) {
	plane := map[[2]int]string{
		{10, 20}: "stone",
		{11, 21}: "glass",
	}
	grid := GridFromPlane(plane, 10, 20)
	if grid[Cell{X: 0, Z: 0}] != "stone" || grid[Cell{X: 1, Z: 1}] != "glass" {
		t.Fatalf("unexpected grid: %v", grid)
	}
}

func TestEvaluateNonPositiveDifficulty(t *testing.T) {
	mask := renderMask(t, "I")
	m := Evaluate(Grid{}, mask, 0)
	if !almostEqual(m.Adjacency, 1) {
		t.Fatalf("difficulty 非正值应按 1 处理: %+v", m)
	}
}
