package score

import (
	"VoxelBench/internal/sim/glyph"
	"VoxelBench/internal/sim/materials"
)

// Cell 是建造平面上的一个格子，坐标已换算到掩码坐标系
// （掩码左上角的目标格子为原点）。
type Cell struct {
	X int
	Z int
}

// Grid 是建造结果在建造平面上的投影：每个非空格子映射到其材质名。
// 它可以来自离线世界模型的快照，也可以来自对真实服务器的扫描——
// 打分引擎不关心网格的来源。
type Grid map[Cell]string

// GridFromPlane 把世界坐标系下的平面投影平移为掩码坐标系下的 Grid。
// origin 是掩码 (0, 0) 对应的世界坐标 (x, z)。
func GridFromPlane(cells map[[2]int]string, originX, originZ int) Grid {
	grid := make(Grid, len(cells))
	for c, material := range cells {
		grid[Cell{X: c[0] - originX, Z: c[1] - originZ}] = material
	}
	return grid
}

// Metrics 是一次建造的完整得分向量。三个分量彼此独立，均值只作
// 汇总展示，不替代任何分量。
type Metrics struct {
	ShapeOverlap float64 `json:"score_shape_overlap"`
	Components   float64 `json:"score_components"`
	Adjacency    float64 `json:"score_s3"`
	Mean         float64 `json:"score_mean"`
}

// Evaluate 对照目标掩码给建造结果打分。difficulty 归一化组件数与
// 邻接违例数，通常取目标字符串长度；非正值按 1 处理。
//
// 三个分量对任何输入都可计算，包括完全为空的建造：此时形状重合
// 与组件得分取下限，邻接得分按公式的字面退化结果为 1（没有任何
// 相邻对即没有违例）。
func Evaluate(grid Grid, mask *glyph.Mask, difficulty int) Metrics {
	if difficulty <= 0 {
		difficulty = 1
	}
	built := builtCells(grid, mask)

	m := Metrics{
		ShapeOverlap: shapeOverlap(built, mask),
		Components:   componentsScore(built, difficulty),
		Adjacency:    adjacencyScore(built, difficulty),
	}
	m.Mean = (m.ShapeOverlap + m.Components + m.Adjacency) / 3
	return m
}

// builtCells 提取参与打分的格子集合：网格中非空、且落在掩码包围盒
// 足迹内的格子。材质名为空或为 air 的格子视为未建造。
func builtCells(grid Grid, mask *glyph.Mask) map[Cell]string {
	built := make(map[Cell]string)
	for c, material := range grid {
		if material == "" || material == "air" || material == "empty" {
			continue
		}
		if !mask.InFootprint(c.X, c.Z) {
			continue
		}
		built[c] = materials.Normalize(material)
	}
	return built
}

// shapeOverlap 计算建造格子集合与目标格子集合的 IoU。
// 两个集合都为空时按退化情况返回 0。结果与材质无关。
func shapeOverlap(built map[Cell]string, mask *glyph.Mask) float64 {
	intersection := 0
	for c := range built {
		if mask.On(c.X, c.Z) {
			intersection++
		}
	}
	union := len(built) + mask.OnCount() - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// componentsScore 按 8 连通（含对角）统计建造格子的连通分量数，
// 得分为 min(分量数/difficulty, 1)：正确分隔的多字母建造大致每个
// 字符一个分量；分量数超出预期只封顶、不惩罚。
func componentsScore(built map[Cell]string, difficulty int) float64 {
	n := countComponents(built)
	score := float64(n) / float64(difficulty)
	if score > 1 {
		return 1
	}
	return score
}

var neighbors8 = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

func countComponents(built map[Cell]string) int {
	visited := make(map[Cell]bool, len(built))
	count := 0
	var stack []Cell
	for start := range built {
		if visited[start] {
			continue
		}
		count++
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, d := range neighbors8 {
				next := Cell{X: cur.X + d[0], Z: cur.Z + d[1]}
				if _, ok := built[next]; ok && !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
	}
	return count
}

// adjacencyScore 统计共享同一材质的 4 邻接建造格子对（每对只计一次），
// 即"相邻格子材质必须互异"规则的违例数 num。limit 取 difficulty：
// num <= limit 时得 1 - num/limit，否则直接得 -1。没有任何相邻对时
// 得分恰为 1。
func adjacencyScore(built map[Cell]string, difficulty int) float64 {
	num := 0
	for c, material := range built {
		// 只看右侧与下方邻居，保证每对恰好统计一次。
		right := Cell{X: c.X + 1, Z: c.Z}
		down := Cell{X: c.X, Z: c.Z + 1}
		if other, ok := built[right]; ok && other == material {
			num++
		}
		if other, ok := built[down]; ok && other == material {
			num++
		}
	}
	if num > difficulty {
		return -1
	}
	return 1 - float64(num)/float64(difficulty)
}
