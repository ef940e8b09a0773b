package glyph

import (
	"embed"
	"fmt"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	xerrors "VoxelBench/internal/errors"
)

// 目标字形相关错误码。
const (
	CodeUnsupportedGlyph xerrors.Code = "UNSUPPORTED_GLYPH"
)

// ErrUnsupportedGlyph 表示目标字符串包含没有内置模板的字符。
// 该错误使整个任务失败：没有模板就无法生成有意义的目标掩码。
var ErrUnsupportedGlyph = xerrors.New(CodeUnsupportedGlyph, "no stencil for character")

func init() {
	xerrors.Register(CodeUnsupportedGlyph, xerrors.Attributes{
		Message:   "no stencil for character",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

//go:embed fonts/*.yaml
var fontFiles embed.FS

// fontFile 对应 fonts/ 下单个 YAML 文件的结构。
type fontFile struct {
	Name   string              `yaml:"name"`
	Width  int                 `yaml:"width"`
	Height int                 `yaml:"height"`
	Glyphs map[string][]string `yaml:"glyphs"`
}

// Font 是一套等尺寸的字符模板。
type Font struct {
	name     string
	width    int
	height   int
	stencils map[rune][][]bool
}

// DefaultFontName 是未显式配置时使用的字体。
const DefaultFontName = "5x5"

var (
	loadOnce sync.Once
	loadErr  error
	fonts    map[string]*Font
)

func loadFonts() {
	fonts = make(map[string]*Font)
	entries, err := fontFiles.ReadDir("fonts")
	if err != nil {
		loadErr = fmt.Errorf("读取内置字体目录失败: %w", err)
		return
	}
	for _, entry := range entries {
		raw, err := fontFiles.ReadFile("fonts/" + entry.Name())
		if err != nil {
			loadErr = fmt.Errorf("读取字体 %s 失败: %w", entry.Name(), err)
			return
		}
		var file fontFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			loadErr = fmt.Errorf("解析字体 %s 失败: %w", entry.Name(), err)
			return
		}
		font, err := buildFont(file)
		if err != nil {
			loadErr = fmt.Errorf("字体 %s 非法: %w", entry.Name(), err)
			return
		}
		fonts[font.name] = font
	}
	if _, ok := fonts[DefaultFontName]; !ok {
		loadErr = fmt.Errorf("缺少默认字体 %s", DefaultFontName)
	}
}

func buildFont(file fontFile) (*Font, error) {
	if file.Name == "" {
		return nil, fmt.Errorf("字体缺少名称")
	}
	if file.Width <= 0 || file.Height <= 0 {
		return nil, fmt.Errorf("模板尺寸非法: %dx%d", file.Width, file.Height)
	}
	font := &Font{
		name:     file.Name,
		width:    file.Width,
		height:   file.Height,
		stencils: make(map[rune][][]bool, len(file.Glyphs)),
	}
	for key, rows := range file.Glyphs {
		runes := []rune(key)
		if len(runes) != 1 {
			return nil, fmt.Errorf("字形键 %q 必须是单个字符", key)
		}
		if len(rows) != file.Height {
			return nil, fmt.Errorf("字形 %q 的行数 %d 与高度 %d 不符", key, len(rows), file.Height)
		}
		stencil := make([][]bool, file.Height)
		for i, row := range rows {
			if len(row) != file.Width {
				return nil, fmt.Errorf("字形 %q 第 %d 行宽度 %d 与宽度 %d 不符", key, i+1, len(row), file.Width)
			}
			cells := make([]bool, file.Width)
			for j := 0; j < len(row); j++ {
				cells[j] = row[j] == '#'
			}
			stencil[i] = cells
		}
		font.stencils[runes[0]] = stencil
	}
	return font, nil
}

// LookupFont 按名称返回内置字体。
func LookupFont(name string) (*Font, error) {
	loadOnce.Do(loadFonts)
	if loadErr != nil {
		return nil, loadErr
	}
	if name == "" {
		name = DefaultFontName
	}
	font, ok := fonts[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "unknown font "+strconv.Quote(name))
	}
	return font, nil
}

// Name 返回字体名称。
func (f *Font) Name() string { return f.name }

// Width 返回单个模板的宽度。
func (f *Font) Width() int { return f.width }

// Height 返回单个模板的高度。
func (f *Font) Height() int { return f.height }

// Mask 是目标字符串渲染出的二维布尔网格。坐标 (x, z) 中
// x 为列（沿书写方向递增），z 为行。只有 "on" 格子计入形状指标；
// 完美建造中所有 "off" 格子保持为空。每个 "on" 格子额外要求与
// 其 4 邻居材质互异，该约束由邻接指标统一度量，不附着在单元上。
type Mask struct {
	width  int
	height int
	on     map[[2]int]bool
}

// Width 返回掩码宽度，等于 len(s)*(stencilWidth+1)-1。
func (m *Mask) Width() int { return m.width }

// Height 返回掩码高度。
func (m *Mask) Height() int { return m.height }

// On 判断 (x, z) 是否为目标格子。
func (m *Mask) On(x, z int) bool {
	return m.on[[2]int{x, z}]
}

// OnCount 返回目标格子总数。
func (m *Mask) OnCount() int { return len(m.on) }

// Cells 返回所有目标格子坐标，顺序不作保证。
func (m *Mask) Cells() [][2]int {
	out := make([][2]int, 0, len(m.on))
	for c := range m.on {
		out = append(out, c)
	}
	return out
}

// InFootprint 判断 (x, z) 是否落在掩码的包围盒足迹内。
func (m *Mask) InFootprint(x, z int) bool {
	return x >= 0 && x < m.width && z >= 0 && z < m.height
}

// Render 把目标字符串渲染为参考掩码：每个字符对应一块固定尺寸模板，
// 从左到右排布，相邻模板之间留一列空白。包含无模板字符时返回
// UNSUPPORTED_GLYPH。
func (f *Font) Render(s string) (*Mask, error) {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "target string is empty")
	}
	mask := &Mask{
		width:  len(runes)*(f.width+1) - 1,
		height: f.height,
		on:     make(map[[2]int]bool),
	}
	for i, r := range runes {
		stencil, ok := f.stencils[r]
		if !ok {
			return nil, xerrors.Wrap(CodeUnsupportedGlyph, ErrUnsupportedGlyph,
				"character "+strconv.QuoteRune(r))
		}
		offset := i * (f.width + 1)
		for z, row := range stencil {
			for x, set := range row {
				if set {
					mask.on[[2]int{offset + x, z}] = true
				}
			}
		}
	}
	return mask, nil
}
