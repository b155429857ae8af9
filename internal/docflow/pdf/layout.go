package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"go.uber.org/zap"
)

// 默认字号
const (
	defaultFontSize = 12
	tableFontSize   = 10
	textPadding     = 2
)

// DrawOp 单条绘制指令（PDF左下角坐标系）
type DrawOp interface {
	isDrawOp()
}

// TextOp 文本绘制，Y为基线位置
type TextOp struct {
	X, Y  float64
	Size  float64
	Color RGB
	Text  string
}

// ImageOp 图片绘制，(X, Y)为图片左下角
type ImageOp struct {
	X, Y          float64
	Width, Height float64
	Format        string
	Data          []byte
}

// RectOp 矩形边框，(X, Y)为左下角
type RectOp struct {
	X, Y          float64
	Width, Height float64
}

// LineOp 线段
type LineOp struct {
	X1, Y1, X2, Y2 float64
}

func (TextOp) isDrawOp()  {}
func (ImageOp) isDrawOp() {}
func (RectOp) isDrawOp()  {}
func (LineOp) isDrawOp()  {}

// Plan 单页渲染计划
type Plan struct {
	PageWidth  float64
	PageHeight float64
	Ops        []DrawOp
}

// AdjustY 把左上角原点的字段坐标换算到PDF左下角原点
func AdjustY(pageHeight, y, height float64) float64 {
	return pageHeight - y - height
}

type planner struct {
	pageW, pageH float64
	data         *DocumentData
	logger       *zap.Logger
	ops          []DrawOp
}

// BuildPlan 生成渲染计划：先普通字段（按模板顺序），再全部表格
func BuildPlan(pageW, pageH float64, data *DocumentData, logger *zap.Logger) *Plan {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &planner{pageW: pageW, pageH: pageH, data: data, logger: logger}
	for _, f := range data.CoordinateFields {
		switch f.Type {
		case FieldTable:
			// 表格统一在普通字段之后渲染
		case FieldSignature:
			p.signatureField(f)
		default:
			p.textField(f)
		}
	}
	for _, t := range data.Tables() {
		p.tableField(t)
	}
	return &Plan{PageWidth: pageW, PageHeight: pageH, Ops: p.ops}
}

func (p *planner) textField(f Field) {
	value := p.data.CoordinateData[f.ID]
	if value == "" {
		return
	}
	size := f.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	adjY := AdjustY(p.pageH, f.Y, f.Height)
	p.ops = append(p.ops, TextOp{
		X:     f.X + textPadding,
		Y:     adjY + textPadding,
		Size:  size,
		Color: ParseHexColor(f.FontColor),
		Text:  value,
	})
}

func (p *planner) signatureField(f Field) {
	if f.ReviewerEmail == "" {
		return
	}
	raw := p.data.Signatures[f.ReviewerEmail]
	if raw == "" {
		return
	}
	adjY := AdjustY(p.pageH, f.Y, f.Height)
	img, format, err := decodeSignatureImage(raw)
	if err != nil {
		p.logger.Warn("signature image decode failed, falling back to text",
			zap.String("reviewer", f.ReviewerEmail),
			zap.Error(err))
		p.ops = append(p.ops, TextOp{
			X:     f.X,
			Y:     adjY + f.Height/2,
			Size:  defaultFontSize,
			Color: RGB{},
			Text:  fmt.Sprintf("[signature: %s]", f.ReviewerEmail),
		})
		return
	}
	p.ops = append(p.ops, ImageOp{
		X:      f.X,
		Y:      adjY,
		Width:  f.Width,
		Height: f.Height,
		Format: format,
		Data:   img,
	})
}

// decodeSignatureImage 去掉data-URI前缀并解码base64，同时校验图片格式
func decodeSignatureImage(raw string) ([]byte, string, error) {
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	switch format {
	case "png":
		return data, "PNG", nil
	case "jpeg":
		return data, "JPG", nil
	default:
		return nil, "", fmt.Errorf("unsupported image format %q", format)
	}
}

func (p *planner) tableField(t TableInit) {
	if len(t.Columns) == 0 {
		p.logger.Warn("table has no columns, skipping", zap.String("table", t.TableID))
		return
	}
	adjY := AdjustY(p.pageH, t.Y, t.Height)
	headerH := math.Min(30, math.Max(20, t.Height*0.12))
	widths := ResolveColumnWidths(t.Width, t.Columns)

	cells := make([]TableCell, 0)
	maxRow := -1
	for _, c := range p.data.TableData {
		if c.TableID != t.TableID {
			continue
		}
		cells = append(cells, c)
		if int(c.Row) > maxRow {
			maxRow = int(c.Row)
		}
	}
	rows := 3
	if maxRow >= 0 {
		rows = maxRow + 1
	}
	rowH := (t.Height - headerH) / float64(rows)

	// 边框：外框、表头分隔线、列分隔线
	p.ops = append(p.ops, RectOp{X: t.X, Y: adjY, Width: t.Width, Height: t.Height})
	headerLineY := adjY + t.Height - headerH
	p.ops = append(p.ops, LineOp{X1: t.X, Y1: headerLineY, X2: t.X + t.Width, Y2: headerLineY})
	cx := t.X
	for i := 0; i < len(widths)-1; i++ {
		cx += widths[i]
		p.ops = append(p.ops, LineOp{X1: cx, Y1: adjY, X2: cx, Y2: adjY + t.Height})
	}

	// 表头标题
	colX := t.X
	for i, col := range t.Columns {
		if col.Title != "" {
			p.ops = append(p.ops, TextOp{
				X:    colX + textPadding,
				Y:    headerLineY + headerH/2 - tableFontSize/2,
				Size: tableFontSize,
				Text: col.Title,
			})
		}
		colX += widths[i]
	}

	// 单元格数据，越界的丢弃
	for _, c := range cells {
		row, col := int(c.Row), int(c.Column)
		if c.Value == "" {
			continue
		}
		if row < 0 || row >= rows || col < 0 || col >= len(widths) {
			p.logger.Warn("table cell out of bounds, dropping",
				zap.String("table", t.TableID),
				zap.Int("row", row),
				zap.Int("column", col))
			continue
		}
		colStart := t.X
		for i := 0; i < col; i++ {
			colStart += widths[i]
		}
		cellY := adjY + t.Height - headerH - float64(row+1)*rowH
		p.ops = append(p.ops, TextOp{
			X:    colStart + textPadding,
			Y:    cellY + textPadding,
			Size: tableFontSize,
			Text: c.Value,
		})
	}
}

// ResolveColumnWidths 计算列宽：零或负宽度的列均分剩余宽度
func ResolveColumnWidths(total float64, cols []TableColumn) []float64 {
	widths := make([]float64, len(cols))
	used := 0.0
	invalid := 0
	for _, c := range cols {
		if c.Width > 0 {
			used += c.Width
		} else {
			invalid++
		}
	}
	share := 0.0
	if invalid > 0 {
		remaining := total - used
		if remaining < 0 {
			remaining = 0
		}
		share = remaining / float64(invalid)
	}
	for i, c := range cols {
		if c.Width > 0 {
			widths[i] = c.Width
		} else {
			widths[i] = share
		}
	}
	return widths
}
