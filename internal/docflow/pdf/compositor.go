package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"go.uber.org/zap"
)

// ErrRender 模板解析或PDF输出失败
var ErrRender = errors.New("pdf render failed")

// Compositor 把文档数据按坐标覆盖到模板PDF上
type Compositor struct {
	logger *zap.Logger
}

// NewCompositor 创建合成器
func NewCompositor(logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{logger: logger}
}

// Render 合成文档：模板PDF第一页做底，字段数据覆盖其上，返回新PDF字节流
func (c *Compositor) Render(templatePDF []byte, data *DocumentData) (out []byte, err error) {
	// gofpdi 对损坏的PDF直接panic，统一转成渲染错误
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: import template: %v", ErrRender, r)
		}
	}()

	doc := gofpdf.New("P", "pt", "A4", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(templatePDF))
	tplID := importer.ImportPageFromStream(doc, &rs, 1, "/MediaBox")

	pageW, pageH := importedPageSize(importer)
	if pageW <= 0 || pageH <= 0 {
		return nil, fmt.Errorf("%w: template has no readable page size", ErrRender)
	}

	doc.AddPageFormat("P", gofpdf.SizeType{Wd: pageW, Ht: pageH})
	importer.UseImportedTemplate(doc, tplID, 0, 0, pageW, pageH)

	plan := BuildPlan(pageW, pageH, data, c.logger)
	c.execute(doc, plan)

	if doc.Err() {
		return nil, fmt.Errorf("%w: %v", ErrRender, doc.Error())
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// execute 把左下角坐标系的计划换算到gofpdf的左上角坐标系并绘制
func (c *Compositor) execute(doc *gofpdf.Fpdf, plan *Plan) {
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetDrawColor(0, 0, 0)
	doc.SetLineWidth(0.7)
	for i, op := range plan.Ops {
		switch o := op.(type) {
		case TextOp:
			doc.SetFont("Helvetica", "", o.Size)
			doc.SetTextColor(o.Color.R, o.Color.G, o.Color.B)
			doc.Text(o.X, plan.PageHeight-o.Y, tr(o.Text))
		case ImageOp:
			name := fmt.Sprintf("sig-%d", i)
			opts := gofpdf.ImageOptions{ImageType: o.Format, ReadDpi: false}
			doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(o.Data))
			doc.ImageOptions(name, o.X, plan.PageHeight-o.Y-o.Height, o.Width, o.Height, false, opts, 0, "")
		case RectOp:
			doc.Rect(o.X, plan.PageHeight-o.Y-o.Height, o.Width, o.Height, "D")
		case LineOp:
			doc.Line(o.X1, plan.PageHeight-o.Y1, o.X2, plan.PageHeight-o.Y2)
		}
	}
}

func importedPageSize(importer *gofpdi.Importer) (float64, float64) {
	sizes := importer.GetPageSizes()
	box, ok := sizes[1]["/MediaBox"]
	if !ok {
		return 0, 0
	}
	return box["w"], box["h"]
}
