package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/inkmill/docflow/internal/docflow/entity"
)

// 字段类型常量
const (
	FieldText      = "text"
	FieldSignature = "signature"
	FieldTable     = "table"
)

// Field 坐标字段（模板设计器产出，左上角原点）
type Field struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Label         string        `json:"label,omitempty"`
	X             float64       `json:"x"`
	Y             float64       `json:"y"`
	Width         float64       `json:"width"`
	Height        float64       `json:"height"`
	FontSize      float64       `json:"fontSize,omitempty"`
	FontColor     string        `json:"fontColor,omitempty"`
	ReviewerEmail string        `json:"reviewerEmail,omitempty"`
	Value         string        `json:"value,omitempty"`
	TableID       string        `json:"tableId,omitempty"`
	Columns       []TableColumn `json:"columns,omitempty"`
}

// TableColumn 表格列定义
type TableColumn struct {
	Title string  `json:"title,omitempty"`
	Width float64 `json:"width"`
}

// TableInit 表格区域定义
type TableInit struct {
	TableID string        `json:"tableId"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	Columns []TableColumn `json:"columns"`
}

// FlexInt 同时容忍数字和字符串编码的整数（设计器两种格式都会出现）
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = FlexInt(int(v))
	return nil
}

// TableCell 表格单元格数据
type TableCell struct {
	TableID string  `json:"tableId"`
	Row     FlexInt `json:"location_row"`
	Column  FlexInt `json:"location_column"`
	Value   string  `json:"value"`
}

// StringMap 宽容解析的字符串映射，数字和布尔值转为字符串
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			// 空值等同于缺失
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	*m = out
	return nil
}

// DocumentData 文档累积数据（工作流写入，合成器只读）
type DocumentData struct {
	Title            string      `json:"title"`
	Content          string      `json:"content"`
	CoordinateFields []Field     `json:"coordinateFields"`
	CoordinateData   StringMap   `json:"coordinateData"`
	Signatures       StringMap   `json:"signatures"`
	TableFields      []TableInit `json:"table init fields"`
	TableData        []TableCell `json:"table data"`
}

// ParseDocumentData 从JSONB数据块解析文档数据
func ParseDocumentData(data entity.JSONB) (*DocumentData, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document data: %w", err)
	}
	var parsed DocumentData
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse document data: %w", err)
	}
	return &parsed, nil
}

// ParseFields 解析模板的坐标字段列表
func ParseFields(raw json.RawMessage) ([]Field, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields []Field
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse coordinate fields: %w", err)
	}
	return fields, nil
}

// Tables 返回全部表格区域：独立的表格定义加上设计器内联的table字段
func (d *DocumentData) Tables() []TableInit {
	tables := make([]TableInit, 0, len(d.TableFields))
	seen := make(map[string]bool)
	for _, t := range d.TableFields {
		tables = append(tables, t)
		seen[t.TableID] = true
	}
	for _, f := range d.CoordinateFields {
		if f.Type != FieldTable {
			continue
		}
		id := f.TableID
		if id == "" {
			id = f.ID
		}
		if seen[id] {
			continue
		}
		tables = append(tables, TableInit{
			TableID: id,
			X:       f.X,
			Y:       f.Y,
			Width:   f.Width,
			Height:  f.Height,
			Columns: f.Columns,
		})
		seen[id] = true
	}
	return tables
}
