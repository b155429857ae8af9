package entity

import (
	"encoding/json"
	"time"
)

// Template PDF模板
type Template struct {
	ID               string          `json:"id" gorm:"primaryKey;size:36"`
	Name             string          `json:"name" gorm:"size:200;not null"`
	Description      string          `json:"description" gorm:"type:text"`
	IsPublic         bool            `json:"is_public" gorm:"default:true"`
	PdfFilePath      string          `json:"pdf_file_path" gorm:"size:512;not null"`
	PdfImagePath     string          `json:"pdf_image_path" gorm:"size:512"`
	CoordinateFields json.RawMessage `json:"coordinate_fields" gorm:"type:jsonb"`
	CreatedByID      string          `json:"created_by_id" gorm:"size:32;not null"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// 关联
	CreatedBy *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

func (Template) TableName() string {
	return "templates"
}
