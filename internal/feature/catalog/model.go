package catalog

import "time"

type PublisherModel struct {
	ID   string `gorm:"primaryKey;type:varchar(36)"`
	Name string `gorm:"uniqueIndex;size:191;not null"`

	Authors []AuthorModel `gorm:"foreignKey:PublisherID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PublisherModel) TableName() string { return "publishers" }

// AuthorModel 同一出版社下作者名唯一
type AuthorModel struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	PublisherID string `gorm:"uniqueIndex:uk_author_publisher_name;type:varchar(36);not null"`
	Name        string `gorm:"uniqueIndex:uk_author_publisher_name;size:191;not null"`

	Books []BookModel `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuthorModel) TableName() string { return "authors" }

// BookModel TotalCopies 表示剩余库存；Version 每次变更 +1
type BookModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID        string    `gorm:"index;type:varchar(36);not null"`
	Name            string    `gorm:"size:255;not null"`
	ImageURL        string    `gorm:"column:img_url;size:1024;not null"`
	Description     string    `gorm:"type:text;not null"`
	PublishedDate   time.Time `gorm:"not null"`
	TotalCopies     int       `gorm:"not null"`
	PurchasedCopies int       `gorm:"not null;default:0;index"`
	Version         int       `gorm:"not null;default:1"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (BookModel) TableName() string { return "books" }

// Models AutoMigrate 用（顺序即外键依赖顺序）
func Models() []any { return []any{&PublisherModel{}, &AuthorModel{}, &BookModel{}} }
