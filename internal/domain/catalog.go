package domain

import (
	"context"
	"time"
)

// Book JSON 字段名与前端约定保持一致（_id / bookName / imgUrl / publisherDate）
type Book struct {
	ID              string    `json:"_id"`
	Name            string    `json:"bookName"`
	ImageURL        string    `json:"imgUrl"`
	Description     string    `json:"description"`
	PublishedDate   time.Time `json:"publisherDate"`
	TotalCopies     int       `json:"totalCopies"`
	PurchasedCopies int       `json:"purchasedCopies"`
}

type Author struct {
	ID    string `json:"_id"`
	Name  string `json:"authorName"`
	Books []Book `json:"books"`
}

type Publisher struct {
	ID      string   `json:"_id"`
	Name    string   `json:"publisherName"`
	Authors []Author `json:"authors"`
}

// BookDetail 附带作者/出版社名（仅用于展示，不落库）
type BookDetail struct {
	Book
	AuthorName    string `json:"authorName"`
	PublisherName string `json:"publisherName"`
}

// BookLocation 定位结果：书 + 所属作者/出版社
type BookLocation struct {
	Book          Book
	Version       int
	AuthorID      string
	AuthorName    string
	PublisherID   string
	PublisherName string
}

func (l *BookLocation) Detail() BookDetail {
	return BookDetail{Book: l.Book, AuthorName: l.AuthorName, PublisherName: l.PublisherName}
}

// NewBook add_book 的入参
type NewBook struct {
	Name            string     `json:"bookName"        validate:"required"`
	ImageURL        string     `json:"imgUrl"          validate:"required"`
	Description     string     `json:"description"     validate:"required"`
	PublishedDate   *time.Time `json:"publisherDate"   validate:"required"`
	TotalCopies     int        `json:"totalCopies"     validate:"required,gt=0"`
	PurchasedCopies *int       `json:"purchasedCopies" validate:"omitempty,gte=0"`
}

// BookEdit update_book 的入参，三个字段整体覆盖
type BookEdit struct {
	Name            string
	TotalCopies     int
	PurchasedCopies int
}

// CatalogRepository 行式存储：publishers / authors / books 以外键关联
type CatalogRepository interface {
	// Transaction 在同一个工作单元内执行 fn
	Transaction(ctx context.Context, fn func(r CatalogRepository) error) error

	// UpsertPublisher 按名称查找（最早创建者优先），不存在则创建
	UpsertPublisher(ctx context.Context, name string) (*Publisher, error)
	// UpsertAuthor 在出版社内按名称查找，不存在则创建；返回的行已加锁
	UpsertAuthor(ctx context.Context, publisherID, name string) (*Author, error)
	CreateBook(ctx context.Context, authorID string, b *Book) error

	ListPublishers(ctx context.Context) ([]Publisher, error)
	ListPurchased(ctx context.Context) ([]BookDetail, error)

	// LocateBook 找不到时返回 nil, nil
	LocateBook(ctx context.Context, bookID string, forUpdate bool) (*BookLocation, error)
	// Purchase 条件更新，返回是否有行被修改
	Purchase(ctx context.Context, bookID string) (bool, error)
	// UpdateBook 版本号不匹配时返回 false
	UpdateBook(ctx context.Context, bookID string, version int, e BookEdit) (bool, error)
	DeleteBook(ctx context.Context, bookID string) error
	LockAuthor(ctx context.Context, authorID string) error
	CountBooks(ctx context.Context, authorID string) (int64, error)
	DeleteAuthor(ctx context.Context, authorID string) error
}
