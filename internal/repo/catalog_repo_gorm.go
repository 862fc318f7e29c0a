package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gin-gorm-bookstore/internal/domain"
	"gin-gorm-bookstore/internal/feature/catalog"
	"gin-gorm-bookstore/pkg/utils"
)

type CatalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) *CatalogRepo { return &CatalogRepo{db: db} }

var _ domain.CatalogRepository = (*CatalogRepo)(nil)

func (r *CatalogRepo) Transaction(ctx context.Context, fn func(domain.CatalogRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogRepo{db: tx})
	})
}

func (r *CatalogRepo) UpsertPublisher(ctx context.Context, name string) (*domain.Publisher, error) {
	db := r.db.WithContext(ctx)
	find := func() (*catalog.PublisherModel, error) {
		var ps []catalog.PublisherModel
		if err := db.Where("name = ?", name).Order("id").Limit(1).Find(&ps).Error; err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			return nil, nil
		}
		return &ps[0], nil
	}

	p, err := find()
	if err != nil {
		return nil, dbErr("find publisher", err)
	}
	if p == nil {
		m := catalog.PublisherModel{ID: utils.NewID(), Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
			return nil, dbErr("create publisher", err)
		}
		// 并发下可能被别人抢先创建，以库里的为准
		if p, err = find(); err != nil {
			return nil, dbErr("find publisher", err)
		}
		if p == nil {
			return nil, dbErr("create publisher", gorm.ErrRecordNotFound)
		}
	}
	return &domain.Publisher{ID: p.ID, Name: p.Name, Authors: []domain.Author{}}, nil
}

func (r *CatalogRepo) UpsertAuthor(ctx context.Context, publisherID, name string) (*domain.Author, error) {
	db := r.db.WithContext(ctx)
	find := func() (*catalog.AuthorModel, error) {
		var as []catalog.AuthorModel
		err := forUpdate(db).
			Where("publisher_id = ? AND name = ?", publisherID, name).
			Order("id").Limit(1).Find(&as).Error
		if err != nil {
			return nil, err
		}
		if len(as) == 0 {
			return nil, nil
		}
		return &as[0], nil
	}

	a, err := find()
	if err != nil {
		return nil, dbErr("find author", err)
	}
	if a == nil {
		m := catalog.AuthorModel{ID: utils.NewID(), PublisherID: publisherID, Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
			return nil, dbErr("create author", err)
		}
		if a, err = find(); err != nil {
			return nil, dbErr("find author", err)
		}
		if a == nil {
			return nil, dbErr("create author", gorm.ErrRecordNotFound)
		}
	}
	return &domain.Author{ID: a.ID, Name: a.Name, Books: []domain.Book{}}, nil
}

func (r *CatalogRepo) CreateBook(ctx context.Context, authorID string, b *domain.Book) error {
	if b.ID == "" {
		b.ID = utils.NewID()
	}
	m := catalog.BookModel{
		ID:              b.ID,
		AuthorID:        authorID,
		Name:            b.Name,
		ImageURL:        b.ImageURL,
		Description:     b.Description,
		PublishedDate:   b.PublishedDate,
		TotalCopies:     b.TotalCopies,
		PurchasedCopies: b.PurchasedCopies,
		Version:         1,
	}
	return dbErr("create book", r.db.WithContext(ctx).Create(&m).Error)
}

func (r *CatalogRepo) ListPublishers(ctx context.Context) ([]domain.Publisher, error) {
	var ps []catalog.PublisherModel
	err := r.db.WithContext(ctx).
		Preload("Authors", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Authors.Books", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id").
		Find(&ps).Error
	if err != nil {
		return nil, dbErr("list publishers", err)
	}

	out := make([]domain.Publisher, 0, len(ps))
	for _, p := range ps {
		dp := domain.Publisher{ID: p.ID, Name: p.Name, Authors: make([]domain.Author, 0, len(p.Authors))}
		for _, a := range p.Authors {
			da := domain.Author{ID: a.ID, Name: a.Name, Books: make([]domain.Book, 0, len(a.Books))}
			for i := range a.Books {
				da.Books = append(da.Books, toBook(&a.Books[i]))
			}
			dp.Authors = append(dp.Authors, da)
		}
		out = append(out, dp)
	}
	return out, nil
}

// 书 + 作者/出版社名的联表行
type bookRow struct {
	catalog.BookModel
	AuthorName    string
	PublisherID   string
	PublisherName string
}

func (r *CatalogRepo) joined(db *gorm.DB) *gorm.DB {
	return db.Table("books").
		Select("books.*, authors.name AS author_name, authors.publisher_id AS publisher_id, publishers.name AS publisher_name").
		Joins("JOIN authors ON authors.id = books.author_id").
		Joins("JOIN publishers ON publishers.id = authors.publisher_id")
}

func (r *CatalogRepo) ListPurchased(ctx context.Context) ([]domain.BookDetail, error) {
	var rows []bookRow
	err := r.joined(r.db.WithContext(ctx)).
		Where("books.purchased_copies > 0").
		Order("publishers.id, authors.id, books.id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbErr("list purchased", err)
	}
	out := make([]domain.BookDetail, 0, len(rows))
	for i := range rows {
		out = append(out, domain.BookDetail{
			Book:          toBook(&rows[i].BookModel),
			AuthorName:    rows[i].AuthorName,
			PublisherName: rows[i].PublisherName,
		})
	}
	return out, nil
}

func (r *CatalogRepo) LocateBook(ctx context.Context, bookID string, lock bool) (*domain.BookLocation, error) {
	q := r.joined(r.db.WithContext(ctx)).Where("books.id = ?", bookID).Limit(1)
	if lock {
		q = forUpdate(q)
	}
	var rows []bookRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, dbErr("locate book", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &domain.BookLocation{
		Book:          toBook(&row.BookModel),
		Version:       row.Version,
		AuthorID:      row.AuthorID,
		AuthorName:    row.AuthorName,
		PublisherID:   row.PublisherID,
		PublisherName: row.PublisherName,
	}, nil
}

func (r *CatalogRepo) Purchase(ctx context.Context, bookID string) (bool, error) {
	// 单条条件更新，读改写在库内完成，不会丢更新
	res := r.db.WithContext(ctx).Model(&catalog.BookModel{}).
		Where("id = ? AND total_copies > 0", bookID).
		Updates(map[string]any{
			"total_copies":     gorm.Expr("total_copies - ?", 1),
			"purchased_copies": gorm.Expr("purchased_copies + ?", 1),
			"version":          gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return false, dbErr("purchase book", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CatalogRepo) UpdateBook(ctx context.Context, bookID string, version int, e domain.BookEdit) (bool, error) {
	res := r.db.WithContext(ctx).Model(&catalog.BookModel{}).
		Where("id = ? AND version = ?", bookID, version).
		Updates(map[string]any{
			"name":             e.Name,
			"total_copies":     e.TotalCopies,
			"purchased_copies": e.PurchasedCopies,
			"version":          gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return false, dbErr("update book", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CatalogRepo) DeleteBook(ctx context.Context, bookID string) error {
	return dbErr("delete book", r.db.WithContext(ctx).Where("id = ?", bookID).Delete(&catalog.BookModel{}).Error)
}

func (r *CatalogRepo) LockAuthor(ctx context.Context, authorID string) error {
	var ids []string
	err := forUpdate(r.db.WithContext(ctx).Model(&catalog.AuthorModel{})).
		Where("id = ?", authorID).Pluck("id", &ids).Error
	return dbErr("lock author", err)
}

func (r *CatalogRepo) CountBooks(ctx context.Context, authorID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&catalog.BookModel{}).Where("author_id = ?", authorID).Count(&n).Error
	return n, dbErr("count books", err)
}

func (r *CatalogRepo) DeleteAuthor(ctx context.Context, authorID string) error {
	return dbErr("delete author", r.db.WithContext(ctx).Where("id = ?", authorID).Delete(&catalog.AuthorModel{}).Error)
}

func toBook(m *catalog.BookModel) domain.Book {
	return domain.Book{
		ID:              m.ID,
		Name:            m.Name,
		ImageURL:        m.ImageURL,
		Description:     m.Description,
		PublishedDate:   m.PublishedDate,
		TotalCopies:     m.TotalCopies,
		PurchasedCopies: m.PurchasedCopies,
	}
}
