package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gin-gorm-bookstore/internal/core/cache"
	"gin-gorm-bookstore/internal/domain"
)

const (
	keyPublishers = "catalog:publishers"
	keyPurchased  = "catalog:purchased"
)

var (
	errBookNotFound = fmt.Errorf("book %w", domain.ErrNotFound)

	purchaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bookstore_purchases_total", Help: "Book purchase attempts by result"},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(purchaseTotal) }

type CatalogOptions struct {
	Cache    *cache.Cache // 为空则不缓存
	CacheTTL time.Duration
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

type CatalogService struct {
	repo     domain.CatalogRepository
	cache    *cache.Cache
	ttl      time.Duration
	log      *zap.Logger
	tracer   trace.Tracer
	validate *validator.Validate
}

func NewCatalogService(repo domain.CatalogRepository, o CatalogOptions) *CatalogService {
	s := &CatalogService{
		repo:     repo,
		cache:    o.Cache,
		ttl:      o.CacheTTL,
		log:      o.Logger,
		tracer:   o.Tracer,
		validate: newValidator(),
	}
	if s.ttl <= 0 {
		s.ttl = 30 * time.Second
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("gin-gorm-bookstore/catalog")
	}
	return s
}

func (s *CatalogService) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddBook 出版社/作者按名称查找或创建，然后追加一本书
func (s *CatalogService) AddBook(ctx context.Context, publisherName, authorName string, in domain.NewBook) (b *domain.Book, err error) {
	ctx, span := s.start(ctx, "AddBook",
		attribute.String("publisher.name", publisherName),
		attribute.String("author.name", authorName))
	defer func() { endSpan(span, err) }()

	publisherName = strings.TrimSpace(publisherName)
	authorName = strings.TrimSpace(authorName)
	in.Name = strings.TrimSpace(in.Name)
	var missing []string
	if publisherName == "" {
		missing = append(missing, "publisherName is required")
	}
	if authorName == "" {
		missing = append(missing, "authorName is required")
	}
	if err := s.validate.Struct(in); err != nil {
		missing = append(missing, fieldMessages(err)...)
	}
	if len(missing) > 0 {
		return nil, validationError(missing...)
	}

	book := domain.Book{
		Name:          in.Name,
		ImageURL:      in.ImageURL,
		Description:   in.Description,
		PublishedDate: in.PublishedDate.UTC(),
		TotalCopies:   in.TotalCopies,
	}
	if in.PurchasedCopies != nil {
		book.PurchasedCopies = *in.PurchasedCopies
	}

	err = s.repo.Transaction(ctx, func(tx domain.CatalogRepository) error {
		p, err := tx.UpsertPublisher(ctx, publisherName)
		if err != nil {
			return err
		}
		a, err := tx.UpsertAuthor(ctx, p.ID, authorName)
		if err != nil {
			return err
		}
		return tx.CreateBook(ctx, a.ID, &book)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("book added",
		zap.String("book_id", book.ID),
		zap.String("publisher", publisherName),
		zap.String("author", authorName))
	return &book, nil
}

// ListPublishers 完整层级，按创建顺序
func (s *CatalogService) ListPublishers(ctx context.Context) (ps []domain.Publisher, err error) {
	ctx, span := s.start(ctx, "ListPublishers")
	defer func() { endSpan(span, err) }()

	if s.cache == nil {
		return s.repo.ListPublishers(ctx)
	}
	return cache.GetOrLoadJSON(s.cache, ctx, keyPublishers, s.ttl, s.repo.ListPublishers)
}

// ListPurchased 只返回 purchasedCopies > 0 的书，附带作者/出版社名
func (s *CatalogService) ListPurchased(ctx context.Context) (out []domain.BookDetail, err error) {
	ctx, span := s.start(ctx, "ListPurchased")
	defer func() { endSpan(span, err) }()

	if s.cache == nil {
		return s.repo.ListPurchased(ctx)
	}
	return cache.GetOrLoadJSON(s.cache, ctx, keyPurchased, s.ttl, s.repo.ListPurchased)
}

func (s *CatalogService) GetBook(ctx context.Context, bookID string) (d *domain.BookDetail, err error) {
	ctx, span := s.start(ctx, "GetBook", attribute.String("book.id", bookID))
	defer func() { endSpan(span, err) }()

	loc, err := s.repo.LocateBook(ctx, bookID, false)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, errBookNotFound
	}
	detail := loc.Detail()
	return &detail, nil
}

// Purchase 剩余库存 -1，已售 +1；库存为 0 时返回 ErrNoCopiesAvailable
func (s *CatalogService) Purchase(ctx context.Context, bookID string) (b *domain.Book, err error) {
	ctx, span := s.start(ctx, "Purchase", attribute.String("book.id", bookID))
	defer func() {
		purchaseTotal.WithLabelValues(purchaseResult(err)).Inc()
		endSpan(span, err)
	}()

	err = s.repo.Transaction(ctx, func(tx domain.CatalogRepository) error {
		loc, err := tx.LocateBook(ctx, bookID, false)
		if err != nil {
			return err
		}
		if loc == nil {
			return errBookNotFound
		}
		ok, err := tx.Purchase(ctx, bookID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoCopiesAvailable
		}
		if loc, err = tx.LocateBook(ctx, bookID, false); err != nil {
			return err
		}
		if loc == nil {
			return errBookNotFound
		}
		b = &loc.Book
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	span.SetAttributes(attribute.Int("book.total_copies", b.TotalCopies))
	return b, nil
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoCopiesAvailable):
		return "sold_out"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// UpdateBook 整体覆盖 name/totalCopies/purchasedCopies，不做合并与校验
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, e domain.BookEdit) (d *domain.BookDetail, err error) {
	ctx, span := s.start(ctx, "UpdateBook", attribute.String("book.id", bookID))
	defer func() { endSpan(span, err) }()

	err = s.repo.Transaction(ctx, func(tx domain.CatalogRepository) error {
		loc, err := tx.LocateBook(ctx, bookID, true)
		if err != nil {
			return err
		}
		if loc == nil {
			return errBookNotFound
		}
		ok, err := tx.UpdateBook(ctx, bookID, loc.Version, e)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("book %s: %w", bookID, domain.ErrConflict)
		}
		loc.Book.Name = e.Name
		loc.Book.TotalCopies = e.TotalCopies
		loc.Book.PurchasedCopies = e.PurchasedCopies
		detail := loc.Detail()
		d = &detail
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return d, nil
}

// DeleteBook 删除书；作者没有书了就一起删除（出版社保留）
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) (err error) {
	ctx, span := s.start(ctx, "DeleteBook", attribute.String("book.id", bookID))
	defer func() { endSpan(span, err) }()

	var authorRemoved bool
	err = s.repo.Transaction(ctx, func(tx domain.CatalogRepository) error {
		loc, err := tx.LocateBook(ctx, bookID, true)
		if err != nil {
			return err
		}
		if loc == nil {
			return errBookNotFound
		}
		if err := tx.LockAuthor(ctx, loc.AuthorID); err != nil {
			return err
		}
		if err := tx.DeleteBook(ctx, bookID); err != nil {
			return err
		}
		left, err := tx.CountBooks(ctx, loc.AuthorID)
		if err != nil {
			return err
		}
		if left == 0 {
			authorRemoved = true
			return tx.DeleteAuthor(ctx, loc.AuthorID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("book deleted", zap.String("book_id", bookID), zap.Bool("author_removed", authorRemoved))
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keyPublishers, keyPurchased); err != nil {
		s.log.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}
