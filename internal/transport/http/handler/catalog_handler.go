package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gin-gorm-bookstore/internal/domain"
	httpez "gin-gorm-bookstore/internal/transport/http/ez"
	resp "gin-gorm-bookstore/internal/transport/http/response"
)

// CatalogService 由 *service.CatalogService 实现
type CatalogService interface {
	AddBook(ctx context.Context, publisherName, authorName string, in domain.NewBook) (*domain.Book, error)
	ListPublishers(ctx context.Context) ([]domain.Publisher, error)
	ListPurchased(ctx context.Context) ([]domain.BookDetail, error)
	GetBook(ctx context.Context, bookID string) (*domain.BookDetail, error)
	Purchase(ctx context.Context, bookID string) (*domain.Book, error)
	UpdateBook(ctx context.Context, bookID string, e domain.BookEdit) (*domain.BookDetail, error)
	DeleteBook(ctx context.Context, bookID string) error
}

type CatalogHandler struct{ svc CatalogService }

func NewCatalogHandler(svc CatalogService) *CatalogHandler { return &CatalogHandler{svc: svc} }

type bookDetailsIn struct {
	BookName        string    `json:"bookName"`
	ImgURL          string    `json:"imgUrl"`
	Description     string    `json:"description"`
	PublisherDate   Timestamp `json:"publisherDate"`
	TotalCopies     Count     `json:"totalCopies"`
	PurchasedCopies *Count    `json:"purchasedCopies"`
}

type addBookIn struct {
	PublisherName string         `json:"publisherName"`
	AuthorName    string         `json:"authorName"`
	BookDetails   *bookDetailsIn `json:"bookDetails"`
}

type bookOut struct {
	Message string       `json:"message"`
	Book    *domain.Book `json:"book"`
}

type bookIDIn struct {
	BookID string `json:"bookId" uri:"bookId"`
}

type editBookIn struct {
	BookID          string `uri:"bookId" json:"-"`
	BookName        string `json:"bookName"`
	TotalCopies     Count  `json:"totalCopies"`
	PurchasedCopies Count  `json:"purchasedCopies"`
}

func (h *CatalogHandler) MountAPI(g *gin.RouterGroup) {
	ez := httpez.New(g)

	httpez.RegisterAction(ez, httpez.Action[addBookIn, bookOut]{
		Method: http.MethodPost,
		Path:   "/books",
		Binder: httpez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *addBookIn) (bookOut, error) {
			if in.BookDetails == nil {
				return bookOut{}, httpez.BadRequest("Book details are required")
			}
			d := in.BookDetails
			nb := domain.NewBook{
				Name:          d.BookName,
				ImageURL:      d.ImgURL,
				Description:   d.Description,
				PublishedDate: d.PublisherDate.Ptr(),
				TotalCopies:   int(d.TotalCopies),
			}
			if d.PurchasedCopies != nil {
				n := int(*d.PurchasedCopies)
				nb.PurchasedCopies = &n
			}
			b, err := h.svc.AddBook(c.Request.Context(), in.PublisherName, in.AuthorName, nb)
			if err != nil {
				return bookOut{}, err
			}
			return bookOut{Message: "Book added successfully", Book: b}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.Publisher]{
		Method: http.MethodGet,
		Path:   "/publishers",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Publisher, error) {
			return h.svc.ListPublishers(c.Request.Context())
		},
	})

	httpez.RegisterAction(ez, httpez.Action[bookIDIn, bookOut]{
		Method: http.MethodPost,
		Path:   "/buy",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *bookIDIn) (bookOut, error) {
			if in.BookID == "" {
				return bookOut{}, httpez.BadRequest("bookId is required")
			}
			b, err := h.svc.Purchase(c.Request.Context(), in.BookID)
			if err != nil {
				return bookOut{}, err
			}
			return bookOut{Message: "Book purchased successfully", Book: b}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.BookDetail]{
		Method: http.MethodGet,
		Path:   "/purchased-books",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.BookDetail, error) {
			return h.svc.ListPurchased(c.Request.Context())
		},
	})

	httpez.RegisterAction(ez, httpez.Action[editBookIn, *domain.BookDetail]{
		Method: http.MethodPut,
		Path:   "/books/:bookId",
		Binder: httpez.BindURIJSON,
		Handler: func(c *gin.Context, in *editBookIn) (*domain.BookDetail, error) {
			return h.svc.UpdateBook(c.Request.Context(), in.BookID, domain.BookEdit{
				Name:            in.BookName,
				TotalCopies:     int(in.TotalCopies),
				PurchasedCopies: int(in.PurchasedCopies),
			})
		},
	})

	httpez.RegisterAction(ez, httpez.Action[bookIDIn, resp.Msg]{
		Method: http.MethodDelete,
		Path:   "/books/:bookId",
		Binder: httpez.BindURI,
		Handler: func(c *gin.Context, in *bookIDIn) (resp.Msg, error) {
			if err := h.svc.DeleteBook(c.Request.Context(), in.BookID); err != nil {
				return resp.Msg{}, err
			}
			return resp.Message("Book deleted successfully"), nil
		},
	})
}

// MountAdmin 管理端只读接口
func (h *CatalogHandler) MountAdmin(g *gin.RouterGroup) {
	ez := httpez.New(g)

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.BookDetail]{
		Method: http.MethodGet,
		Path:   "/purchased-books",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.BookDetail, error) {
			return h.svc.ListPurchased(c.Request.Context())
		},
	})

	httpez.RegisterAction(ez, httpez.Action[bookIDIn, *domain.BookDetail]{
		Method: http.MethodGet,
		Path:   "/books/:bookId",
		Binder: httpez.BindURI,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, in *bookIDIn) (*domain.BookDetail, error) {
			return h.svc.GetBook(c.Request.Context(), in.BookID)
		},
	})
}

func (h *CatalogHandler) Priority() int { return 20 }
