package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gin-gorm-bookstore/internal/core/auth"
	"gin-gorm-bookstore/internal/repo"
	"gin-gorm-bookstore/internal/service"
	"gin-gorm-bookstore/internal/testutil"
)

type harness struct {
	api   *gin.Engine
	admin *gin.Engine
	jwt   *auth.JWTer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	users, err := service.NewUserService(repo.NewUserRepo(db), service.UserOptions{
		AdminDomains: []string{"numetry.com"},
		BcryptCost:   bcrypt.MinCost,
	})
	require.NoError(t, err)
	jwt := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "bookstore", TTL: time.Hour}
	d := Deps{
		Logger:     zap.NewNop(),
		Catalog:    service.NewCatalogService(repo.NewCatalogRepo(db), service.CatalogOptions{}),
		Users:      users,
		JWT:        jwt,
		Mode:       gin.TestMode,
		LoginRPS:   100,
		LoginBurst: 100,
	}
	return &harness{api: NewAPIEngine(d), admin: NewAdminEngine(d), jwt: jwt}
}

func call(t *testing.T, h http.Handler, method, path string, body any, header ...string) (int, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type bookJSON struct {
	ID              string `json:"_id"`
	BookName        string `json:"bookName"`
	TotalCopies     int    `json:"totalCopies"`
	PurchasedCopies int    `json:"purchasedCopies"`
	AuthorName      string `json:"authorName"`
	PublisherName   string `json:"publisherName"`
	PublisherDate   string `json:"publisherDate"`
}

func addBook(t *testing.T, h *harness, publisher, author, name string, copies any) bookJSON {
	t.Helper()
	code, raw := call(t, h.api, http.MethodPost, "/api/auth/books", gin.H{
		"publisherName": publisher,
		"authorName":    author,
		"bookDetails": gin.H{
			"bookName":      name,
			"imgUrl":        "https://img.example/" + name,
			"description":   "about " + name,
			"publisherDate": "2021-03-04",
			"totalCopies":   copies,
		},
	})
	require.Equal(t, http.StatusCreated, code, string(raw))
	out := decode[struct {
		Message string   `json:"message"`
		Book    bookJSON `json:"book"`
	}](t, raw)
	assert.Equal(t, "Book added successfully", out.Message)
	return out.Book
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	code, raw := call(t, h.api, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":1}`, string(raw))

	code, raw = call(t, h.admin, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestCatalogRoutes(t *testing.T) {
	h := newHarness(t)

	b := addBook(t, h, "Penguin", "Orwell", "1984", "2")
	assert.Equal(t, 2, b.TotalCopies)
	assert.Equal(t, 0, b.PurchasedCopies)
	assert.Equal(t, "2021-03-04T00:00:00Z", b.PublisherDate)

	code, raw := call(t, h.api, http.MethodGet, "/api/auth/publishers", nil)
	require.Equal(t, http.StatusOK, code)
	tree := decode[[]struct {
		Name    string `json:"publisherName"`
		Authors []struct {
			Name  string     `json:"authorName"`
			Books []bookJSON `json:"books"`
		} `json:"authors"`
	}](t, raw)
	require.Len(t, tree, 1)
	assert.Equal(t, "Penguin", tree[0].Name)
	require.Len(t, tree[0].Authors, 1)
	assert.Equal(t, "Orwell", tree[0].Authors[0].Name)
	assert.Equal(t, b.ID, tree[0].Authors[0].Books[0].ID)

	// 售罄前两次成功
	for i := 0; i < 2; i++ {
		code, raw = call(t, h.api, http.MethodPost, "/api/auth/buy", gin.H{"bookId": b.ID})
		require.Equal(t, http.StatusOK, code, string(raw))
	}
	bought := decode[struct {
		Message string   `json:"message"`
		Book    bookJSON `json:"book"`
	}](t, raw)
	assert.Equal(t, "Book purchased successfully", bought.Message)
	assert.Equal(t, 0, bought.Book.TotalCopies)
	assert.Equal(t, 2, bought.Book.PurchasedCopies)

	code, raw = call(t, h.api, http.MethodPost, "/api/auth/buy", gin.H{"bookId": b.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"message":"no copies available"}`, string(raw))

	code, _ = call(t, h.api, http.MethodPost, "/api/auth/buy", gin.H{"bookId": "missing"})
	assert.Equal(t, http.StatusNotFound, code)

	code, raw = call(t, h.api, http.MethodGet, "/api/auth/purchased-books", nil)
	require.Equal(t, http.StatusOK, code)
	purchased := decode[[]bookJSON](t, raw)
	require.Len(t, purchased, 1)
	assert.Equal(t, "Orwell", purchased[0].AuthorName)
	assert.Equal(t, "Penguin", purchased[0].PublisherName)

	code, raw = call(t, h.api, http.MethodPut, "/api/auth/books/"+b.ID,
		`{"bookName":"Nineteen Eighty-Four","totalCopies":"5","purchasedCopies":1}`)
	require.Equal(t, http.StatusOK, code, string(raw))
	edited := decode[bookJSON](t, raw)
	assert.Equal(t, "Nineteen Eighty-Four", edited.BookName)
	assert.Equal(t, 5, edited.TotalCopies)
	assert.Equal(t, 1, edited.PurchasedCopies)
	assert.Equal(t, "Orwell", edited.AuthorName)
	assert.Equal(t, "Penguin", edited.PublisherName)

	code, _ = call(t, h.api, http.MethodPut, "/api/auth/books/missing", gin.H{"bookName": "x"})
	assert.Equal(t, http.StatusNotFound, code)

	code, raw = call(t, h.api, http.MethodDelete, "/api/auth/books/"+b.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Book deleted successfully"}`, string(raw))
	code, _ = call(t, h.api, http.MethodDelete, "/api/auth/books/"+b.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// 作者随最后一本书删除，出版社保留
	code, raw = call(t, h.api, http.MethodGet, "/api/auth/publishers", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"_id":"`+tree0ID(t, raw)+`","publisherName":"Penguin","authors":[]}]`, string(raw))
}

func tree0ID(t *testing.T, raw []byte) string {
	t.Helper()
	ps := decode[[]struct {
		ID string `json:"_id"`
	}](t, raw)
	require.NotEmpty(t, ps)
	return ps[0].ID
}

func TestAddBook_BadRequests(t *testing.T) {
	h := newHarness(t)

	code, raw := call(t, h.api, http.MethodPost, "/api/auth/books", gin.H{"publisherName": "P", "authorName": "A"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"message":"Book details are required"}`, string(raw))

	code, raw = call(t, h.api, http.MethodPost, "/api/auth/books", gin.H{
		"publisherName": "P", "authorName": "A",
		"bookDetails": gin.H{"bookName": "x", "imgUrl": "u", "description": "d", "publisherDate": "2020-01-01"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(raw), "totalCopies is required")

	code, _ = call(t, h.api, http.MethodPost, "/api/auth/books", `{"bookDetails":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserRoutes(t *testing.T) {
	h := newHarness(t)
	reg := gin.H{
		"fullName": "Ada Lovelace", "email": "ada@numetry.com", "address": "London",
		"mobile": "0123", "username": "ada", "password": "s3cret",
	}

	code, raw := call(t, h.api, http.MethodPost, "/api/auth/register", reg)
	require.Equal(t, http.StatusCreated, code, string(raw))
	assert.Contains(t, string(raw), "User registered successfully")
	assert.NotContains(t, string(raw), "s3cret")
	assert.NotContains(t, string(raw), "passwordHash")

	code, _ = call(t, h.api, http.MethodPost, "/api/auth/register", reg)
	assert.Equal(t, http.StatusBadRequest, code)

	code, raw = call(t, h.api, http.MethodPost, "/api/auth/login", gin.H{"username": "ada", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"message":"invalid credentials"}`, string(raw))

	code, raw = call(t, h.api, http.MethodPost, "/api/auth/login", gin.H{"username": "ada", "password": "s3cret"})
	require.Equal(t, http.StatusOK, code, string(raw))
	login := decode[struct {
		Redirect  string    `json:"redirect"`
		LoginTime time.Time `json:"loginTime"`
		Token     string    `json:"token"`
	}](t, raw)
	assert.Equal(t, "/admin-dashboard", login.Redirect)
	assert.False(t, login.LoginTime.IsZero())
	claims, err := h.jwt.Parse(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "ada", claims.Username)

	code, raw = call(t, h.api, http.MethodGet, "/api/auth/users", nil)
	require.Equal(t, http.StatusOK, code)
	users := decode[[]struct {
		ID         string      `json:"_id"`
		Username   string      `json:"username"`
		Role       string      `json:"role"`
		LastLogin  *time.Time  `json:"lastLogin"`
		LoginTimes []time.Time `json:"loginTimes"`
	}](t, raw)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Role)
	require.NotNil(t, users[0].LastLogin)
	assert.Len(t, users[0].LoginTimes, 1)
	id := users[0].ID

	code, raw = call(t, h.api, http.MethodPut, "/api/auth/users/"+id,
		gin.H{"username": "countess", "loginTime": "2024-06-01T08:00", "logoutTime": ""})
	require.Equal(t, http.StatusOK, code, string(raw))
	updated := decode[struct {
		User struct {
			Username    string      `json:"username"`
			LoginTimes  []time.Time `json:"loginTimes"`
			LogoutTimes []time.Time `json:"logoutTimes"`
		} `json:"user"`
	}](t, raw)
	assert.Equal(t, "countess", updated.User.Username)
	assert.Len(t, updated.User.LoginTimes, 2)
	assert.Empty(t, updated.User.LogoutTimes)

	code, _ = call(t, h.api, http.MethodPut, "/api/auth/users/missing", gin.H{"username": "x"})
	assert.Equal(t, http.StatusNotFound, code)

	code, raw = call(t, h.api, http.MethodPost, "/api/auth/logout", gin.H{"username": "countess"})
	require.Equal(t, http.StatusOK, code, string(raw))
	code, _ = call(t, h.api, http.MethodPost, "/api/auth/logout", gin.H{"username": "ada"})
	assert.Equal(t, http.StatusNotFound, code)

	code, raw = call(t, h.api, http.MethodDelete, "/api/auth/users/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"User deleted successfully"}`, string(raw))
	code, _ = call(t, h.api, http.MethodDelete, "/api/auth/users/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)
	b := addBook(t, h, "Faber", "Eliot", "The Waste Land", 3)
	code, _ := call(t, h.api, http.MethodPost, "/api/auth/buy", gin.H{"bookId": b.ID})
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, h.admin, http.MethodGet, "/admin/v1/users", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	userTok, _, err := h.jwt.Issue("u1", "bob", "user")
	require.NoError(t, err)
	code, _ = call(t, h.admin, http.MethodGet, "/admin/v1/users", nil, "Authorization", "Bearer "+userTok)
	assert.Equal(t, http.StatusForbidden, code)

	adminTok, _, err := h.jwt.Issue("u2", "root", "admin")
	require.NoError(t, err)
	bearer := []string{"Authorization", "Bearer " + adminTok}

	code, raw := call(t, h.admin, http.MethodGet, "/admin/v1/users", nil, bearer...)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(raw))

	code, raw = call(t, h.admin, http.MethodGet, "/admin/v1/purchased-books", nil, bearer...)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]bookJSON](t, raw), 1)

	code, raw = call(t, h.admin, http.MethodGet, "/admin/v1/books/"+b.ID, nil, bearer...)
	require.Equal(t, http.StatusOK, code)
	got := decode[bookJSON](t, raw)
	assert.Equal(t, 2, got.TotalCopies)
	assert.Equal(t, "Eliot", got.AuthorName)

	code, _ = call(t, h.admin, http.MethodGet, "/admin/v1/books/missing", nil, bearer...)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, h.admin, http.MethodDelete, "/admin/v1/users/missing", nil, bearer...)
	assert.Equal(t, http.StatusNotFound, code)

	// 管理端不暴露写目录接口
	code, _ = call(t, h.admin, http.MethodPost, "/admin/v1/books", gin.H{}, bearer...)
	assert.Equal(t, http.StatusNotFound, code)
}

type fakeMod struct {
	name string
	prio int
	log  *[]string
}

func (m fakeMod) MountAPI(*gin.RouterGroup)   { *m.log = append(*m.log, "api:"+m.name) }
func (m fakeMod) MountAdmin(*gin.RouterGroup) { *m.log = append(*m.log, "admin:"+m.name) }
func (m fakeMod) Priority() int               { return m.prio }

func TestRegistry_Priority(t *testing.T) {
	var log []string
	reg := &Registry{}
	reg.Register(fakeMod{"b", 20, &log}, fakeMod{"a", 10, &log}, struct{}{})

	g := gin.New().Group("/")
	reg.MountAllAPI(g)
	reg.MountAllAdmin(g)
	assert.Equal(t, []string{"api:a", "api:b", "admin:a", "admin:b"}, log)
}
