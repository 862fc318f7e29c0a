package router

import (
	"github.com/gin-gonic/gin"

	"gin-gorm-bookstore/internal/domain"
	"gin-gorm-bookstore/internal/transport/http/handler"
	mdw "gin-gorm-bookstore/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1，统一要求 admin 角色
func NewAdminEngine(d Deps) *gin.Engine {
	r := newBase(d)

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWT, domain.RoleAdmin))

	reg := &Registry{}
	reg.Register(
		handler.NewUserHandler(d.Users, d.JWT),
		handler.NewCatalogHandler(d.Catalog),
	)
	reg.MountAllAdmin(admin)
	return r
}
