package handler

import "github.com/gin-gonic/gin"

// RegisterNodeRoutes mounts the node API on an authenticated group.
func RegisterNodeRoutes(rg gin.IRoutes, h *NodeHandler) {
	rg.GET("/nodes", h.Get)
	rg.GET("/nodes/children", h.Children)
	rg.GET("/nodes/trash", h.Trash)
	rg.GET("/nodes/delta", h.Delta)
	rg.POST("/nodes/collections", h.CreateCollection)
	rg.PUT("/nodes/content", h.Upload)
	rg.GET("/nodes/content", h.Content)
	rg.GET("/nodes/content/link", h.DownloadLink)
	rg.GET("/nodes/history", h.History)
	rg.POST("/nodes/rollback", h.Rollback)
	rg.POST("/nodes/move", h.Move)
	rg.POST("/nodes/copy", h.Copy)
	rg.POST("/nodes/delete", h.Delete)
	rg.POST("/nodes/undelete", h.Undelete)
	rg.POST("/nodes/rename", h.Rename)
	rg.PUT("/nodes/share", h.Share)
	rg.DELETE("/nodes/share", h.Unshare)
	rg.PATCH("/nodes/attributes", h.SetAttributes)
}
