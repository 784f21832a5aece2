package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/stockui/stock-ui/emailer"
	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/telegram"
	"github.com/stockui/stock-ui/upload"
	"github.com/stockui/stock-ui/util"
)

// Register wires the session loader and every route of the app.
// mailer may be nil when no mail transport is configured.
func Register(app *echo.Echo, db store.IStore, uploads *upload.Storage, mailer emailer.Emailer, tg *telegram.Sender) {
	app.Use(LoadSession)

	app.GET("/health", Health())
	app.GET("/login", LoginPage())
	app.POST("/login", Login(db), LoginRateLimiter(util.LoginRateLimit))
	app.GET("/logout", Logout(), ValidSession)

	app.GET("/", Products(db), ValidSession)
	app.POST("/", Products(db), ValidSession)
	app.GET("/add", AddProductPage(), ValidSession)
	app.POST("/add", AddProduct(db, uploads), ValidSession)
	app.POST("/update/:id", UpdateQuantity(db), ValidSession)
	app.POST("/delete/:id", DeleteProduct(db), ValidSession)
	app.GET("/label/:id", ProductLabel(db), ValidSession)
	app.GET("/analytics", Analytics(db, tg), ValidSession)
	app.GET("/download_excel", DownloadExcel(db), ValidSession)
	app.POST("/send_report", SendReport(db, mailer, tg), ValidSession)
	app.GET("/api/products", APIProducts(db), ValidSession)
	app.GET("/api/analytics", APIAnalytics(db), ValidSession)

	// uploaded product images
	app.Group("/uploads", ValidSession, UploadHeaders).Static("/", uploads.Dir)
}
