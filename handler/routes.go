package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/stockui/stock-ui/auth"
	"github.com/stockui/stock-ui/catalog"
	"github.com/stockui/stock-ui/emailer"
	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/report"
	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/telegram"
	"github.com/stockui/stock-ui/upload"
	"github.com/stockui/stock-ui/util"
)

type jsonHTTPResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// Health check handler
func Health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
}

// LoginPage handler
func LoginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		if SessionFrom(c).Authenticated() {
			return c.Redirect(http.StatusFound, safeRedirect(c.QueryParam("next")))
		}
		return c.Render(http.StatusOK, "login.html", map[string]interface{}{
			"next":      c.QueryParam("next"),
			"csrfToken": csrfToken(c),
		})
	}
}

// Login for signing in handler
func Login(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		username := c.FormValue("username")
		password := c.FormValue("password")
		next := c.FormValue("next")
		if next == "" {
			next = c.QueryParam("next")
		}

		user, err := auth.Verify(db, username, password)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				log.Error("Cannot verify login: ", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "Cannot verify login")
			}
			log.Warnf("Failed login attempt for user %q from %s", username, c.RealIP())
			return c.Render(http.StatusOK, "login.html", map[string]interface{}{
				"error":     "Invalid username or password",
				"next":      next,
				"csrfToken": csrfToken(c),
			})
		}

		if err := createSession(c, user); err != nil {
			log.Error("Cannot save session: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot create session")
		}
		log.Infof("Logged in successfully user %s", user.Username)
		return c.Redirect(http.StatusFound, safeRedirect(next))
	}
}

// Logout to log a user out
func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		clearSession(c)
		return c.Redirect(http.StatusFound, "/login")
	}
}

// Products handler renders the product list
func Products(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		products, err := catalog.List(db)
		if err != nil {
			log.Error("Cannot fetch products from database: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot fetch products")
		}

		return c.Render(http.StatusOK, "index.html", map[string]interface{}{
			"baseData": baseData(c, ""),
			"flashes":  popFlashes(c),
			"products": products,
		})
	}
}

// AddProductPage handler
func AddProductPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "add_product.html", map[string]interface{}{
			"baseData": baseData(c, "add"),
			"flashes":  popFlashes(c),
		})
	}
}

// AddProduct handler for the add product form
func AddProduct(db store.IStore, uploads *upload.Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.TrimSpace(c.FormValue("quantity")) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "quantity is required")
		}

		form := new(model.ProductForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "quantity must be an integer")
		}
		if err := c.Validate(form); err != nil {
			return err
		}

		fh, err := c.FormFile("image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot read uploaded image")
		}

		image, err := uploads.Save(fh)
		if err != nil {
			if errors.Is(err, upload.ErrInvalidFilename) {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid image filename")
			}
			log.Error("Cannot store uploaded image: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot store uploaded image")
		}

		product, err := catalog.Create(db, form.Name, form.Quantity, image)
		if err != nil {
			log.Error("Cannot create product: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot create product")
		}
		log.Infof("Created product %d %q by %s", product.ID, product.Name, currentUser(c))

		return c.Redirect(http.StatusFound, "/")
	}
}

// UpdateQuantity handler
func UpdateQuantity(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		product, updated, err := catalog.UpdateQuantity(db, id, c.FormValue("quantity"))
		if err != nil {
			return storeError(err, "Cannot update product")
		}
		if updated {
			log.Infof("Updated quantity of product %d to %d by %s", product.ID, product.Quantity, currentUser(c))
		}

		return c.Redirect(http.StatusFound, "/")
	}
}

// DeleteProduct handler
func DeleteProduct(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		if err := catalog.Delete(db, id); err != nil {
			return storeError(err, "Cannot delete product")
		}
		log.Infof("Removed product %d by %s", id, currentUser(c))

		return c.Redirect(http.StatusFound, "/")
	}
}

// Analytics handler renders the catalog totals
func Analytics(db store.IStore, tg *telegram.Sender) echo.HandlerFunc {
	return func(c echo.Context) error {
		products, err := catalog.List(db)
		if err != nil {
			log.Error("Cannot fetch products from database: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot fetch products")
		}

		return c.Render(http.StatusOK, "analytics.html", map[string]interface{}{
			"baseData":        baseData(c, "analytics"),
			"flashes":         popFlashes(c),
			"summary":         report.Summarize(products),
			"telegramEnabled": tg.Enabled(),
		})
	}
}

// DownloadExcel handler streams the catalog as an xlsx attachment
func DownloadExcel(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := exportCatalog(db)
		if err != nil {
			return err
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.SpreadsheetFilename))
		return c.Blob(http.StatusOK, report.SpreadsheetMIME, data)
	}
}

// SendReport handler delivers the spreadsheet by email or to the Telegram chat
func SendReport(db store.IStore, mailer emailer.Emailer, tg *telegram.Sender) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := exportCatalog(db)
		if err != nil {
			return err
		}

		switch c.FormValue("channel") {
		case "telegram":
			caption := fmt.Sprintf("Product catalog requested by %s", currentUser(c))
			if err := tg.SendDocument(report.SpreadsheetFilename, data, caption); err != nil {
				log.Error("Cannot send report to Telegram: ", err)
				addFlash(c, "Cannot send report to Telegram")
			} else {
				addFlash(c, "Report sent to Telegram")
			}

		case "email", "":
			addr, err := mail.ParseAddress(c.FormValue("email"))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid email address")
			}
			if mailer == nil {
				addFlash(c, "Email delivery is not configured")
				break
			}

			attachments := []emailer.Attachment{{
				Name:     report.SpreadsheetFilename,
				Data:     data,
				MimeType: report.SpreadsheetMIME,
			}}
			if err := mailer.Send(addr.Name, addr.Address, util.DefaultEmailSubject, util.DefaultEmailContent, attachments); err != nil {
				log.Error("Cannot send report email: ", err)
				addFlash(c, "Cannot send report email")
			} else {
				log.Infof("Sent report to %s by %s", addr.Address, currentUser(c))
				addFlash(c, "Report sent to "+addr.Address)
			}

		default:
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown report channel")
		}

		return c.Redirect(http.StatusFound, "/analytics")
	}
}

// ProductLabel handler returns the QR label of a product as PNG
func ProductLabel(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		product, err := db.GetProductByID(id)
		if err != nil {
			return storeError(err, "Cannot fetch product")
		}

		png, err := util.ProductLabelPNG(product)
		if err != nil {
			log.Error("Cannot generate QRCode: ", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Cannot generate label")
		}
		return c.Blob(http.StatusOK, "image/png", png)
	}
}

// APIProducts returns the product list as JSON
func APIProducts(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		products, err := catalog.List(db)
		if err != nil {
			log.Error("Cannot fetch products from database: ", err)
			return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, "Cannot fetch products"})
		}
		return c.JSON(http.StatusOK, products)
	}
}

// APIAnalytics returns the catalog totals as JSON
func APIAnalytics(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		products, err := catalog.List(db)
		if err != nil {
			log.Error("Cannot fetch products from database: ", err)
			return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, "Cannot fetch products"})
		}
		return c.JSON(http.StatusOK, report.Summarize(products))
	}
}

func exportCatalog(db store.IStore) ([]byte, error) {
	products, err := catalog.List(db)
	if err != nil {
		log.Error("Cannot fetch products from database: ", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Cannot fetch products")
	}

	data, err := report.ExportSpreadsheet(products)
	if err != nil {
		log.Error("Cannot build spreadsheet: ", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Cannot build spreadsheet")
	}
	return data, nil
}

// productID parses the :id path parameter; anything but an integer is an unknown product
func productID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Product not found")
	}
	return id, nil
}

func storeError(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found")
	}
	log.Error(msg+": ", err)
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

func baseData(c echo.Context, active string) model.BaseData {
	return model.BaseData{
		Active:      active,
		CurrentUser: currentUser(c),
		CSRFToken:   csrfToken(c),
	}
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get("csrf").(string)
	return token
}
