package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/stockui/stock-ui/auth"
	"github.com/stockui/stock-ui/emailer"
	"github.com/stockui/stock-ui/handler"
	"github.com/stockui/stock-ui/router"
	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/store/gormdb"
	"github.com/stockui/stock-ui/store/jsondb"
	"github.com/stockui/stock-ui/telegram"
	"github.com/stockui/stock-ui/templates"
	"github.com/stockui/stock-ui/upload"
	"github.com/stockui/stock-ui/util"
)

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	gitRef     = "N/A"
	buildTime  = time.Now().UTC().Format("01-02-2006 15:04:05")
)

// configuration variables
var (
	flagBindAddress        string = util.DefaultBindAddress
	flagSessionMaxDuration int64  = util.DefaultSessionMaxDuration
	flagDBType             string = util.DefaultDBType
	flagDBPath             string = util.DefaultDBPath
	flagJSONDBPath         string = util.DefaultJSONDBPath
	flagUploadDir          string = util.DefaultUploadDir
	flagMaxUploadSize      string = util.DefaultMaxUploadSize
	flagDisableCSRF        bool   = false
	flagLoginRateLimit     int    = util.DefaultLoginRateLimit
	flagEmailFromName      string = util.DefaultEmailFromName
	flagSmtpPort           int    = 587
	flagSmtpNoTLSCheck     bool   = false
	flagSmtpEncryption     string = "STARTTLS"
	flagSmtpAuthType       string = "LOGIN"
)

var (
	flagSessionSecret  string
	flagDatabaseURL    string
	flagSendgridApiKey string
	flagEmailFrom      string
	flagSmtpHostname   string
	flagSmtpUsername   string
	flagSmtpPassword   string
	flagTelegramToken  string
	flagTelegramChatID int64
)

func init() {
	// a missing .env file is fine, the environment wins anyway
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot load .env file: %v\n", err)
	}

	// command-line flags and env variables
	flag.StringVar(&flagBindAddress, "bind-address", util.LookupEnvOrString("BIND_ADDRESS", flagBindAddress), "Address:Port to which the app will be bound.")
	flag.StringVar(&flagSessionSecret, "session-secret", util.LookupEnvOrString("SESSION_SECRET", flagSessionSecret), "The key used to sign session cookies.")
	flag.Int64Var(&flagSessionMaxDuration, "session-max-duration", util.LookupEnvOrInt64("SESSION_MAX_DURATION", flagSessionMaxDuration), "Max time in days a login session stays valid.")
	flag.StringVar(&flagDBType, "db-type", util.LookupEnvOrString("DB_TYPE", flagDBType), "Database backend: sqlite, postgres or jsondb.")
	flag.StringVar(&flagDBPath, "db-path", util.LookupEnvOrString("DB_PATH", flagDBPath), "SQLite database file.")
	flag.StringVar(&flagDatabaseURL, "database-url", util.LookupEnvOrString("DATABASE_URL", flagDatabaseURL), "PostgreSQL connection string.")
	flag.StringVar(&flagJSONDBPath, "jsondb-path", util.LookupEnvOrString("JSONDB_PATH", flagJSONDBPath), "Directory of the JSON database.")
	flag.StringVar(&flagUploadDir, "upload-dir", util.LookupEnvOrString("UPLOAD_DIR", flagUploadDir), "Directory for uploaded product images.")
	flag.StringVar(&flagMaxUploadSize, "max-upload-size", util.LookupEnvOrString("MAX_UPLOAD_SIZE", flagMaxUploadSize), "Max size of a request body, e.g. 8M.")
	flag.BoolVar(&flagDisableCSRF, "disable-csrf", util.LookupEnvOrBool("DISABLE_CSRF", flagDisableCSRF), "Disable CSRF protection of the forms.")
	flag.IntVar(&flagLoginRateLimit, "login-rate-limit", util.LookupEnvOrInt("LOGIN_RATE_LIMIT", flagLoginRateLimit), "Login attempts per minute and client IP. 0 disables the limit.")
	flag.StringVar(&flagSendgridApiKey, "sendgrid-api-key", util.LookupEnvOrString("SENDGRID_API_KEY", flagSendgridApiKey), "Your sendgrid api key.")
	flag.StringVar(&flagEmailFrom, "email-from", util.LookupEnvOrString("EMAIL_FROM_ADDRESS", flagEmailFrom), "'From' email address.")
	flag.StringVar(&flagEmailFromName, "email-from-name", util.LookupEnvOrString("EMAIL_FROM_NAME", flagEmailFromName), "'From' email name.")
	flag.StringVar(&flagSmtpHostname, "smtp-hostname", util.LookupEnvOrString("SMTP_HOSTNAME", flagSmtpHostname), "SMTP Hostname")
	flag.IntVar(&flagSmtpPort, "smtp-port", util.LookupEnvOrInt("SMTP_PORT", flagSmtpPort), "SMTP Port")
	flag.StringVar(&flagSmtpUsername, "smtp-username", util.LookupEnvOrString("SMTP_USERNAME", flagSmtpUsername), "SMTP Username")
	flag.StringVar(&flagSmtpPassword, "smtp-password", util.LookupEnvOrString("SMTP_PASSWORD", flagSmtpPassword), "SMTP Password")
	flag.BoolVar(&flagSmtpNoTLSCheck, "smtp-no-tls-check", util.LookupEnvOrBool("SMTP_NO_TLS_CHECK", flagSmtpNoTLSCheck), "Disable TLS verification for SMTP. This is potentially dangerous.")
	flag.StringVar(&flagSmtpEncryption, "smtp-encryption", util.LookupEnvOrString("SMTP_ENCRYPTION", flagSmtpEncryption), "SMTP Encryption : NONE, SSL, SSLTLS, TLS or STARTTLS (by default)")
	flag.StringVar(&flagSmtpAuthType, "smtp-auth-type", util.LookupEnvOrString("SMTP_AUTH_TYPE", flagSmtpAuthType), "SMTP Auth Type : PLAIN, LOGIN or NONE.")
	flag.StringVar(&flagTelegramToken, "telegram-token", util.LookupEnvOrString("TELEGRAM_TOKEN", flagTelegramToken), "Telegram bot token for report delivery.")
	flag.Int64Var(&flagTelegramChatID, "telegram-chat-id", util.LookupEnvOrInt64("TELEGRAM_CHAT_ID", flagTelegramChatID), "Telegram chat receiving the reports.")
	flag.Parse()

	// update runtime config
	util.BindAddress = flagBindAddress
	util.SessionSecret = []byte(flagSessionSecret)
	util.SessionMaxDuration = flagSessionMaxDuration
	util.DBType = flagDBType
	util.DBPath = flagDBPath
	util.DatabaseURL = flagDatabaseURL
	util.JSONDBPath = flagJSONDBPath
	util.UploadDir = flagUploadDir
	util.MaxUploadSize = flagMaxUploadSize
	util.DisableCSRF = flagDisableCSRF
	util.LoginRateLimit = flagLoginRateLimit
	util.SendgridApiKey = flagSendgridApiKey
	util.EmailFrom = flagEmailFrom
	util.EmailFromName = flagEmailFromName
	util.SmtpHostname = flagSmtpHostname
	util.SmtpPort = flagSmtpPort
	util.SmtpUsername = flagSmtpUsername
	util.SmtpPassword = flagSmtpPassword
	util.SmtpNoTLSCheck = flagSmtpNoTLSCheck
	util.SmtpEncryption = flagSmtpEncryption
	util.SmtpAuthType = flagSmtpAuthType
	util.TelegramToken = flagTelegramToken
	util.TelegramChatID = flagTelegramChatID

	lvl, err := util.ParseLogLevel(util.LookupEnvOrString(util.LogLevel, "INFO"))
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(lvl)

	if len(util.SessionSecret) == 0 {
		log.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
		util.SessionSecret = securecookie.GenerateRandomKey(32)
	}

	// print app information
	if lvl <= log.INFO {
		fmt.Println("Stock UI")
		fmt.Println("App Version\t:", appVersion)
		fmt.Println("Git Commit\t:", gitCommit)
		fmt.Println("Git Ref\t\t:", gitRef)
		fmt.Println("Build Time\t:", buildTime)
		fmt.Println("Bind address\t:", util.BindAddress)
		fmt.Println("Database\t:", util.DBType)
		fmt.Println("Upload dir\t:", util.UploadDir)
		fmt.Println("CSRF\t\t:", !util.DisableCSRF)
		fmt.Println("Email from\t:", util.EmailFrom)
		fmt.Println("Email from name\t:", util.EmailFromName)
		fmt.Println("Telegram\t:", util.TelegramToken != "")
	}
}

func main() {
	db, err := openStore()
	if err != nil {
		log.Fatal("Cannot open database: ", err)
	}
	if err := db.Init(); err != nil {
		log.Fatal("Cannot init database: ", err)
	}

	err = auth.SeedAdmin(db,
		util.LookupEnvOrString(util.UsernameEnvVar, util.DefaultUsername),
		util.LookupEnvOrString(util.PasswordEnvVar, util.DefaultPassword),
		util.LookupEnvOrString(util.PasswordHashEnvVar, ""))
	if err != nil {
		log.Fatal("Cannot create the default user: ", err)
	}

	uploads := upload.New(util.UploadDir)
	if err := uploads.Init(); err != nil {
		log.Fatal("Cannot create upload directory: ", err)
	}

	// set app extra data
	extraData := make(map[string]string)
	extraData["appVersion"] = appVersion

	// register routes
	app := router.New(templates.FS, extraData, util.SessionSecret)
	handler.Register(app, db, uploads, emailer.FromConfig(), telegram.New(util.TelegramToken, util.TelegramChatID))

	app.Logger.Fatal(app.Start(util.BindAddress))
}

func openStore() (store.IStore, error) {
	switch util.DBType {
	case "sqlite", "":
		return gormdb.NewSQLite(util.DBPath)
	case "postgres":
		if util.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		return gormdb.NewPostgres(util.DatabaseURL)
	case "jsondb":
		return jsondb.New(util.JSONDBPath)
	default:
		return nil, fmt.Errorf("unknown database type %q", util.DBType)
	}
}
