package util

// Runtime config
var (
	BindAddress        string
	SessionSecret      []byte
	SessionMaxDuration int64
	DBType             string
	DBPath             string
	DatabaseURL        string
	JSONDBPath         string
	UploadDir          string
	MaxUploadSize      string
	DisableCSRF        bool
	LoginRateLimit     int
	SendgridApiKey     string
	EmailFrom          string
	EmailFromName      string
	SmtpHostname       string
	SmtpPort           int
	SmtpUsername       string
	SmtpPassword       string
	SmtpNoTLSCheck     bool
	SmtpEncryption     string
	SmtpAuthType       string
	TelegramToken      string
	TelegramChatID     int64
)

const (
	DefaultUsername           = "admin"
	DefaultPassword           = "adminpassword"
	DefaultBindAddress        = "0.0.0.0:5000"
	DefaultDBType             = "sqlite"
	DefaultDBPath             = "database.db"
	DefaultJSONDBPath         = "./db"
	DefaultUploadDir          = "static/uploads"
	DefaultMaxUploadSize      = "8M"
	DefaultSessionMaxDuration = 90
	DefaultLoginRateLimit     = 10
	DefaultEmailFromName      = "Stock UI"
	DefaultEmailSubject       = "Product catalog export"
	DefaultEmailContent       = `Hi,</br>
<p>the current product catalog is attached to this email.</p>

<p>Best</p>
`
	UsernameEnvVar     = "ADMIN_USERNAME"
	PasswordEnvVar     = "ADMIN_PASSWORD"
	PasswordHashEnvVar = "ADMIN_PASSWORD_HASH"
	LogLevel           = "LOG_LEVEL"
)
