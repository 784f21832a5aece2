package util

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/skip2/go-qrcode"

	"github.com/stockui/stock-ui/model"
)

// LookupEnvOrString returns the env value or the default
func LookupEnvOrString(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// LookupEnvOrBool returns the env value parsed as bool or the default
func LookupEnvOrBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseBool(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrBool[%s]: %v\n", key, err)
			return defaultVal
		}
		return v
	}
	return defaultVal
}

// LookupEnvOrInt returns the env value parsed as int or the default
func LookupEnvOrInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrInt[%s]: %v\n", key, err)
			return defaultVal
		}
		return v
	}
	return defaultVal
}

// LookupEnvOrInt64 returns the env value parsed as int64 or the default
func LookupEnvOrInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrInt64[%s]: %v\n", key, err)
			return defaultVal
		}
		return v
	}
	return defaultVal
}

// StringFromEmbedFile reads a whole file of an embedded filesystem
func StringFromEmbedFile(embed fs.FS, filename string) (string, error) {
	file, err := embed.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ParseLogLevel maps a LOG_LEVEL value to a gommon level
func ParseLogLevel(lvl string) (log.Lvl, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "warn":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return log.DEBUG, fmt.Errorf("not a valid log level: %s", lvl)
	}
}

// ProductLabel is the text encoded in a product's QR label
func ProductLabel(product model.Product) string {
	return fmt.Sprintf("product:%d:%s", product.ID, product.Name)
}

// ProductLabelPNG renders the QR label of a product
func ProductLabelPNG(product model.Product) ([]byte, error) {
	return qrcode.Encode(ProductLabel(product), qrcode.Medium, 256)
}
