// Package upload stores product images on local disk.
//
// Two uploads whose names sanitize to the same value share one file: the
// later one replaces the earlier one. Each write goes to a hidden temporary
// file that is synced and renamed into place, so readers never see a
// partial image.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidFilename is returned when nothing is left of a name after sanitizing
var ErrInvalidFilename = errors.New("invalid upload filename")

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

	windowsDeviceNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

// SanitizeFilename strips path separators and unsafe characters from a client supplied name
func SanitizeFilename(name string) string {
	// fold accents and drop whatever is still not ASCII
	decomposed := norm.NFKD.String(name)
	ascii := make([]rune, 0, len(decomposed))
	for _, r := range decomposed {
		if r < 0x80 {
			ascii = append(ascii, r)
		}
	}
	name = string(ascii)

	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if _, reserved := windowsDeviceNames[base]; reserved {
			name = "_" + name
		}
	}
	return name
}

// Storage saves uploaded files into Dir
type Storage struct {
	Dir string
}

// New returns a Storage rooted at dir
func New(dir string) *Storage {
	return &Storage{Dir: dir}
}

// Init creates the upload directory if it does not exist
func (s *Storage) Init() error {
	return os.MkdirAll(s.Dir, os.ModePerm)
}

// Path returns the location of a stored file
func (s *Storage) Path(filename string) string {
	return filepath.Join(s.Dir, filename)
}

// Save persists an uploaded file and returns its storage name.
// A nil header or an empty filename means no file was sent and returns "".
func (s *Storage) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil || fh.Filename == "" {
		return "", nil
	}

	filename := SanitizeFilename(fh.Filename)
	if filename == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := s.write(filename, src); err != nil {
		return "", err
	}
	return filename, nil
}

func (s *Storage) write(filename string, r io.Reader) error {
	f, err := renameio.NewPendingFile(s.Path(filename), renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer f.Cleanup()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}
