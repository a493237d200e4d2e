package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	Root string
}

// NewDefaultPathManager creates a path manager rooted at root ("results" when empty)
func NewDefaultPathManager(root string) *DefaultPathManager {
	if root == "" {
		root = "results"
	}
	return &DefaultPathManager{Root: root}
}

// RunDir returns <root>/<assets>_<interval>_<YYYYMMDD-HHMMSS>. A single
// asset is named directly, larger universes as MULTI<n>.
func (p *DefaultPathManager) RunDir(symbols []string, interval string, now time.Time) string {
	return filepath.Join(p.Root, fmt.Sprintf("%s_%s_%s", assetsLabel(symbols), intervalLabel(interval), now.UTC().Format("20060102-150405")))
}

// EnsureDirectoryExists creates the parent directory of path
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func assetsLabel(symbols []string) string {
	switch len(symbols) {
	case 0:
		return "UNKNOWN"
	case 1:
		s := strings.ToUpper(strings.TrimSpace(symbols[0]))
		if s == "" {
			return "UNKNOWN"
		}
		return s
	default:
		return fmt.Sprintf("MULTI%d", len(symbols))
	}
}

func intervalLabel(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	if i == "" {
		return "unknown"
	}
	return i
}

// DefaultRunDir is a package-level convenience wrapper
func DefaultRunDir(root string, symbols []string, interval string) string {
	return NewDefaultPathManager(root).RunDir(symbols, interval, time.Now())
}
