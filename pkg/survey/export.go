package survey

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ExportFileName follows survey_<remoteIdOrLocal>_<unixMillis>.json.
func ExportFileName(remoteID int64, hasRemote bool, at time.Time) string {
	label := "local"
	if hasRemote {
		label = strconv.FormatInt(remoteID, 10)
	}
	return fmt.Sprintf("survey_%s_%d.json", label, at.UnixMilli())
}

// Export writes the indented document into dir and returns the path and the written bytes.
func Export(dir, fileName string, d Document) (string, []byte, error) {
	if d.IsZero() {
		return "", nil, fmt.Errorf("no survey document to export")
	}
	content, err := d.Pretty()
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", nil, fmt.Errorf("write export file: %w", err)
	}
	return path, content, nil
}
