package codec

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
)

// requiredSections maps each training-data category to the file carrying it.
var requiredSections = map[string]string{
	corpussvc.CategoryNLU:         FileNLU,
	corpussvc.CategoryStories:     FileStories,
	corpussvc.CategoryRules:       FileRules,
	corpussvc.CategoryDomain:      FileDomain,
	corpussvc.CategoryConfig:      FileConfig,
	corpussvc.CategoryHTTPActions: FileHTTPAction,
}

// optionalSections may be absent from an upload without forcing a
// background import.
var optionalSections = map[string]bool{
	corpussvc.CategoryConfig:      true,
	corpussvc.CategoryHTTPActions: true,
}

// UploadResult describes a staged training-data upload. When NeedsEvent is
// set the files could not be validated inline and a data import event must
// run against Dir; otherwise the staged files already passed parsing.
type UploadResult struct {
	Dir        string
	Missing    []string
	NeedsEvent bool
}

// ValidateAndPrepareData stages an uploaded file set (loose YAML files or a
// single zip archive) into a temp directory laid out the way the training
// engine expects. Uploads missing anything beyond config and HTTP actions
// are handed off to the background importer instead of being parsed inline.
func (c *Codec) ValidateAndPrepareData(files map[string][]byte) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("No files received")
	}
	files, err := explodeArchives(files)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "training_data_")
	if err != nil {
		return nil, apperr.Internal("create staging dir", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return nil, apperr.Internal("create staging dir", err)
	}
	present := map[string]bool{}
	for name, content := range files {
		base := filepath.Base(name)
		target, category, ok := routeUpload(base)
		if !ok {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, target), content, 0o644); err != nil {
			return nil, apperr.Internal("stage uploaded file", err)
		}
		present[category] = true
	}
	if len(present) == 0 {
		return nil, apperr.Validation("No training files found")
	}
	var missing []string
	needsEvent := false
	for category := range requiredSections {
		if present[category] {
			continue
		}
		missing = append(missing, category)
		if !optionalSections[category] {
			needsEvent = true
		}
	}
	sort.Strings(missing)
	result := &UploadResult{Dir: dir, Missing: missing, NeedsEvent: needsEvent}
	if needsEvent {
		c.log.Info("Upload incomplete, deferring to import event", "missing", strings.Join(missing, ", "))
		return result, nil
	}
	// Complete uploads are parsed inline so schema errors surface now.
	if _, _, err := c.readTrainingDir(dir); err != nil {
		return nil, err
	}
	return result, nil
}

// routeUpload places an uploaded file into the training layout and names the
// category it carries.
func routeUpload(base string) (target, category string, ok bool) {
	switch normalizeYAMLName(base) {
	case FileNLU:
		return filepath.Join("data", FileNLU), corpussvc.CategoryNLU, true
	case FileStories:
		return filepath.Join("data", FileStories), corpussvc.CategoryStories, true
	case FileRules:
		return filepath.Join("data", FileRules), corpussvc.CategoryRules, true
	case FileDomain:
		return FileDomain, corpussvc.CategoryDomain, true
	case FileConfig:
		return FileConfig, corpussvc.CategoryConfig, true
	case FileHTTPAction, "http_actions.yml":
		return FileHTTPAction, corpussvc.CategoryHTTPActions, true
	}
	return "", "", false
}

func normalizeYAMLName(base string) string {
	base = strings.ToLower(base)
	if strings.HasSuffix(base, ".yaml") {
		base = strings.TrimSuffix(base, ".yaml") + ".yml"
	}
	return base
}

// explodeArchives expands any zip archive in the upload set into its member
// files; non-archive entries pass through unchanged.
func explodeArchives(files map[string][]byte) (map[string][]byte, error) {
	out := map[string][]byte{}
	for name, content := range files {
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			out[name] = content
			continue
		}
		reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return nil, apperr.Validation("Invalid zip archive")
		}
		for _, entry := range reader.File {
			if entry.FileInfo().IsDir() {
				continue
			}
			rc, err := entry.Open()
			if err != nil {
				return nil, apperr.Validation("Invalid zip archive")
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, apperr.Validation("Invalid zip archive")
			}
			out[entry.Name] = data
		}
	}
	return out, nil
}
