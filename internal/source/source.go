// Package source loads sites documents and checks them against the embedded
// document schema before decoding.
package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/validation"
	"sitesight/internal/sites"
)

//go:embed sites.schema.json
var schemaJSON []byte

var documentSchema = mustCompile(schemaJSON)

func mustCompile(raw []byte) *validation.Schema {
	s, err := validation.CompileSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("embedded sites schema: %v", err))
	}
	return s
}

// Source yields the sites of one pipeline run.
type Source interface {
	Load(ctx context.Context) ([]sites.Site, error)
}

// FileSource reads a JSON sites document from disk on every Load.
type FileSource struct {
	path   string
	logger logger.Logger
}

func NewFileSource(path string, log logger.Logger) *FileSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &FileSource{path: path, logger: log}
}

func (f *FileSource) Path() string { return f.path }

func (f *FileSource) Load(ctx context.Context) ([]sites.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewSourceLoadFailedError(f.path, err)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.NewSourceLoadFailedError(f.path, err)
	}

	out, err := Decode(data)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("sites document loaded", map[string]interface{}{
		"path":  f.path,
		"sites": len(out),
		"bytes": len(data),
	})
	return out, nil
}

// Decode validates a raw sites document and decodes it. The schema only
// checks the document's shape; missing fields are reported by sites.Validate
// so the error names the offending site and resource.
func Decode(data []byte) ([]sites.Site, error) {
	result, err := documentSchema.ValidateBytes(data)
	if err != nil {
		return nil, errors.NewDocumentInvalidError([]string{err.Error()})
	}
	if !result.Valid {
		return nil, errors.NewDocumentInvalidError(result.GetErrorMessages())
	}

	var out []sites.Site
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewDocumentInvalidError([]string{err.Error()})
	}
	if err := sites.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeValue accepts an already decoded document, such as a job variable.
func DecodeValue(value interface{}) ([]sites.Site, error) {
	if value == nil {
		return nil, errors.NewDocumentInvalidError([]string{"sites document is missing"})
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.NewDocumentInvalidError([]string{err.Error()})
	}
	return Decode(data)
}
