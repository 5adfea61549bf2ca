package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// DirectoryResult reports what a bulk directory ingestion did.
type DirectoryResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	Chunks       int
	Duration     time.Duration

	// Failures lists the files that failed with their errors, in walk
	// order, so a bulk run can report what needs attention.
	Failures []FileFailure
}

// FileFailure is one failed file within a bulk ingestion.
type FileFailure struct {
	Path string
	Err  error
}

// IngestDirectory walks dirPath and ingests every supported file as
// docType. One failing file does not stop the walk; already ingested
// files count as skipped unless force is set.
func (p *Pipeline) IngestDirectory(ctx context.Context, dirPath, docType string, force bool) (*DirectoryResult, error) {
	start := time.Now()

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path: %w", err)
	}

	result := &DirectoryResult{}
	walkErr := filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.FilesFailed++
			result.Failures = append(result.Failures, FileFailure{Path: path, Err: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			result.FilesSkipped++
			return nil
		}

		fileResult, ingestErr := p.IngestFile(ctx, path, docType, force)
		if ingestErr != nil {
			result.FilesFailed++
			result.Failures = append(result.Failures, FileFailure{Path: path, Err: ingestErr})
			p.logger.Warn("bulk ingestion file failed", "path", path, "error", ingestErr)
			return nil
		}
		if fileResult.Skipped {
			result.FilesSkipped++
			return nil
		}
		result.FilesAdded++
		result.Chunks += fileResult.Chunks
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking directory %s: %w", absDir, walkErr)
	}

	result.Duration = time.Since(start)
	p.logger.Info("bulk ingestion finished",
		"dir", absDir, "added", result.FilesAdded, "skipped", result.FilesSkipped,
		"failed", result.FilesFailed, "duration", result.Duration)
	return result, nil
}
