package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	kgforge "github.com/goliatone/go-kgforge"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Attach returns a pending upload of path, which may name a file, a
// directory, or a glob such as "data/**/*.csv". The upload runs when the
// resource holding the action is registered or updated. A single file yields
// one file resource; directories and globs yield a list, in path order.
func (s *Store) Attach(path, contentType string) *kgforge.LazyAction {
	return kgforge.NewLazyAction(kgforge.ActionUpload, path, func(ctx context.Context, path string) (any, error) {
		return s.upload(ctx, path, contentType)
	})
}

func (s *Store) upload(ctx context.Context, path, contentType string) (any, error) {
	paths, single, err := expandAttachment(path)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		file, err := readFile(p, contentType)
		if err != nil {
			return nil, err
		}
		r, err := s.adapter.Upload(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("kgforge: upload %s: %w", p, err)
		}
		s.logger.Debug("uploaded", zap.String("path", p), zap.String("digest", file.Digest), zap.Int64("size", file.Size))
		if single {
			return r, nil
		}
		out = append(out, r)
	}
	return out, nil
}

func expandAttachment(path string) ([]string, bool, error) {
	if strings.ContainsAny(path, "*?[{") {
		matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
		if err != nil {
			return nil, false, fmt.Errorf("kgforge: attach %s: %w", path, err)
		}
		if len(matches) == 0 {
			return nil, false, fmt.Errorf("kgforge: attach %s: no files match", path)
		}
		slices.Sort(matches)
		return matches, false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("kgforge: attach: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, true, nil
	}
	matches, err := doublestar.Glob(os.DirFS(path), "**", doublestar.WithFilesOnly())
	if err != nil {
		return nil, false, fmt.Errorf("kgforge: attach %s: %w", path, err)
	}
	slices.Sort(matches)
	out := make([]string, len(matches))
	for i, match := range matches {
		out[i] = filepath.Join(path, filepath.FromSlash(match))
	}
	return out, false, nil
}

func readFile(path, contentType string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("kgforge: attach: %w", err)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := blake3.Sum256(data)
	return File{
		Name:        filepath.Base(path),
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Digest:      hex.EncodeToString(sum[:]),
		Data:        data,
	}, nil
}

// Download fetches the files found at the dotted follow path of every
// resource into dir. Every resource is attempted; failures are reported
// together in a DownloadError indexed by resource position.
func (s *Store) Download(ctx context.Context, rs []*kgforge.Resource, follow, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kgforge: download: %w", err)
	}
	var (
		paths    []string
		failures []kgforge.ItemError
	)
	for i, r := range rs {
		locations, err := kgforge.CollectValues([]*kgforge.Resource{r}, follow)
		if err == nil && len(locations) == 0 {
			err = fmt.Errorf("kgforge: no file location at %s", follow)
		}
		if err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
			continue
		}
		for _, location := range locations {
			loc, ok := location.(string)
			if !ok || loc == "" {
				failures = append(failures, kgforge.ItemError{Index: i, Err: fmt.Errorf("kgforge: location %v is not a string", location)})
				continue
			}
			path, err := s.adapter.Download(ctx, loc, dir)
			if err != nil {
				failures = append(failures, kgforge.ItemError{Index: i, Err: err})
				continue
			}
			paths = append(paths, path)
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("download completed with failures", zap.Int("failed", len(failures)))
		return paths, &kgforge.DownloadError{Failures: failures}
	}
	return paths, nil
}

// FileType is the type of resources describing uploaded files.
const FileType = "DataDownload"

// FileResource describes an uploaded file stored at location. Adapters return
// it from Upload.
func FileResource(location string, file File) *kgforge.Resource {
	r := kgforge.NewResource(FileType)
	r.MustSet("name", file.Name)
	r.MustSet("contentUrl", location)
	r.MustSet("encodingFormat", file.ContentType)
	r.MustSet("contentSize", file.Size)
	if file.Digest != "" {
		r.MustSet("digest", "blake3:"+file.Digest)
	}
	return r
}
