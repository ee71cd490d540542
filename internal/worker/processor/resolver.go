package processor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wanworker/internal/pkg/errors"
)

const artifactExt = ".mp4"

// ResolveLatest returns the newest .mp4 found recursively under
// outputRoot or directly inside toolRoot. Candidates modified before
// notBefore are ignored; a zero notBefore disables the filter. On equal
// mtimes the first candidate found wins. Missing roots count as empty.
func ResolveLatest(outputRoot, toolRoot string, notBefore time.Time) (string, error) {
	var (
		best    string
		bestMod time.Time
	)

	consider := func(path string, info fs.FileInfo) {
		mod := info.ModTime()
		if !notBefore.IsZero() && mod.Before(notBefore) {
			return
		}
		if best == "" || mod.After(bestMod) {
			best, bestMod = path, mod
		}
	}

	if outputRoot != "" {
		_ = filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtree; keep going with what we can see.
				if d != nil && d.IsDir() && path != outputRoot {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !isArtifact(d.Name()) {
				return nil
			}
			if info, err := d.Info(); err == nil {
				consider(path, info)
			}
			return nil
		})
	}

	if toolRoot != "" {
		entries, _ := os.ReadDir(toolRoot)
		for _, e := range entries {
			if e.IsDir() || !isArtifact(e.Name()) {
				continue
			}
			if info, err := e.Info(); err == nil {
				consider(filepath.Join(toolRoot, e.Name()), info)
			}
		}
	}

	if best == "" {
		return "", errors.New(errors.CodeNoArtifact, "No MP4 found after generation.").
			WithOp("resolver.latest").
			WithField("output_root", outputRoot)
	}
	return best, nil
}

func isArtifact(name string) bool {
	return strings.HasSuffix(name, artifactExt)
}
