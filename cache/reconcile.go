package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarry-ai/quarry/core"
)

// Resolution records the outcome of reconciling one space key.
type Resolution struct {
	Key string
	// Kept is the file that survives under the canonical name.
	Kept string
	// Dropped is the file removed (or, in a dry run, that would be removed).
	Dropped string
	// Reason explains the choice in human terms.
	Reason string
}

// Reconcile folds legacy KEY_full.json entries into canonical KEY.json
// entries. When both exist for a key, the entry with more documents wins;
// on a tie in document count the larger file wins (more body content).
// With execute false nothing is modified and the planned resolutions are
// returned for inspection.
func (s *Store) Reconcile(execute bool) ([]Resolution, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}

	fulls := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fullSuffix+ext) {
			continue
		}
		key := strings.TrimSuffix(name, fullSuffix+ext)
		fulls[key] = filepath.Join(s.dir, name)
	}

	var resolutions []Resolution
	for key, fullPath := range fulls {
		canonPath := s.Path(key)
		res, err := s.resolve(key, canonPath, fullPath, execute)
		if err != nil {
			return resolutions, err
		}
		resolutions = append(resolutions, res)
		s.logger.Info("reconciled cache entry",
			"key", key, "kept", res.Kept, "dropped", res.Dropped, "reason", res.Reason, "dry_run", !execute)
	}
	return resolutions, nil
}

func (s *Store) resolve(key, canonPath, fullPath string, execute bool) (Resolution, error) {
	canonCount, canonSize, canonOK := inspect(canonPath)
	fullCount, fullSize, fullOK := inspect(fullPath)

	if !fullOK {
		// The legacy file is unreadable; just drop it.
		res := Resolution{Key: key, Kept: canonPath, Dropped: fullPath, Reason: "legacy entry unreadable"}
		if execute {
			if err := os.Remove(fullPath); err != nil {
				return res, fmt.Errorf("removing %s: %w", fullPath, err)
			}
		}
		return res, nil
	}

	keepFull := !canonOK ||
		fullCount > canonCount ||
		(fullCount == canonCount && fullSize > canonSize)

	if keepFull {
		reason := "legacy entry has more documents"
		switch {
		case !canonOK:
			reason = "no canonical entry"
		case fullCount == canonCount:
			reason = "equal documents, legacy entry larger"
		}
		res := Resolution{Key: key, Kept: canonPath, Dropped: fullPath, Reason: reason}
		if execute {
			if err := os.Rename(fullPath, canonPath); err != nil {
				return res, fmt.Errorf("promoting %s: %w", fullPath, err)
			}
		}
		return res, nil
	}

	res := Resolution{Key: key, Kept: canonPath, Dropped: fullPath, Reason: "canonical entry is newer or larger"}
	if execute {
		if err := os.Remove(fullPath); err != nil {
			return res, fmt.Errorf("removing %s: %w", fullPath, err)
		}
	}
	return res, nil
}

// inspect reads a cache file and reports its document count and byte size.
// ok is false when the file is missing or undecodable.
func inspect(path string) (count, size int, ok bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, false
	}
	var space core.Space
	if err := json.Unmarshal(raw, &space); err != nil {
		slog.Default().Warn("unreadable cache entry during reconcile", "path", path, "err", err)
		return 0, 0, false
	}
	return len(space.Pages), len(raw), true
}
