package registry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mail-swarm/mail/logctx"
)

// Load reads cfg.FilePath and populates r.endpoints with its persistent
// entries. A missing file is not an error — New treats os.IsNotExist as a
// fresh registry. Loaded entries are always non-volatile (§6.4: the file
// only ever holds the persistent subset).
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.cfg.FilePath)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range doc.Endpoints {
		ep := e
		ep.SwarmName = name
		ep.Volatile = false
		r.endpoints[name] = &ep
	}
	r.dirty = false
	return nil
}

// Save atomically writes the non-volatile subset of the registry to
// cfg.FilePath, grounded in the teacher's memory.FileMemory.persistLocked
// (memory/persistent.go): write to a ".tmp" sibling, then rename over the
// final path so a crash mid-write never leaves a truncated file behind. A
// no-op if no FilePath is configured or nothing has changed since the last
// Save.
func (r *Registry) Save() error {
	if r.cfg.FilePath == "" {
		return nil
	}
	r.mu.RLock()
	if !r.dirty {
		r.mu.RUnlock()
		return nil
	}
	doc := document{
		LocalSwarmName: r.cfg.LocalSwarmName,
		LocalBaseURL:   r.cfg.LocalBaseURL,
		Endpoints:      make(map[string]Endpoint),
	}
	for name, e := range r.endpoints {
		if e.Volatile {
			continue
		}
		doc.Endpoints[name] = *e
	}
	r.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(r.cfg.FilePath), 0o755); err != nil {
		return err
	}

	tmpPath := r.cfg.FilePath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, r.cfg.FilePath); err != nil {
		return err
	}

	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()

	r.log.Debug("registry persisted", logctx.F("path", r.cfg.FilePath), logctx.F("peers", len(doc.Endpoints)))
	return nil
}
