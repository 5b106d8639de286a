// Package diskman watches one or more directories for project and pledge
// files, debounces the filesystem events fsnotify delivers, and publishes
// discrete Added/Removed/Replaced deltas onto observable collections that
// the engine mirrors into its own event queue.
//
// The on-disk representation is the single source of truth: created if
// absent, loaded if present, with every mutation going through one owning
// goroutine. Since plain files have no transaction log of their own, the
// atomicWrite temp-file-then-rename helper stands in for one.
package diskman

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lightningnetwork/lighthouse/build"
	"github.com/lightningnetwork/lighthouse/mirror"
	lhwire "github.com/lightningnetwork/lighthouse/wire"
)

const (
	projectExt = ".lighthouse-project"
	pledgeExt  = ".lighthouse-pledge"
	claimFile  = "status.claimed"
)

// DebounceInterval is the minimum coalescing window for bursts of
// filesystem events describing the same file.
const DebounceInterval = 150 * time.Millisecond

// ProjectFile pairs a loaded project with the path it was read from.
type ProjectFile struct {
	Path string
	Raw  *lhwire.Project
}

// PledgeFile pairs a loaded pledge with the path it was read from.
type PledgeFile struct {
	Path string
	Raw  *lhwire.Pledge
	Hash [32]byte
}

// ClaimRecord is the contents of a project directory's status.claimed file.
type ClaimRecord struct {
	ClaimTxHash [32]byte
}

// Manager watches directories for project and pledge files and exposes
// their contents as observable mirror.Writer collections, keyed by path.
type Manager struct {
	dirs []string

	Projects *mirror.Writer[string, ProjectFile]
	Pledges  *mirror.Writer[string, PledgeFile] // key: pledge path ("<projectDir>\x00status.claimed" for a claim file)

	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	quit    chan struct{}
}

// New constructs a Manager watching dirs. Call Start to begin watching.
func New(dirs []string) (*Manager, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return &Manager{
		dirs:     dirs,
		Projects: mirror.NewWriter[string, ProjectFile](),
		Pledges:  mirror.NewWriter[string, PledgeFile](),
		watcher:  watcher,
		pending:  make(map[string]*time.Timer),
		quit:     make(chan struct{}),
	}, nil
}

// Start performs the initial directory scan and begins watching for
// changes. The initial scan populates Projects/Pledges synchronously so
// callers can rely on a consistent view as soon as Start returns.
func (m *Manager) Start() error {
	for _, dir := range m.dirs {
		if err := m.scanDir(dir); err != nil {
			return err
		}
	}
	go m.watchLoop()
	return nil
}

// Stop releases the underlying filesystem watch.
func (m *Manager) Stop() error {
	close(m.quit)
	return m.watcher.Close()
}

func (m *Manager) scanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m.loadPath(filepath.Join(dir, e.Name()))
	}
	return nil
}

func (m *Manager) watchLoop() {
	for {
		select {
		case <-m.quit:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.debounce(ev.Name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			build.Log.Warnf("diskman: watcher error: %v", err)
		}
	}
}

// debounce coalesces a burst of events for the same path into one load,
// per the ≥150ms requirement.
func (m *Manager) debounce(path string) {
	if existing, ok := m.pending[path]; ok {
		existing.Stop()
	}
	m.pending[path] = time.AfterFunc(DebounceInterval, func() {
		m.loadPath(path)
	})
}

func (m *Manager) loadPath(path string) {
	base := filepath.Base(path)

	if base == claimFile {
		m.loadClaim(path)
		return
	}

	switch {
	case strings.HasSuffix(base, projectExt):
		m.loadProject(path)
	case strings.HasSuffix(base, pledgeExt):
		m.loadPledge(path)
	}
}

func (m *Manager) loadProject(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.Projects.Delete(path)
			return
		}
		build.Log.Errorf("diskman: read project %s: %v", path, err)
		return
	}

	raw := &lhwire.Project{}
	if err := lhwire.DecodeFramed(bytes.NewReader(data), raw); err != nil {
		build.Log.Errorf("diskman: decode project %s: %v", path, err)
		return
	}

	m.Projects.Put(path, ProjectFile{Path: path, Raw: raw})
}

func (m *Manager) loadPledge(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.Pledges.Delete(path)
			return
		}
		build.Log.Errorf("diskman: read pledge %s: %v", path, err)
		return
	}

	raw := &lhwire.Pledge{}
	if err := lhwire.DecodeFramed(bytes.NewReader(data), raw); err != nil {
		build.Log.Errorf("diskman: decode pledge %s: %v", path, err)
		return
	}

	m.Pledges.Put(path, PledgeFile{
		Path: path,
		Raw:  raw,
		Hash: lhwire.CanonicalHash(data),
	})
}

func (m *Manager) loadClaim(path string) {
	// Publishes a placeholder entry (no decoded pledge) in the Pledges
	// collection whenever a claim file changes; consumers call ReadClaim
	// for the claim record itself. The engine's pledge bridge skips
	// entries without a decoded pledge, so it does not react to this one.
	dir := filepath.Dir(path)
	m.Pledges.Put(dir+"\x00"+claimFile, PledgeFile{Path: path})
}

type claimDoc struct {
	ClaimTxHash string `json:"claim_tx_hash"`
}

// ReadClaim reads and parses a project directory's status.claimed file, if
// present. A nil result with nil error means the project is OPEN.
func ReadClaim(projectDir string) (*ClaimRecord, error) {
	path := filepath.Join(projectDir, claimFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc claimDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(doc.ClaimTxHash)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("diskman: malformed claim_tx_hash in %s", path)
	}
	var hash [32]byte
	copy(hash[:], raw)
	return &ClaimRecord{ClaimTxHash: hash}, nil
}

// WriteClaim atomically writes projectDir's status.claimed file, marking
// the project CLAIMED.
func WriteClaim(projectDir string, claimTxHash [32]byte) error {
	path := filepath.Join(projectDir, claimFile)
	data, err := json.Marshal(claimDoc{ClaimTxHash: hex.EncodeToString(claimTxHash[:])})
	if err != nil {
		return err
	}
	return atomicWrite(path, data, 0644)
}

// WritePledge atomically persists a pledge's wire bytes under projectDir,
// named per the <hex-sha256>.lighthouse-pledge convention.
func WritePledge(projectDir string, pledgeBytes []byte) (string, error) {
	hash := lhwire.CanonicalHash(pledgeBytes)
	name := hex.EncodeToString(hash[:]) + pledgeExt
	path := filepath.Join(projectDir, name)
	if err := atomicWrite(path, pledgeBytes, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// RemovePledge deletes a persisted pledge file. A file that is already
// absent is not an error.
func RemovePledge(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// WriteProject atomically writes a project file named per the
// <title>.lighthouse-project convention.
func WriteProject(dir, title string, projectBytes []byte) (string, error) {
	path := filepath.Join(dir, sanitizeTitle(title)+projectExt)
	if err := atomicWrite(path, projectBytes, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeTitle(title string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")
	return r.Replace(title)
}

