package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Session cookies the board API actually authenticates with. A cookie
// file missing all of them is treated as empty.
var importantCookies = []string{
	"JSESSIONID",
	"seraph.rememberme.cookie",
	"atlassian.xsrf.token",
}

type cookieFile struct {
	Cookies map[string]string `json:"cookies"`
}

// CookieStore holds the tracker session cookies, backed by a JSON file
// that an external login helper may rewrite at any time. Load is lazy and
// cached; a file watcher invalidates the cache when the file changes.
type CookieStore struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	cached  map[string]string
	watcher *fsnotify.Watcher
}

func NewCookieStore(path string, log *slog.Logger) *CookieStore {
	return &CookieStore{path: path, log: log.With("component", "cookies")}
}

// Watch starts invalidating the cached cookies whenever the backing file
// is rewritten. Failing to set up the watcher is not fatal: the store
// still works, it just serves cached cookies until Invalidate is called.
func (s *CookieStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create cookie watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
					s.log.Info("cookie file changed, reloading", "path", s.path)
					s.Invalidate()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("cookie watcher error", "err", err)
			}
		}
	}()
	return nil
}

func (s *CookieStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

// Invalidate drops the cached cookies so the next Cookies call re-reads
// the file.
func (s *CookieStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Cookies returns the current session cookies. A missing, empty or
// malformed file, or one without any of the important session cookies,
// yields an error so the caller can trigger a credential refresh.
func (s *CookieStore) Cookies() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var cf cookieFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse cookie file: %w", err)
	}
	if len(cf.Cookies) == 0 {
		return nil, fmt.Errorf("cookie file %s has no cookies", s.path)
	}

	found := false
	for _, name := range importantCookies {
		if _, ok := cf.Cookies[name]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("cookie file %s is missing session cookies", s.path)
	}

	s.cached = cf.Cookies
	return s.cached, nil
}
