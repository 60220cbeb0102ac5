package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// setting is one config key as it appears in nubilum.yaml.
type setting struct {
	key   string
	live  bool // applied by a running server without restart
	value func(*Config) any
}

var settings = []setting{
	{"logging.level", true, func(c *Config) any { return c.Logging.Level }},
	{"server.max_message_bytes", true, func(c *Config) any { return c.Server.MaxMessageBytes }},
	{"server.host", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", false, func(c *Config) any { return c.Server.Port }},
	{"server.strategy", false, func(c *Config) any { return c.Server.Strategy }},
	{"admin.addr", false, func(c *Config) any { return c.Admin.Addr }},
	{"database.driver", false, func(c *Config) any { return c.Database.Driver }},
	{"database.dsn", false, func(c *Config) any { return c.Database.DSN }},
}

// ReloadableFields lists the keys a running server picks up on reload.
func ReloadableFields() []string { return settingKeys(true) }

// NonReloadableFields lists the keys that only take effect on restart.
func NonReloadableFields() []string { return settingKeys(false) }

func settingKeys(live bool) []string {
	var keys []string
	for _, s := range settings {
		if s.live == live {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Holder keeps the server configuration loaded from a file and swaps in
// a new copy when the file changes or the process gets SIGHUP.
//
// Reloads from all sources go through one goroutine, so a burst of file
// events collapses into a single reload. Call Stop to release it.
type Holder struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	cfg      *Config
	onChange []func(*Config)
	onError  []func(error)

	kick    chan string // reload requests, tagged with their source
	start   sync.Once
	stop    sync.Once
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewHolder loads path and returns a holder for it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	return &Holder{
		path:   abs,
		logger: logger.With().Str("component", "config").Str("path", abs).Logger(),
		cfg:    cfg,
		kick:   make(chan string, 1),
		done:   make(chan struct{}),
	}, nil
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// OnChange adds fn to the functions run after each successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

// OnError adds fn to the functions run when a reload fails.
func (h *Holder) OnError(fn func(error)) {
	h.mu.Lock()
	h.onError = append(h.onError, fn)
	h.mu.Unlock()
}

// Reload reads the file again. A file that fails to load or validate
// leaves the current configuration in place.
func (h *Holder) Reload() error {
	next, err := Load(h.path)

	h.mu.Lock()
	prev := h.cfg
	if err == nil {
		h.cfg = next
	}
	changeFns := h.onChange
	errorFns := h.onError
	h.mu.Unlock()

	if err != nil {
		h.logger.Error().Err(err).Msg("config rejected, still running on previous settings")
		for _, fn := range errorFns {
			fn(err)
		}
		return fmt.Errorf("reload config: %w", err)
	}

	h.report(prev, next)
	for _, fn := range changeFns {
		fn(next)
	}
	return nil
}

// report logs every setting that differs between prev and next.
func (h *Holder) report(prev, next *Config) {
	n := 0
	for _, s := range settings {
		was, now := s.value(prev), s.value(next)
		if was == now {
			continue
		}
		n++
		if s.live {
			h.logger.Info().Str("key", s.key).Interface("from", was).Interface("to", now).Msg("setting applied")
		} else {
			h.logger.Warn().Str("key", s.key).Msg("setting changed, restart nubilum serve to apply")
		}
	}
	h.logger.Info().Int("changed", n).Msg("config reloaded")
}

// WatchFile reloads whenever the config file is written or replaced.
// The parent directory is watched so editors that save by rename are
// seen too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.path), err)
	}

	h.mu.Lock()
	h.watcher = w
	h.mu.Unlock()

	h.run()
	go h.forwardFileEvents(w)
	h.logger.Info().Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	h.run()
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				h.request("SIGHUP")
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stop.Do(func() {
		close(h.done)
		h.mu.Lock()
		if h.watcher != nil {
			h.watcher.Close()
		}
		h.mu.Unlock()
	})
}

func (h *Holder) forwardFileEvents(w *fsnotify.Watcher) {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == name && ev.Has(fsnotify.Write|fsnotify.Create) {
				h.request(ev.Op.String())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		case <-h.done:
			return
		}
	}
}

// request queues a reload unless one is already waiting.
func (h *Holder) request(source string) {
	select {
	case h.kick <- source:
	default:
	}
}

// run starts the reload goroutine once.
func (h *Holder) run() {
	h.start.Do(func() {
		go func() {
			for {
				select {
				case source := <-h.kick:
					h.logger.Debug().Str("trigger", source).Msg("reloading config")
					h.Reload()
				case <-h.done:
					return
				}
			}
		}()
	})
}
