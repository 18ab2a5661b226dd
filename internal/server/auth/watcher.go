package auth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors and secret mounts
// produce for a single replacement.
const reloadDelay = 250 * time.Millisecond

// ReadKeyFile loads an HMAC secret from path, ignoring surrounding whitespace.
func ReadKeyFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return bytes.TrimSpace(b), nil
}

// KeyFileWatcher rotates the signing key whenever the key file changes.
// The previous key keeps verifying tokens issued before the rotation.
type KeyFileWatcher struct {
	path   string
	holder *Holder
	logger logging.Logger
	opts   []SignerOption
}

func NewKeyFileWatcher(path string, holder *Holder, l logging.Logger, opts ...SignerOption) *KeyFileWatcher {
	return &KeyFileWatcher{
		path:   filepath.Clean(path),
		holder: holder,
		logger: l.With("module", "key_watcher"),
		opts:   opts,
	}
}

// Reload reads the key file and installs it as the current key. It reports
// whether a rotation happened; an unchanged key is a no-op.
func (w *KeyFileWatcher) Reload(ctx context.Context) (bool, error) {
	secret, err := ReadKeyFile(w.path)
	if err != nil {
		return false, err
	}

	current := w.holder.Signer().Keys()
	if KeyID(secret) == current.CurrentID() {
		return false, nil
	}

	ring, err := current.Rotate(secret)
	if err != nil {
		return false, err
	}
	w.holder.Swap(NewSigner(ring, w.opts...))
	w.logger.Info(ctx, "signing key rotated", "kid", ring.CurrentID(), "previous_kid", current.CurrentID(), "accepted_kids", ring.IDs())
	return true, nil
}

// Run watches the key file's directory until ctx is done. The directory is
// watched rather than the file so atomic replacements are seen.
func (w *KeyFileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if _, err := w.Reload(ctx); err != nil {
				w.logger.Warn(ctx, "signing key reload failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "key watcher error", "error", err)
		}
	}
}
