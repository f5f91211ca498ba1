package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Tailer follows a JSON Lines file and hands every complete line to a callback.
type Tailer struct {
	path    string
	offset  int64
	partial []byte

	// Poll is a fallback re-read interval for filesystems that drop events.
	Poll time.Duration
}

// NewTailer starts at the beginning of path, or at its current end when
// fromEnd is set.
func NewTailer(path string, fromEnd bool) (*Tailer, error) {
	t := &Tailer{path: path, Poll: 2 * time.Second}
	if fromEnd {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		t.offset = info.Size()
	}
	return t, nil
}

// Run emits existing lines past the offset, then waits for writes until ctx
// ends or emit fails.
func (t *Tailer) Run(ctx context.Context, emit func(line []byte) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched so that truncate-and-recreate is seen too.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(t.path), err)
	}

	if err := t.drain(emit); err != nil {
		return err
	}

	ticker := time.NewTicker(t.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := t.drain(emit); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("tail watcher error", "path", t.path, "error", err)
		case <-ticker.C:
			if err := t.drain(emit); err != nil {
				return err
			}
		}
	}
}

// drain reads from the offset to EOF and emits complete lines. A shrunken
// file is read again from the start.
func (t *Tailer) drain(emit func([]byte) error) error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < t.offset {
		t.offset, t.partial = 0, nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(f)
	for {
		chunk, err := r.ReadBytes('\n')
		t.offset += int64(len(chunk))
		if err != nil {
			t.partial = append(t.partial, chunk...)
			if err == io.EOF {
				return nil
			}
			return err
		}
		line := bytes.TrimSpace(append(t.partial, chunk...))
		t.partial = nil
		if len(line) == 0 {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
}

// handleTail upgrades to a websocket and pushes each JSONL line as a text
// message. ?from=end skips lines already in the file.
func (s *Server) handleTail(c *gin.Context) {
	path, err := s.resolve(c.Param("root"), c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tailer, err := NewTailer(path, c.Query("from") == "end")
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The read loop only notices the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = tailer.Run(ctx, func(line []byte) error {
		return conn.WriteMessage(websocket.TextMessage, line)
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Debug("tail ended", "path", path, "error", err)
	}
}
