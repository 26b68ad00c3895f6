package collector

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/pmills/gamewatch/internal/domain"
	"github.com/pmills/gamewatch/internal/game"
)

// Tailer follows one game's log file and classifies appended lines into
// domain events. Only content written after attach is ever processed:
// the cursor starts at end-of-file and rotation re-seeks to the new end.
type Tailer struct {
	game     string
	path     string
	adapter  game.Adapter
	interval time.Duration

	file     *os.File
	position int64

	Events  chan domain.Event
	Errors  chan error
	done    chan struct{}
	stopped chan struct{}
}

// NewTailer creates a tailer for the given game's log file
func NewTailer(gameName, path string, adapter game.Adapter, interval time.Duration) *Tailer {
	return &Tailer{
		game:     gameName,
		path:     path,
		adapter:  adapter,
		interval: interval,
		Events:   make(chan domain.Event, 100),
		Errors:   make(chan error, 10),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start opens the log file at its current end and begins tailing
func (t *Tailer) Start() error {
	if err := t.openAtEnd(); err != nil {
		return err
	}
	go t.tailLoop()
	return nil
}

// Stop stops the tailer. The file handle belongs to the tail goroutine,
// so Stop waits for it to exit and release the handle; only that
// goroutine ever touches t.file after Start.
func (t *Tailer) Stop() {
	close(t.done)
	<-t.stopped
}

// openAtEnd opens the file and positions the cursor at its current end
func (t *Tailer) openAtEnd() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.file = file
	t.position = pos
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// tailLoop polls the file for new content until stopped
func (t *Tailer) tailLoop() {
	defer close(t.stopped)
	defer t.closeFile()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				select {
				case t.Errors <- err:
				default:
				}
			}
		}
	}
}

// readNewContent reads appended bytes since the last read, handling
// truncation and rotation. Truncated files are re-read from the start;
// rotated files are reopened at their end so old content never replays.
func (t *Tailer) readNewContent() error {
	pathInfo, err := os.Stat(t.path)
	if err != nil {
		// File gone, likely mid-rotation. Drop the handle and try to
		// reattach on the next tick.
		t.closeFile()
		return fmt.Errorf("game=%s stat log file: %w", t.game, err)
	}

	if t.file == nil {
		// Reattach after rotation; openAtEnd skips everything already written
		return t.openAtEnd()
	}

	fileInfo, err := t.file.Stat()
	if err != nil {
		t.closeFile()
		return fmt.Errorf("game=%s stat open handle: %w", t.game, err)
	}

	// A different file at the same path means the log was rotated out
	if !os.SameFile(pathInfo, fileInfo) {
		t.closeFile()
		return t.openAtEnd()
	}

	// Copytruncate rotation: same file, shrunk underneath us
	if pathInfo.Size() < t.position {
		t.position = 0
	}

	if pathInfo.Size() == t.position {
		return nil
	}

	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return fmt.Errorf("game=%s seeking to cursor: %w", t.game, err)
	}

	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Partial line: leave the cursor before it so the next read
			// picks it up once its terminator arrives
			break
		}
		if err != nil {
			return fmt.Errorf("game=%s reading line: %w", t.game, err)
		}

		t.position += int64(len(line))

		line = line[:len(line)-1]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if line != "" {
			t.classify(line)
		}
	}

	return nil
}

// classify matches a line against the game's ordered rules; first match wins,
// unmatched lines are dropped
func (t *Tailer) classify(line string) {
	for _, rule := range t.adapter.LogRules() {
		fields, ok := rule.Match(line)
		if !ok {
			continue
		}
		event := domain.NewEvent(t.game, rule.Kind, fields)
		select {
		case t.Events <- event:
		default:
			log.Printf("game=%s event channel full, dropping %s event", t.game, rule.Kind)
		}
		return
	}
}
