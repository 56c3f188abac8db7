// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package logutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// rotationTicker fires when the wall clock enters the next rotation hour.
type rotationTicker struct {
	C    <-chan time.Time
	stop chan struct{}
}

// newRotationTicker creates a ticker rotating every hours hours, aligned to
// the hour: with hours set to 2 a ticker started at 09:12 first fires at
// 11:00. Zero disables rotation.
func newRotationTicker(hours uint) *rotationTicker {
	ch := make(chan time.Time)
	t := &rotationTicker{C: ch, stop: make(chan struct{})}
	if hours > 0 {
		go t.loop(ch, hours)
	}
	return t
}

func (t *rotationTicker) loop(ch chan<- time.Time, hours uint) {
	next := nextRotationHour(time.Now(), hours)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if now.Hour() == next {
				select {
				case ch <- now:
				case <-t.stop:
					return
				}
				next = nextRotationHour(time.Now(), hours)
			}
		case <-t.stop:
			return
		}
	}
}

func (t *rotationTicker) Stop() { close(t.stop) }

func nextRotationHour(now time.Time, hours uint) int {
	return now.Add(time.Hour * time.Duration(hours)).Hour()
}

// FileWriter writes log output to a file from a background goroutine. The
// file is named after the hour it was opened in, and path is kept as a
// symlink to the current one. Writes never block: when the buffer is full the
// record is dropped.
type FileWriter struct {
	path string
	fd   *os.File

	buf     chan []byte
	quit    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	dropped atomic.Uint64

	ticker *rotationTicker
}

// NewFileWriter creates a writer buffering up to bufLen records and rotating
// the file every rotateHours hours.
func NewFileWriter(path string, bufLen int, rotateHours uint) (*FileWriter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid log file path %q: %w", path, err)
	}
	return &FileWriter{
		path:   abs,
		buf:    make(chan []byte, bufLen),
		quit:   make(chan struct{}),
		ticker: newRotationTicker(rotateHours),
	}, nil
}

func (w *FileWriter) hourlyPath() string {
	return w.path + "." + time.Now().Format("2006-01-02_15")
}

func (w *FileWriter) open() error {
	file := w.hourlyPath()
	fd, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.fd = fd
	if _, err := os.Lstat(w.path); err == nil {
		if err := os.Remove(w.path); err != nil {
			return err
		}
	}
	return os.Symlink(file, w.path)
}

func (w *FileWriter) closeFile() error {
	if w.fd == nil {
		return nil
	}
	if err := w.fd.Sync(); err != nil {
		return err
	}
	err := w.fd.Close()
	w.fd = nil
	return err
}

// Start opens the log file and starts the writer goroutine.
func (w *FileWriter) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("log file writer already started")
	}
	if err := w.open(); err != nil {
		w.started.Store(false)
		return err
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *FileWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case msg := <-w.buf:
			w.write(msg)
		case <-w.quit:
			// Drain what is already buffered.
			for {
				select {
				case msg := <-w.buf:
					w.write(msg)
				default:
					if err := w.closeFile(); err != nil {
						fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
					}
					return
				}
			}
		}
	}
}

func (w *FileWriter) write(msg []byte) {
	select {
	case <-w.ticker.C:
		if err := w.closeFile(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		if err := w.open(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to rotate log file: %v\n", err)
		}
	default:
	}
	if w.fd != nil {
		w.fd.Write(msg)
	}
}

// Write queues a copy of msg. It implements io.Writer.
func (w *FileWriter) Write(msg []byte) (int, error) {
	buf := make([]byte, len(msg))
	copy(buf, msg)

	select {
	case w.buf <- buf:
	default:
		w.dropped.Add(1)
	}
	return len(msg), nil
}

// Dropped returns the number of records lost to a full buffer.
func (w *FileWriter) Dropped() uint64 { return w.dropped.Load() }

// Close flushes the buffered records and closes the file.
func (w *FileWriter) Close() error {
	if !w.started.Load() {
		return nil
	}
	close(w.quit)
	w.wg.Wait()
	w.ticker.Stop()
	return nil
}
