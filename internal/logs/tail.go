package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	maxLineBytes     = 1024 * 1024
	followPollPeriod = 250 * time.Millisecond
)

// Options controls a Tail call.
type Options struct {
	// Offset is a byte position returned by a previous call. A negative
	// offset reads the last Limit lines instead.
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available yet.
	Follow bool
	Wait   time.Duration
}

// Chunk is the result of a Tail call. Offset resumes after the last line.
type Chunk struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Tail reads complete lines from path. A missing file yields an empty chunk
// at offset zero.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = readLast(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or replaced; start over from the beginning.
			offset = 0
		}
		chunk, err = readFrom(path, offset, opts.Limit)
	}
	if err != nil {
		return chunk, err
	}
	if len(chunk.Lines) == 0 && opts.Follow && opts.Wait > 0 {
		return waitForLines(ctx, path, chunk.Offset, opts.Limit, opts.Wait)
	}
	return chunk, nil
}

// readLast returns the last limit complete lines. With limit <= 0 it only
// reports the offset of the end of the last complete line.
func readLast(path string, limit int) (Chunk, error) {
	all, err := readFrom(path, 0, 0)
	if err != nil {
		return Chunk{}, err
	}
	if limit <= 0 {
		return Chunk{Offset: all.Offset}, nil
	}
	if len(all.Lines) > limit {
		all.Lines = all.Lines[len(all.Lines)-limit:]
	}
	return all, nil
}

// readFrom scans complete lines starting at offset. A positive limit stops
// after that many lines.
func readFrom(path string, offset int64, limit int) (Chunk, error) {
	chunk := Chunk{Offset: offset}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return chunk, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return chunk, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	for limit <= 0 || len(chunk.Lines) < limit {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A trailing partial line is picked up once it is terminated.
				break
			}
			return chunk, fmt.Errorf("read log file: %w", err)
		}
		chunk.Offset += int64(len(line))
		text := bytes.TrimRight(line, "\r\n")
		if len(text) > maxLineBytes {
			text = text[:maxLineBytes]
		}
		chunk.Lines = append(chunk.Lines, string(text))
	}
	return chunk, nil
}

func waitForLines(ctx context.Context, path string, offset int64, limit int, wait time.Duration) (Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	events, closeWatch := watchDir(filepath.Dir(path))
	defer closeWatch()

	ticker := time.NewTicker(followPollPeriod)
	defer ticker.Stop()

	for {
		chunk, err := readFrom(path, offset, limit)
		if err != nil {
			return Chunk{Offset: offset}, err
		}
		if len(chunk.Lines) > 0 {
			return chunk, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Chunk{Offset: offset}, nil
			}
			return Chunk{Offset: offset}, ctx.Err()
		case <-ticker.C:
		case <-events:
		}
	}
}

// watchDir signals writes in dir. Without a watcher the channel never fires.
func watchDir(dir string) (<-chan struct{}, func()) {
	signal := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return signal, func() {}
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return signal, func() {}
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case signal <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return signal, func() {
		close(done)
		watcher.Close()
	}
}
