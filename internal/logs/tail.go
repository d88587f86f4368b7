package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const pollInterval = 200 * time.Millisecond

// TailOptions selects a window of a job log. Offset is the byte position to
// resume from as returned by a previous call; a negative Offset means "the
// last Limit lines". Follow keeps polling for up to Wait when the window is
// empty.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads a window of the log at path. A missing file is not an error:
// jobs create their log lazily, so callers poll until it appears. Offsets are
// byte positions of complete lines only; a line still being written is left
// for the next call.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	if opts.Offset < 0 {
		lines, offset, err := tailEnd(path, opts.Limit)
		if err != nil {
			return TailResult{}, err
		}
		if len(lines) > 0 || !opts.Follow || opts.Wait == 0 {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
		return poll(ctx, path, offset, opts.Wait)
	}

	lines, offset, err := readLines(path, opts.Offset)
	if err != nil {
		return TailResult{}, err
	}
	if len(lines) > 0 || !opts.Follow || opts.Wait == 0 {
		return TailResult{Lines: lines, Offset: offset}, nil
	}
	return poll(ctx, path, offset, opts.Wait)
}

// readLines returns the complete lines at and after offset, with the byte
// position just past the last one. An offset beyond the current size means
// the file was truncated or rotated, so reading restarts from the top.
func readLines(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if offset > info.Size() {
		offset = 0
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
	}

	var lines []string
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			lines = append(lines, strings.TrimSuffix(line, "\n"))
			offset += int64(len(line))
			continue
		}
		if errors.Is(err, io.EOF) {
			// A trailing fragment without its newline stays unread; the
			// writer has not finished the line.
			return lines, offset, nil
		}
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
}

// tailEnd returns the last limit complete lines and the end-of-log offset.
func tailEnd(path string, limit int) ([]string, int64, error) {
	all, offset, err := readLines(path, 0)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || len(all) == 0 {
		return nil, offset, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, offset, nil
}

// poll re-reads from offset until lines arrive, wait elapses, or ctx ends.
func poll(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-timer.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
			lines, next, err := readLines(path, offset)
			if err != nil {
				return TailResult{}, err
			}
			if len(lines) > 0 {
				return TailResult{Lines: lines, Offset: next}, nil
			}
			offset = next
		}
	}
}
