package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wanworker/internal/ports"
	"wanworker/internal/worker/generator"
)

// fakeRunner records commands and optionally writes an artifact into the
// directory named by WAN_OUTPUT_DIR.
type fakeRunner struct {
	mu       sync.Mutex
	commands []generator.Command
	exitCode int
	err      error
	// artifact is the file name written on success; empty writes nothing.
	artifact string
}

func (f *fakeRunner) Run(_ context.Context, cmd generator.Command) (int, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.err != nil {
		return -1, f.err
	}
	if f.exitCode == 0 && f.artifact != "" {
		dir := cmd.Env["WAN_OUTPUT_DIR"]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return -1, err
		}
		if err := os.WriteFile(filepath.Join(dir, f.artifact), []byte("fake-mp4-bytes"), 0o644); err != nil {
			return -1, err
		}
	}
	return f.exitCode, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

type putCall struct {
	key         string
	contentType string
	body        string
}

// fakeStorage is an in-memory ports.StorageProvider. When signer is set
// it provides the signed URLs.
type fakeStorage struct {
	puts      []putCall
	putErr    error
	signedURL string
	signErr   error
	objectURL string
	signer    ports.StorageProvider
	// storedKey, when set, replaces the requested key in PutObject's
	// output, the way Drive returns a file ID.
	storedKey string
}

func (f *fakeStorage) Provider() string { return "fake" }

func (f *fakeStorage) PutObject(_ context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if f.putErr != nil {
		return ports.PutObjectOutput{}, f.putErr
	}
	body, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	f.puts = append(f.puts, putCall{key: in.ObjectKey, contentType: in.ContentType, body: string(body)})
	stored := in.ObjectKey
	if f.storedKey != "" {
		stored = f.storedKey
	}
	return ports.PutObjectOutput{ObjectKey: stored, Size: int64(len(body))}, nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	if f.signer != nil {
		return f.signer.GetSignedURL(ctx, key, expiresIn)
	}
	if f.signErr != nil {
		return ports.SignedURLOutput{}, f.signErr
	}
	if f.signedURL == "" {
		return ports.SignedURLOutput{}, nil
	}
	return ports.SignedURLOutput{URL: fmt.Sprintf("%s/%s?expires=%d", f.signedURL, key, int(expiresIn.Seconds()))}, nil
}

func (f *fakeStorage) ObjectURL(key string) string {
	if f.objectURL == "" {
		return ""
	}
	return f.objectURL + "/" + key
}

type progressEvent struct {
	pct int
	msg string
}

type recordingReporter struct {
	mu     sync.Mutex
	events []progressEvent
}

func (r *recordingReporter) Progress(_ context.Context, _ string, pct int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, progressEvent{pct: pct, msg: msg})
}

func (r *recordingReporter) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.pct)
	}
	return out
}
