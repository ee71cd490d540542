package processor

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"wanworker/internal/pkg/errors"
)

const (
	workspacePrefix = "wan22_"
	inputImageName  = "input.png"
)

// ImageVerifier checks that decoded bytes are a readable image.
type ImageVerifier interface {
	Verify(data []byte) error
}

// DecodeVerifier fully decodes the image with the registered decoders
// (PNG, JPEG, GIF, WebP, BMP, TIFF).
type DecodeVerifier struct{}

func (DecodeVerifier) Verify(data []byte) error {
	_, _, err := image.Decode(bytes.NewReader(data))
	return err
}

// NopVerifier accepts anything.
type NopVerifier struct{}

func (NopVerifier) Verify([]byte) error { return nil }

// NewImageVerifier returns DecodeVerifier when verification is enabled.
func NewImageVerifier(enabled bool) ImageVerifier {
	if enabled {
		return DecodeVerifier{}
	}
	return NopVerifier{}
}

// Workspaces creates per-job scratch directories under root
// (the OS temp dir when root is empty).
type Workspaces struct {
	root     string
	verifier ImageVerifier
}

func NewWorkspaces(root string, verifier ImageVerifier) *Workspaces {
	if verifier == nil {
		verifier = NopVerifier{}
	}
	return &Workspaces{root: root, verifier: verifier}
}

// Workspace holds one decoded input image.
type Workspace struct {
	Dir       string
	ImagePath string
}

// Acquire decodes imageB64 into a fresh directory. On any failure the
// directory is already gone when the error is returned.
func (w *Workspaces) Acquire(imageB64 string) (*Workspace, error) {
	if w.root != "" {
		if err := os.MkdirAll(w.root, 0o755); err != nil {
			return nil, errors.Wrap(err, "workspace.acquire", "failed to create workspace root")
		}
	}

	dir, err := os.MkdirTemp(w.root, workspacePrefix)
	if err != nil {
		return nil, errors.Wrap(err, "workspace.acquire", "failed to create workspace")
	}
	ws := &Workspace{Dir: dir, ImagePath: filepath.Join(dir, inputImageName)}

	raw, err := decodeBase64(imageB64)
	if err != nil {
		ws.Release()
		return nil, invalidImage(err)
	}

	if err := os.WriteFile(ws.ImagePath, raw, 0o644); err != nil {
		ws.Release()
		return nil, errors.Wrap(err, "workspace.acquire", "failed to write input image")
	}

	if err := w.verifier.Verify(raw); err != nil {
		ws.Release()
		return nil, invalidImage(err)
	}

	return ws, nil
}

// Release removes the workspace. Safe on nil and safe to repeat.
func (ws *Workspace) Release() {
	if ws == nil || ws.Dir == "" {
		return
	}
	_ = os.RemoveAll(ws.Dir)
}

func invalidImage(cause error) error {
	return errors.WrapWithCode(cause, errors.CodeInvalidImage, "workspace.acquire",
		"Invalid image data: "+cause.Error())
}

// decodeBase64 accepts standard base64 with or without padding,
// embedded whitespace and an optional data URL prefix.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}

	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
