package processor

import (
	"context"
	"encoding/base64"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"wanworker/internal/config"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/ports"
)

const videoContentType = "video/mp4"

// URLPolicy decides how an uploaded object is addressed.
type URLPolicy struct {
	Presign    bool
	Expire     time.Duration
	PublicBase string
}

// Delivered carries exactly one of URL or Base64.
type Delivered struct {
	URL    string
	Base64 string
}

// Delivery hands the artifact back to the caller: uploaded and addressed
// by URL when a storage provider is configured, inline otherwise.
type Delivery struct {
	sp     ports.StorageProvider
	policy URLPolicy
	newKey func() string
}

func NewDelivery(sp ports.StorageProvider, policy URLPolicy) *Delivery {
	return &Delivery{sp: sp, policy: policy, newKey: newObjectKey}
}

// UsesStorage reports whether results are uploaded.
func (d *Delivery) UsesStorage() bool {
	return d.sp != nil
}

func (d *Delivery) Deliver(ctx context.Context, artifactPath string) (Delivered, error) {
	if d.sp == nil {
		return d.inline(artifactPath)
	}
	return d.upload(ctx, artifactPath)
}

func (d *Delivery) inline(artifactPath string) (Delivered, error) {
	raw, err := os.ReadFile(artifactPath)
	if err != nil {
		return Delivered{}, errors.Wrap(err, "delivery.inline", "failed to read artifact: "+err.Error())
	}
	return Delivered{Base64: base64.StdEncoding.EncodeToString(raw)}, nil
}

func (d *Delivery) upload(ctx context.Context, artifactPath string) (Delivered, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return Delivered{}, errors.Wrap(err, "delivery.upload", "failed to open artifact: "+err.Error())
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	key := d.newKey()
	out, err := d.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: videoContentType,
		Reader:      f,
		Size:        size,
	})
	if err != nil {
		return Delivered{}, uploadFailed(err, "delivery.upload", "Upload failed: "+err.Error()).
			WithField("provider", d.sp.Provider()).
			WithField("key", key)
	}

	stored := out.ObjectKey
	if stored == "" {
		stored = key
	}

	if d.policy.Presign {
		signed, err := d.sp.GetSignedURL(ctx, stored, d.policy.Expire)
		if err != nil {
			return Delivered{}, uploadFailed(err, "delivery.sign", "Presign failed: "+err.Error())
		}
		if signed.URL != "" {
			return Delivered{URL: signed.URL}, nil
		}
	}

	if d.policy.PublicBase != "" {
		return Delivered{URL: strings.TrimRight(d.policy.PublicBase, "/") + "/" + stored}, nil
	}

	if u := d.sp.ObjectURL(stored); u != "" {
		return Delivered{URL: u}, nil
	}
	return Delivered{}, errors.Newf(errors.CodeUploadFailed,
		"No URL available for uploaded object %s.", stored).WithOp("delivery.url")
}

func uploadFailed(err error, op, msg string) *errors.Error {
	return errors.WrapWithCode(err, errors.CodeUploadFailed, op, msg)
}

func newObjectKey() string {
	return config.KeyNamespace + "/" + uuid.NewString() + ".mp4"
}
