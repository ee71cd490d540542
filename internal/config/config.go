// Package config resolves the worker's process-wide settings from the
// environment once at start-up. Components receive the values they need
// explicitly; nothing below cmd/ reads the environment on its own.
package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultWanDir      = "/workspace/Wan2.2"
	DefaultRegion      = "auto"
	DefaultExpireSecs  = 86400
	DefaultQueueName   = "wan:jobs"
	DefaultRuntime     = "queue"
	DefaultTask        = "ti2v-5B"
	DefaultSize        = "1280*704"
	KeyNamespace       = "wan22"
	OutputDirEnv       = "WAN_OUTPUT_DIR"
	generateScriptName = "generate.py"
)

// S3 holds object-storage settings. All four of Endpoint, AccessKey,
// SecretKey and Bucket must be set for S3 delivery to be enabled.
type S3 struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	Presign    bool
	Expire     time.Duration
	PublicBase string
}

// Enabled reports whether all required credentials are present.
func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

// GDrive holds the Google Drive fallback provider credentials.
type GDrive struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string
}

// Wan describes where the generation tool lives on disk.
type Wan struct {
	Dir          string
	Python       string
	OutputRoot   string
	PerJobOutput bool
}

// Script is the generation entry point.
func (w Wan) Script() string {
	return filepath.Join(w.Dir, generateScriptName)
}

// CheckpointTI2V5B is the TI2V-5B checkpoint directory.
func (w Wan) CheckpointTI2V5B() string {
	return filepath.Join(w.Dir, "Wan2.2-TI2V-5B")
}

// CheckpointI2VA14B is the I2V-A14B checkpoint directory.
func (w Wan) CheckpointI2VA14B() string {
	return filepath.Join(w.Dir, "Wan2.2-I2V-A14B")
}

type Config struct {
	S3     S3
	GDrive GDrive
	Wan    Wan

	// StorageProvider selects a non-S3 provider ("gdrive", "localfs") when
	// S3 is not configured. Empty means inline delivery.
	StorageProvider   string
	StorageLocalRoot  string
	StoragePublicBase string

	VerifyImages  bool
	WorkspaceRoot string

	Runtime     string
	DatabaseURL string
	RedisAddr   string
	QueueName   string
	HTTPPort    string
}

// Load reads the configuration from the environment.
func Load() Config {
	wanDir := Env("WAN_DIR", DefaultWanDir)

	return Config{
		S3: S3{
			Endpoint:   Env("S3_ENDPOINT", ""),
			AccessKey:  Env("S3_ACCESS_KEY", ""),
			SecretKey:  Env("S3_SECRET_KEY", ""),
			Bucket:     Env("S3_BUCKET", ""),
			Region:     Env("S3_REGION", DefaultRegion),
			Presign:    BoolEnv("S3_PRESIGN", true),
			Expire:     time.Duration(IntEnv("S3_EXPIRE_SECS", DefaultExpireSecs)) * time.Second,
			PublicBase: Env("S3_PUBLIC_BASE", ""),
		},
		GDrive: GDrive{
			ClientID:     Env("GDRIVE_CLIENT_ID", ""),
			ClientSecret: Env("GDRIVE_CLIENT_SECRET", ""),
			RefreshToken: Env("GDRIVE_REFRESH_TOKEN", ""),
			FolderID:     Env("GDRIVE_FOLDER_ID", ""),
		},
		Wan: Wan{
			Dir:          wanDir,
			Python:       Env("WAN_PYTHON", "python3"),
			OutputRoot:   Env("WAN_OUTPUT_ROOT", filepath.Join(wanDir, "outputs")),
			PerJobOutput: BoolEnv("WAN_PER_JOB_OUTPUT", false),
		},
		StorageProvider:   Env("STORAGE_PROVIDER", ""),
		StorageLocalRoot:  Env("STORAGE_LOCAL_ROOT", ""),
		StoragePublicBase: Env("STORAGE_PUBLIC_BASE", ""),
		VerifyImages:      BoolEnv("VERIFY_IMAGES", true),
		WorkspaceRoot:     Env("WORKSPACE_ROOT", ""),
		Runtime:           Env("WORKER_RUNTIME", DefaultRuntime),
		DatabaseURL:       Env("DATABASE_URL", ""),
		RedisAddr:         Env("REDIS_ADDR", ""),
		QueueName:         Env("JOB_QUEUE_NAME", DefaultQueueName),
		HTTPPort:          Env("HTTP_PORT", "8080"),
	}
}
