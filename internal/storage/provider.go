package storage

import "wanworker/internal/ports"

// Provider is the delivery backend shared by the worker runtimes and
// the API's synchronous path.
type Provider = ports.StorageProvider
