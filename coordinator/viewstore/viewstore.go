// Package viewstore wires the reference coordinator's view ledger to
// Azure Blob Storage, the same durable backing endorser/blobstore gives
// per-handle chain state. It exists so a deployment doesn't lose its
// membership history across a coordinator restart the way the in-process
// reference Coordinator's bare in-memory view.MemoryStore would.
package viewstore

import (
	"fmt"

	"github.com/datatrails/go-datatrails-common/azblob"

	"github.com/nimble-ledger/nimble/view"
)

// Config names the Azure Blob Storage container and path convention a
// coordinator's view ledger is kept under, mirroring mmrtesting's
// container-per-deployment construction (mmrtesting/testcontext.go).
type Config struct {
	Container  string
	PathPrefix string
}

// New connects to container using the environment-derived development
// credentials (azblob.NewDevConfigFromEnv, as mmrtesting's TestContext
// does) and returns a view.Store backed by it. A production deployment
// supplies its own azblob.DevConfig-equivalent through the environment;
// this package does not otherwise interpret credentials.
func New(cfg Config) (view.Store, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("viewstore: container name is required")
	}
	storer, err := azblob.NewDev(azblob.NewDevConfigFromEnv(), cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("viewstore: connect to container %q: %w", cfg.Container, err)
	}
	pathPrefix := cfg.PathPrefix
	if pathPrefix == "" {
		pathPrefix = "views"
	}
	return view.NewBlobStore(storer, pathPrefix), nil
}
