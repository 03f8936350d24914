package coordinator

import "github.com/datatrails/go-datatrails-common/logger"

type options struct {
	log    logger.Logger
	quorum int
}

// Option configures a Coordinator at construction, the way
// massifs/options.go configures a MassifCommitter.
type Option func(*options)

// WithLog sets the logger.Logger stored on the Coordinator. The
// Coordinator's debug trace points are written through the package-level
// logger.Sugar whether or not this option is given.
func WithLog(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithQuorum overrides the genesis quorum threshold. The default requires
// every founding endorser to sign (quorum == len(endorsers)).
func WithQuorum(q int) Option {
	return func(o *options) { o.quorum = q }
}
