package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = LedgerSyncSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// LedgerSyncSemVer is the current version of ledgersync.
	// It's the Semantic Version of the software.
	LedgerSyncSemVer = "0.1.0"
)

// Protocol is used for implementation agnostic versioning.
type Protocol uint64

// Uint64 returns the Protocol version as a uint64.
func (p Protocol) Uint64() uint64 {
	return uint64(p)
}

var (
	// ChunkProtocol versions the chunk request and response messages
	// exchanged with upstream peers.
	ChunkProtocol Protocol = 1

	// LedgerProtocol versions the ledger info, epoch change proof and
	// accumulator formats.
	LedgerProtocol Protocol = 1
)

// Info is what the version command reports.
type Info struct {
	LedgerSync     string `json:"ledgersync"`
	GitCommit      string `json:"git_commit,omitempty"`
	ChunkProtocol  uint64 `json:"chunk_protocol"`
	LedgerProtocol uint64 `json:"ledger_protocol"`
}

// Current returns the version info of this binary.
func Current() Info {
	return Info{
		LedgerSync:     Version,
		GitCommit:      GitCommit,
		ChunkProtocol:  ChunkProtocol.Uint64(),
		LedgerProtocol: LedgerProtocol.Uint64(),
	}
}
