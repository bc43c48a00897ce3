package provision

import (
	"context"
	"time"

	"github.com/moffa90/go-esploader/catalog"
)

// State is a provisioning state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateTransferring
	StateResetting
	StateRelaying
	StateConnectFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateTransferring:
		return "transferring"
	case StateResetting:
		return "resetting"
	case StateRelaying:
		return "relaying"
	case StateConnectFailed:
		return "connect failed"
	default:
		return "unknown"
	}
}

// Progress contains information about the run.
// Passed to ProgressCallback on every state change and after each image.
type Progress struct {
	// Phase is the state the run is in
	Phase State

	// Image is the name of the image just attempted (Transferring only)
	Image string

	// Index is the 1-based position of Image in the image set
	Index int

	// Total is the number of images in the set
	Total int

	// BytesWritten is the total size of the images written successfully so far
	BytesWritten int

	// Failed is the number of images that failed so far
	Failed int

	// ElapsedTime is the time elapsed since the run started
	ElapsedTime time.Duration
}

// ProgressCallback is called during the run to report progress.
// Implementations should return quickly to avoid delaying the run.
//
// Example:
//
//	p := provision.New(lnk, client, images,
//	    provision.WithProgressCallback(func(pr provision.Progress) {
//	        fmt.Printf("[%s] %d/%d %s\n", pr.Phase, pr.Index, pr.Total, pr.Image)
//	    }),
//	)
type ProgressCallback func(Progress)

// Link is the physical link as the provisioner sees it. link.Link satisfies it.
type Link interface {
	// Init claims the control lines and puts the target in download mode
	Init() error

	// Deinit releases the control lines; called exactly once after Init
	Deinit() error

	// ConfigurePassthrough reopens the serial line for console relay
	ConfigurePassthrough(baud int) error

	// PollByte returns a received byte, or false when none is available
	PollByte() (byte, bool, error)
}

// TransferClient writes images to the target. esploader.Client satisfies it.
type TransferClient interface {
	Connect(ctx context.Context, baud int) (catalog.Variant, error)
	WriteImage(ctx context.Context, address uint32, data []byte) error
	ResetTarget(ctx context.Context) error
}

// Catalog resolves the images for a variant. catalog.Catalog satisfies it.
type Catalog interface {
	Lookup(v catalog.Variant) catalog.ImageSet
}

// Logger is an optional logging interface. logger.Logger satisfies it.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...any)
}
