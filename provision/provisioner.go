package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/heartbeat"
)

// Provisioner runs the provisioning sequence for one target.
//
// A Provisioner performs a single run; it owns the link, the transfer
// client and the indicator for the duration of Run.
type Provisioner struct {
	link   Link
	client TransferClient
	images Catalog
	config Config
	status *status

	mu    sync.Mutex
	state State
	hb    *heartbeat.Heartbeat
	start time.Time
}

// New creates a provisioner. No hardware is touched until Run.
func New(link Link, client TransferClient, images Catalog, opts ...Option) *Provisioner {
	if link == nil || client == nil || images == nil {
		panic("link, client and images cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Provisioner{
		link:   link,
		client: client,
		images: images,
		config: cfg,
		status: newStatus(cfg.Output, cfg.Color),
	}
}

// State returns the current state.
func (p *Provisioner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HeartbeatActive reports whether the indicator heartbeat is running.
func (p *Provisioner) HeartbeatActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hb != nil && p.hb.Running()
}

// Run performs the provisioning sequence:
//  1. Print the banner
//  2. Claim the link and connect to the target at the transfer baud rate
//  3. Write every image of the detected variant, in catalog order
//  4. Stop the heartbeat, reset the target and release the link
//  5. Relay the target console to the output until ctx is cancelled
//
// On connect failure nothing is written and the target is not reset.
// Transfer failures are returned joined together once the relay ends.
func (p *Provisioner) Run(ctx context.Context) error {
	p.start = time.Now()

	for _, line := range p.config.Banner {
		p.status.printf("%s\n", line)
	}
	p.status.printf("Baudrate: %d baud.\n", p.config.TransferBaudRate)

	variant, err := p.connect(ctx)
	if err != nil {
		p.setState(StateConnectFailed, Progress{})
		return p.halt(ctx, err)
	}

	transferErr := p.transfer(ctx, variant)
	p.reset(ctx)

	if err := ctx.Err(); err != nil {
		return errors.Join(transferErr, err)
	}

	relayErr := p.relay(ctx)
	return errors.Join(transferErr, relayErr)
}

func (p *Provisioner) connect(ctx context.Context) (catalog.Variant, error) {
	p.setState(StateConnecting, Progress{})

	if err := p.link.Init(); err != nil {
		p.status.failf("Failed to open link: %v\n", err)
		p.logError("link init failed", "error", err)
		return "", &LinkUnavailableError{Err: err}
	}

	variant, err := p.client.Connect(ctx, p.config.TransferBaudRate)
	if err != nil {
		p.status.failf("Failed to connect to target: %v\n", err)
		p.logError("connect failed", "error", err)
		if derr := p.link.Deinit(); derr != nil {
			p.logError("link release failed", "error", derr)
		}
		return "", &ConnectError{Err: err}
	}

	p.logInfo("target connected", "variant", variant, "baud", p.config.TransferBaudRate)
	return variant, nil
}

// halt parks a failed run until ctx is done.
func (p *Provisioner) halt(ctx context.Context, err error) error {
	if p.config.HaltOnFailure {
		p.logInfo("provisioning halted", "state", p.State())
		<-ctx.Done()
	}
	return err
}

// transfer writes the image set of variant. It returns the failures joined
// into one error.
func (p *Provisioner) transfer(ctx context.Context, variant catalog.Variant) error {
	set := p.images.Lookup(variant)
	p.setState(StateTransferring, Progress{Total: len(set)})
	p.startHeartbeat()

	if len(set) == 0 {
		p.status.printf("Nothing to flash for %s\n", variant)
		p.logInfo("empty image set", "variant", variant)
		return nil
	}

	var errs []error
	written := 0
	for i, rec := range set {
		if err := ctx.Err(); err != nil {
			p.status.warnf("Cancelled, %d image(s) not written\n", len(set)-i)
			break
		}

		p.status.printf("Writing %s... ", rec.Name)
		err := p.client.WriteImage(ctx, rec.Address, rec.Data)
		if err != nil {
			p.status.failf("failed: %v\n", err)
			p.logError("image write failed", "image", rec.Name, "address", fmt.Sprintf("0x%X", rec.Address), "error", err)
			errs = append(errs, &TransferError{Name: rec.Name, Address: rec.Address, Err: err})
		} else {
			p.status.okf("done\n")
			written += int(rec.Length)
			p.logDebug("image written", "image", rec.Name, "address", fmt.Sprintf("0x%X", rec.Address), "bytes", rec.Length)
		}

		p.reportProgress(Progress{
			Phase:        StateTransferring,
			Image:        rec.Name,
			Index:        i + 1,
			Total:        len(set),
			BytesWritten: written,
			Failed:       len(errs),
			ElapsedTime:  time.Since(p.start),
		})

		if err != nil && p.config.AbortOnTransferError && i < len(set)-1 {
			p.status.warnf("Skipping remaining images\n")
			break
		}
	}

	if len(errs) == 0 {
		p.status.okf("Done!\n")
	} else {
		p.status.failf("Done with %d failed image(s)\n", len(errs))
	}

	p.logInfo("transfer finished",
		"variant", variant,
		"images", len(set),
		"failed", len(errs),
		"bytes", written,
		"elapsed", time.Since(p.start).String(),
	)
	return errors.Join(errs...)
}

// reset stops the indicator, resets the target and releases the link.
// Failures are reported but do not stop the run.
func (p *Provisioner) reset(ctx context.Context) {
	p.stopHeartbeat()
	p.setState(StateResetting, Progress{})

	// The target must leave download mode even when the run is cancelled.
	rctx := context.WithoutCancel(ctx)
	if err := p.client.ResetTarget(rctx); err != nil {
		p.status.failf("Failed to reset target: %v\n", err)
		p.logError("reset failed", "error", err)
	}
	if err := p.link.Deinit(); err != nil {
		p.status.failf("Failed to release link: %v\n", err)
		p.logError("link release failed", "error", err)
	}
}

// relay copies the target console to the output until ctx is cancelled or
// the link fails.
func (p *Provisioner) relay(ctx context.Context) error {
	if err := p.link.ConfigurePassthrough(p.config.PassthroughBaudRate); err != nil {
		p.status.failf("Failed to open console: %v\n", err)
		p.logError("passthrough failed", "error", err)
		return fmt.Errorf("configure passthrough: %w", err)
	}

	p.setState(StateRelaying, Progress{})
	for _, line := range RelayBanner {
		p.status.printf("%s\n", line)
	}

	idle := time.NewTimer(0)
	defer idle.Stop()
	<-idle.C

	var one [1]byte
	for {
		if ctx.Err() != nil {
			p.logDebug("relay stopped")
			return nil
		}

		b, ok, err := p.link.PollByte()
		if err != nil {
			p.status.failf("\nConsole lost: %v\n", err)
			p.logError("relay read failed", "error", err)
			return fmt.Errorf("relay: %w", err)
		}
		if ok {
			one[0] = b
			p.status.write(one[:])
			continue
		}

		idle.Reset(p.config.PollInterval)
		select {
		case <-ctx.Done():
			p.logDebug("relay stopped")
			return nil
		case <-idle.C:
		}
	}
}

func (p *Provisioner) startHeartbeat() {
	if p.config.Indicator == nil {
		return
	}
	var opts []heartbeat.Option
	if p.config.Logger != nil {
		opts = append(opts, heartbeat.WithLogger(p.config.Logger))
	}
	hb := heartbeat.Start(p.config.Indicator, p.config.HeartbeatInterval, opts...)

	p.mu.Lock()
	p.hb = hb
	p.mu.Unlock()
}

// stopHeartbeat returns once the indicator is off and no longer driven.
func (p *Provisioner) stopHeartbeat() {
	p.mu.Lock()
	hb := p.hb
	p.hb = nil
	p.mu.Unlock()

	if hb == nil {
		return
	}
	if err := hb.Stop(); err != nil {
		p.logError("indicator off failed", "error", err)
	}
}

func (p *Provisioner) setState(s State, progress Progress) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()

	p.logDebug("state", "state", s.String())

	progress.Phase = s
	progress.ElapsedTime = time.Since(p.start)
	p.reportProgress(progress)
}

// reportProgress calls the progress callback if configured.
func (p *Provisioner) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Provisioner) logDebug(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Provisioner) logInfo(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Provisioner) logError(msg string, keysAndValues ...any) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
