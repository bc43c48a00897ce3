// Package provision drives a provisioning run: connect to the target, write
// every image of its variant, reset it and relay its console.
//
// # Overview
//
// A run moves through a fixed sequence of states:
//
//	Idle -> Connecting -> Transferring -> Resetting -> Relaying
//	            |
//	            +-> ConnectFailed
//
// Every step reports a plain text status line. The indicator heartbeat runs
// only while images are being written and is stopped before the target is
// reset, so it never drives a pin after the link has released it.
//
// # Basic Usage
//
//	lnk := link.New(link.DefaultConfig("/dev/ttyUSB0"))
//	client := esploader.New(lnk)
//	images, _ := catalog.Load(os.DirFS("images"), catalog.DefaultLayouts())
//
//	p := provision.New(lnk, client, images,
//	    provision.WithIndicator(led),
//	    provision.WithLogger(logger.GetLogger()),
//	)
//	err := p.Run(ctx)
//
// Run only returns once ctx is cancelled or the console relay fails; the
// relay is the terminal state of a successful run.
//
// # Failure Policy
//
// A failed connect is fatal: nothing is written and the target is not
// reset. By default the provisioner then halts until ctx is cancelled, as a
// fixture waiting for an operator would.
//
// A failed image write is reported and, by default, the remaining images
// are still attempted. WithAbortOnTransferError(true) skips the remaining
// images instead and goes straight to reset.
package provision
