// Package esploader is a client for the serial loader built into the mask
// ROM of Espressif chips.
//
// # Overview
//
// The client speaks the ROM's SLIP framed request/response protocol over any
// Port (a serial link with a settable baud rate):
//   - Synchronising with the ROM and identifying the chip
//   - Attaching the SPI flash and raising the baud rate
//   - Writing images to flash in fixed size blocks
//   - Resetting the chip into the written application
//
// # Basic Usage
//
//	port := link.New(link.DefaultConfig("/dev/ttyUSB0"))
//	if err := port.Init(); err != nil {
//	    log.Fatal(err)
//	}
//
//	client := esploader.New(port)
//	variant, err := client.Connect(ctx, 2000000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = client.WriteImage(ctx, 0x0, bootloaderBin)
//
// # Configuration Options
//
//	client := esploader.New(port,
//	    esploader.WithLogger(myLogger),
//	    esploader.WithTimeout(5*time.Second),
//	    esploader.WithRetries(10),
//	)
//
// # Resetting
//
// When the port also implements Resetter (as link.Link does) ResetTarget
// pulses the reset line. Otherwise the client asks the ROM to reboot with
// FLASH_END.
//
// # Thread Safety
//
// Calls on a Client are serialized; the link is half duplex and only one
// command may be in flight.
package esploader
