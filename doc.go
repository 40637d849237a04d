// Package serial opens and drives the RS-232 and USB-serial lines a kiosk
// terminal talks to: code readers, the receipt printer and the presence sensor.
//
// On Linux the port is configured directly through termios and the modem
// control ioctls. Other platforms go through go.bug.st/serial.
//
// # Basic Usage
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(9600),
//	    serial.WithReadTimeout(100*time.Millisecond),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
// A Read returns 0, nil once the read timeout passes with nothing received,
// which lets a polling loop check for cancellation between reads.
//
// # Control Lines
//
//	signals, err := port.GetModemSignals()
//	fmt.Printf("CTS=%v DSR=%v\n", signals.CTS, signals.DSR)
//
// # Handles
//
// Ports are opened exclusively by default, so a second Open of a device that
// is already held fails with ErrDeviceInUse. Duplicate hands out a second,
// independently closable handle onto the same open device.
//
// # Error Handling
//
// Open failures are *OpenError values wrapping one of the sentinels:
//
//	if errors.Is(err, serial.ErrDeviceInUse) {
//	    // someone else holds the device
//	}
//
// # Default Configuration
//
//   - BaudRate: 115200
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - FlowControl: None
//   - ReadTimeout: 100ms
//   - WriteMode: Buffered
//   - Exclusive: true
package serial
