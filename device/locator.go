package device

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Enumerator lists the serial ports present on the host.
type Enumerator func() ([]*enumerator.PortDetails, error)

// Signature identifies the device by its USB vendor and product IDs.
type Signature struct {
	VendorID  uint16
	ProductID uint16
}

// DefaultSignature is the USB identity of the device.
var DefaultSignature = Signature{VendorID: 0x0483, ProductID: 0x5740}

// String formats the signature the way it appears in a hardware descriptor.
func (s Signature) String() string {
	return fmt.Sprintf("VID:PID=%04X:%04X", s.VendorID, s.ProductID)
}

// ParseSignature parses "vvvv:pppp" with both IDs in hex.
func ParseSignature(text string) (Signature, error) {
	vid, pid, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return Signature{}, fmt.Errorf("invalid device signature %q: want vvvv:pppp", text)
	}
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid vendor id %q: %w", vid, err)
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid product id %q: %w", pid, err)
	}
	return Signature{VendorID: uint16(v), ProductID: uint16(p)}, nil
}

// Descriptor renders a port's hardware description, e.g.
// "USB VID:PID=0483:5740 SER=3473366E3034". Non-USB ports yield "n/a".
func Descriptor(port *enumerator.PortDetails) string {
	if port == nil || !port.IsUSB {
		return "n/a"
	}
	desc := fmt.Sprintf("USB VID:PID=%s:%s", strings.ToUpper(port.VID), strings.ToUpper(port.PID))
	if port.SerialNumber != "" {
		desc += " SER=" + port.SerialNumber
	}
	return desc
}

// Locator finds the device among the host's serial ports.
type Locator struct {
	// Signature to look for. The zero value means DefaultSignature.
	Signature Signature
	// Enumerate lists ports. Nil means enumerator.GetDetailedPortsList.
	Enumerate Enumerator
	Logger    *slog.Logger
}

// Find returns the name of the first port whose descriptor carries the
// signature, or ErrDeviceNotFound after a full pass. It does not retry.
func (l Locator) Find() (string, error) {
	enumerate := l.Enumerate
	if enumerate == nil {
		enumerate = enumerator.GetDetailedPortsList
	}
	signature := l.Signature
	if signature == (Signature{}) {
		signature = DefaultSignature
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ports, err := enumerate()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}

	want := signature.String()
	for _, port := range ports {
		desc := Descriptor(port)
		logger.Debug("Trying serial port", "port", port.Name, "device", desc)
		if strings.Contains(strings.ToUpper(desc), want) {
			logger.Info("Found device on serial port", "port", port.Name)
			return port.Name, nil
		}
	}

	return "", fmt.Errorf("%w: no port matches %s", ErrDeviceNotFound, want)
}
