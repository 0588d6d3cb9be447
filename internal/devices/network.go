package devices

import (
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// NetworkCommand mirrors the flash/disk command shape for the network
// line: a transmit or receive request plus a frame length in data1, with
// the frame bytes carried out-of-band the way a real DMA descriptor would
// point at a buffer (§6).
const (
	NetCmdTransmit uint32 = 2
	NetCmdReceive  uint32 = 3
)

// ValidateFrame checksums a simulated IPv4 frame (the IPv4 header starts
// at byte 0; there is no Ethernet header in front of it) the way a real
// NIC's receive path would before raising a completion interrupt,
// grounded on the teacher's gVisor-backed netstack harness
// (internal/netstack/test/gvisor.go), which builds and validates IPv4
// headers with gvisor.dev/gvisor/pkg/tcpip/header. PandOS's "network"
// device line never runs a real stack — it only needs one real checksum
// to decide STATUS_OK vs. a device error, which is exactly what this
// function provides.
func ValidateFrame(frame []byte) (ok bool, err error) {
	if len(frame) < header.IPv4MinimumSize {
		return false, fmt.Errorf("devices: network frame too short: %d bytes", len(frame))
	}
	ip := header.IPv4(frame)
	return ip.IsChecksumValid(), nil
}
