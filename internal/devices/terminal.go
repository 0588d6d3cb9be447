package devices

// TerminalRegister is the terminal device's four-word record: unlike the
// unified devices, it splits into a (recv_status, recv_command) pair and a
// (transmit_status, transmit_command) pair, the way a real UART splits RX
// and TX — grounded on the PL011/UART8250 register blocks' separate
// transmit/receive status bits (§4.6, §6).
type TerminalRegister struct {
	recvStatus, recvCommand         uint32
	transmitStatus, transmitCommand uint32
}

// Status codes specific to the terminal device.
const (
	TermStatusCharReceived    uint32 = 5
	TermStatusCharTransmitted uint32 = 5
)

// TransmitCommand encodes the character to transmit in bits 8-15 (§6).
func TransmitCommand(char byte) uint32 {
	return CmdPrintChar | (uint32(char) << 8)
}

func (t *TerminalRegister) Status() uint32 { return t.recvStatus }
func (t *TerminalRegister) SetStatus(v uint32) { t.recvStatus = v }
func (t *TerminalRegister) Command() uint32 { return t.recvCommand }
func (t *TerminalRegister) SetCommand(v uint32) { t.recvCommand = v }

// Data0/Data1 are unused by the terminal shape but kept to satisfy
// Register; real hardware simply leaves them reserved.
func (t *TerminalRegister) Data0() uint32     { return 0 }
func (t *TerminalRegister) SetData0(uint32)   {}
func (t *TerminalRegister) Data1() uint32     { return 0 }
func (t *TerminalRegister) SetData1(uint32)   {}

func (t *TerminalRegister) TransmitStatus() uint32      { return t.transmitStatus }
func (t *TerminalRegister) SetTransmitStatus(v uint32)  { t.transmitStatus = v }
func (t *TerminalRegister) TransmitCommand() uint32     { return t.transmitCommand }
func (t *TerminalRegister) SetTransmitCommand(v uint32) { t.transmitCommand = v }

// IsTransmitCompletion distinguishes a transmit completion from a receive
// completion by the status field carried on the interrupting sub-register,
// as §4.6 requires ("distinguish transmit vs receive by status field").
func IsTransmitCompletion(status uint32) bool {
	return status&0xFF == TermStatusCharTransmitted
}
