package msg

// Handle returns m's own stable handle, mirroring pcb.PCB.Handle.
func (m *Message) Handle() Handle { return m.handle }
