package mailbox

// MemoryRange is a region of memory, as reported by the firmware.
type MemoryRange struct {
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
}

// query sends a read-only request, returning the message if the firmware
// accepted it, or nil if it didn't.
func (x *Mailbox) query(tag Tag, request []uint32, responseWords int) (*Message, error) {
	var msg *Message
	if request == nil {
		msg = NewQuery(tag, responseWords)
	} else {
		msg = NewMessage(tag, request, responseWords)
	}
	ok, err := x.readMessage(msg)
	if err != nil || !ok {
		return nil, err
	}
	return msg, nil
}

func (x *Mailbox) queryWord(tag Tag) (uint32, error) {
	msg, err := x.query(tag, nil, 1)
	if msg == nil {
		return 0, err
	}
	return msg.Content(0), nil
}

func (x *Mailbox) queryRange(tag Tag) (MemoryRange, error) {
	msg, err := x.query(tag, nil, 2)
	if msg == nil {
		return MemoryRange{}, err
	}
	return MemoryRange{Base: msg.Content(0), Size: msg.Content(1)}, nil
}

// FirmwareRevision returns the firmware revision, or 0 if the query failed.
func (x *Mailbox) FirmwareRevision() (uint32, error) {
	return x.queryWord(TagFirmwareRevision)
}

// BoardModel returns the board model, or 0 if the query failed.
func (x *Mailbox) BoardModel() (uint32, error) {
	return x.queryWord(TagBoardModel)
}

// BoardRevision returns the board revision, or 0 if the query failed.
func (x *Mailbox) BoardRevision() (uint32, error) {
	return x.queryWord(TagBoardRevision)
}

// BoardSerial returns the 64-bit board serial, or 0 if the query failed.
func (x *Mailbox) BoardSerial() (uint64, error) {
	msg, err := x.query(TagBoardSerial, nil, 2)
	if msg == nil {
		return 0, err
	}
	return uint64(msg.Content(1))<<32 | uint64(msg.Content(0)), nil
}

// ARMMemory returns the memory assigned to the ARM.
func (x *Mailbox) ARMMemory() (MemoryRange, error) {
	return x.queryRange(TagARMMemory)
}

// VCMemory returns the memory assigned to the VideoCore.
func (x *Mailbox) VCMemory() (MemoryRange, error) {
	return x.queryRange(TagVCMemory)
}

func (x *Mailbox) queryIndexed(tag Tag, id uint32) (uint32, error) {
	msg, err := x.query(tag, []uint32{id}, 2)
	if msg == nil {
		return 0, err
	}
	return msg.Content(1), nil
}

// ClockRate returns the current rate of the clock, in Hz.
func (x *Mailbox) ClockRate(clock ClockID) (uint32, error) {
	return x.queryIndexed(TagClockRate, uint32(clock))
}

// MaxClockRate returns the maximum rate of the clock, in Hz.
func (x *Mailbox) MaxClockRate(clock ClockID) (uint32, error) {
	return x.queryIndexed(TagMaxClockRate, uint32(clock))
}

// Temperature returns the SoC temperature, in thousandths of a degree
// Celsius.
func (x *Mailbox) Temperature() (uint32, error) {
	return x.queryIndexed(TagTemperature, 0)
}

// MaxTemperature returns the temperature at which the SoC throttles, in
// thousandths of a degree Celsius.
func (x *Mailbox) MaxTemperature() (uint32, error) {
	return x.queryIndexed(TagMaxTemperature, 0)
}
