package ledgergate

import "encoding/binary"

// Opcodes, one per transition.
const (
	OpInitializeGateway uint8 = iota
	OpRegisterConsumer
	OpTopUp
	OpConsume
)

// Instruction is the closed set of transition payloads. The payload wire form
// is a single opcode byte followed by fixed little-endian fields.
type Instruction interface {
	// Op returns the stable operation name used in errors and meter events.
	Op() string

	isInstruction()
}

// InitializeGateway creates a gateway record with its charging rules.
type InitializeGateway struct {
	BasePrice       uint64
	MaxSurgeBps     uint16
	PeriodLimit     uint64
	PeriodSeconds   int64
	BucketCapacity  uint64
	RefillPerSecond uint64
}

// RegisterConsumer creates a consumer record bound to an API key digest.
type RegisterConsumer struct {
	APIKeyID   uint64
	APIKeyHash [32]byte
}

// TopUp moves prepaid balance from the owner into a consumer record.
type TopUp struct {
	Amount uint64
}

// Consume charges a consumer for one API call.
type Consume struct {
	APIKeyID      uint64
	PresentedHash [32]byte
}

func (InitializeGateway) Op() string { return "initialize_gateway" }
func (RegisterConsumer) Op() string  { return "register_consumer" }
func (TopUp) Op() string             { return "top_up" }
func (Consume) Op() string           { return "consume" }

func (InitializeGateway) isInstruction() {}
func (RegisterConsumer) isInstruction()  {}
func (TopUp) isInstruction()             {}
func (Consume) isInstruction()           {}

const (
	initializeGatewayLen = 8 + 2 + 8 + 8 + 8 + 8
	registerConsumerLen  = 8 + 32
	topUpLen             = 8
	consumeLen           = 8 + 32
)

// EncodeInstruction packs an instruction into its wire form.
func EncodeInstruction(ins Instruction) []byte {
	switch ins := ins.(type) {
	case InitializeGateway:
		buf := make([]byte, 0, 1+initializeGatewayLen)
		buf = append(buf, OpInitializeGateway)
		buf = binary.LittleEndian.AppendUint64(buf, ins.BasePrice)
		buf = binary.LittleEndian.AppendUint16(buf, ins.MaxSurgeBps)
		buf = binary.LittleEndian.AppendUint64(buf, ins.PeriodLimit)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(ins.PeriodSeconds))
		buf = binary.LittleEndian.AppendUint64(buf, ins.BucketCapacity)
		buf = binary.LittleEndian.AppendUint64(buf, ins.RefillPerSecond)
		return buf
	case RegisterConsumer:
		buf := make([]byte, 0, 1+registerConsumerLen)
		buf = append(buf, OpRegisterConsumer)
		buf = binary.LittleEndian.AppendUint64(buf, ins.APIKeyID)
		buf = append(buf, ins.APIKeyHash[:]...)
		return buf
	case TopUp:
		buf := make([]byte, 0, 1+topUpLen)
		buf = append(buf, OpTopUp)
		buf = binary.LittleEndian.AppendUint64(buf, ins.Amount)
		return buf
	case Consume:
		buf := make([]byte, 0, 1+consumeLen)
		buf = append(buf, OpConsume)
		buf = binary.LittleEndian.AppendUint64(buf, ins.APIKeyID)
		buf = append(buf, ins.PresentedHash[:]...)
		return buf
	}

	// The Instruction interface is sealed; no other type can reach here.
	return nil
}

// DecodeInstruction parses a payload. Unknown opcodes, short bodies and
// trailing bytes all fail with ErrInvalidInstruction.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstruction
	}
	body := data[1:]

	switch data[0] {
	case OpInitializeGateway:
		if len(body) != initializeGatewayLen {
			return nil, ErrInvalidInstruction
		}
		return InitializeGateway{
			BasePrice:       binary.LittleEndian.Uint64(body[0:]),
			MaxSurgeBps:     binary.LittleEndian.Uint16(body[8:]),
			PeriodLimit:     binary.LittleEndian.Uint64(body[10:]),
			PeriodSeconds:   int64(binary.LittleEndian.Uint64(body[18:])),
			BucketCapacity:  binary.LittleEndian.Uint64(body[26:]),
			RefillPerSecond: binary.LittleEndian.Uint64(body[34:]),
		}, nil

	case OpRegisterConsumer:
		if len(body) != registerConsumerLen {
			return nil, ErrInvalidInstruction
		}
		ins := RegisterConsumer{APIKeyID: binary.LittleEndian.Uint64(body[0:])}
		copy(ins.APIKeyHash[:], body[8:])
		return ins, nil

	case OpTopUp:
		if len(body) != topUpLen {
			return nil, ErrInvalidInstruction
		}
		return TopUp{Amount: binary.LittleEndian.Uint64(body[0:])}, nil

	case OpConsume:
		if len(body) != consumeLen {
			return nil, ErrInvalidInstruction
		}
		ins := Consume{APIKeyID: binary.LittleEndian.Uint64(body[0:])}
		copy(ins.PresentedHash[:], body[8:])
		return ins, nil
	}

	return nil, ErrInvalidInstruction
}
