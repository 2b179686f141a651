package addressmapping

import "log"

// Builder can build address mappers.
type Builder struct {
	burstLength  int
	busWidth     int
	numChannel   int
	numRank      int
	numBankGroup int
	numBank      int
	numRow       int
	numCol       int
}

// MakeBuilder creates a builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		burstLength:  8,
		busWidth:     64,
		numChannel:   1,
		numRank:      2,
		numBankGroup: 1,
		numBank:      8,
		numRow:       32768,
		numCol:       1024,
	}
}

// WithBurstLength sets the burst length of the DRAM.
func (b Builder) WithBurstLength(n int) Builder {
	b.burstLength = n
	return b
}

// WithBusWidth sets the bus width, in bits.
func (b Builder) WithBusWidth(n int) Builder {
	b.busWidth = n
	return b
}

// WithNumChannel sets the number of channels.
func (b Builder) WithNumChannel(n int) Builder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks per channel.
func (b Builder) WithNumRank(n int) Builder {
	b.numRank = n
	return b
}

// WithNumBankGroup sets the number of bank groups per rank.
func (b Builder) WithNumBankGroup(n int) Builder {
	b.numBankGroup = n
	return b
}

// WithNumBank sets the number of banks per bank group.
func (b Builder) WithNumBank(n int) Builder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows per bank.
func (b Builder) WithNumRow(n int) Builder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns per row.
func (b Builder) WithNumCol(n int) Builder {
	b.numCol = n
	return b
}

// Build creates a mapper. The field order, from the least significant bit, is
// column, channel, bank, bank group, rank, row.
func (b Builder) Build() Mapper {
	m := mapperImpl{}

	m.accessUnitBits = mustLog2(uint64(b.busWidth / 8 * b.burstLength))

	colBits := mustLog2(uint64(b.numCol / b.burstLength))
	chBits := mustLog2(uint64(b.numChannel))
	bkBits := mustLog2(uint64(b.numBank))
	bgBits := mustLog2(uint64(b.numBankGroup))
	rkBits := mustLog2(uint64(b.numRank))
	rowBits := mustLog2(uint64(b.numRow))

	m.colPos = 0
	m.colMask = (1 << colBits) - 1
	m.chPos = m.colPos + colBits
	m.chMask = (1 << chBits) - 1
	m.bankPos = m.chPos + chBits
	m.bkMask = (1 << bkBits) - 1
	m.bgPos = m.bankPos + bkBits
	m.bgMask = (1 << bgBits) - 1
	m.rkPos = m.bgPos + bgBits
	m.rkMask = (1 << rkBits) - 1
	m.rowPos = m.rkPos + rkBits
	m.rowMask = (1 << rowBits) - 1

	return m
}

func mustLog2(n uint64) uint64 {
	oneCount := 0
	onePos := uint64(0)

	for i := uint64(0); i < 64; i++ {
		if n&(1<<i) > 0 {
			onePos = i
			oneCount++
		}
	}

	if oneCount != 1 {
		log.Panicf("%d is not a power of 2", n)
	}

	return onePos
}
