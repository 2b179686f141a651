package dram

import "log"

// decodePIMTransaction examines the head of the PIM transaction queue and
// applies it. At most one control word is consumed per cycle. A
// compute-enable word that names a cut with unloaded dimensions stays at the
// head and is retried next cycle.
func (s *System) decodePIMTransaction() {
	if len(s.pimTransQueue) == 0 {
		return
	}

	word := s.pimTransQueue[0].FlatAddr

	if word&1 == 1 {
		if s.applyComputeEnable(word) {
			s.popPIMTransaction()
		}

		return
	}

	if word&(1<<5) != 0 && word&(1<<6) != 0 {
		s.applyConfigure(word)
	} else {
		s.applyLoad(word)
	}

	s.popPIMTransaction()
}

func (s *System) popPIMTransaction() {
	s.pimTransQueue = s.pimTransQueue[1:]
}

func (s *System) applyComputeEnable(word uint64) bool {
	mask := word >> 1

	for i := range s.cuts {
		if mask&(1<<i) == 0 {
			continue
		}

		c := &s.cuts[i]
		if c.m == 0 || c.n == 0 || c.k == 0 {
			return false
		}
	}

	for i := range s.cuts {
		if mask&(1<<i) != 0 {
			s.cuts[i].inPIM = true
		}
	}

	return true
}

func (s *System) applyConfigure(word uint64) {
	addr := word >> 1 >> BitWidthCutNo >> BitWidthLoadType

	s.vcuts = 1 << field(addr, BitWidthVCuts)
	addr >>= BitWidthVCuts
	s.hcuts = 1 << field(addr, BitWidthHCuts)
	addr >>= BitWidthHCuts
	s.mcf = 1 << field(addr, BitWidthMCF)
	addr >>= BitWidthMCF
	s.ucf = 1 << field(addr, BitWidthUCF)
	addr >>= BitWidthUCF
	s.df = int(field(addr, BitWidthDF))
	addr >>= BitWidthDF

	s.mc = s.mcf * s.ucf

	if s.vcuts*s.hcuts > 1 {
		for _, c := range s.ctrls {
			c.SetMultiTenant(true)
		}
	}

	s.mTileSize = 1 << field(addr, BitWidthMTile)
	addr >>= BitWidthMTile
	s.vcutsNext = 1 << field(addr, BitWidthVCuts)
	addr >>= BitWidthVCuts
	s.hcutsNext = 1 << field(addr, BitWidthHCuts)
	addr >>= BitWidthHCuts
	s.kernelSize = int(field(addr, BitWidthKernel))
	addr >>= BitWidthKernel
	s.stride = int(field(addr, BitWidthStride))

	if s.mTileSize > 2048 {
		log.Panicf("M tile size %d exceeds the supported maximum of 2048",
			s.mTileSize)
	}

	s.cuts = make([]cutState, s.vcuts*s.hcuts)
	for i := range s.cuts {
		s.cuts[i].outCnt = -1
	}
}

func (s *System) applyLoad(word uint64) {
	addr := word >> 1

	cutNo := int(field(addr, BitWidthCutNo))
	addr >>= BitWidthCutNo
	loadType := int(field(addr, BitWidthLoadType))
	addr >>= BitWidthLoadType
	dimValue := int(field(addr, BitWidthDimValue))
	addr >>= BitWidthDimValue
	baseRow := field(addr, BitWidthBaseRow)

	cut := &s.cuts[cutNo]

	switch loadType {
	case LoadTypeWeight:
		cut.baseRowW = baseRow
		cut.m = dimValue
	case LoadTypeOutput:
		cut.baseRowOut = baseRow
		cut.k = dimValue
	case LoadTypeInput:
		cut.baseRowIn = baseRow
		cut.n = dimValue
	default:
		log.Panicf("invalid load type %d", loadType)
	}
}

func field(addr uint64, width int) uint64 {
	return addr & ((uint64(1) << width) - 1)
}
