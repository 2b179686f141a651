package dram

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pimdram/dram/internal/ctrl"
)

var _ = Describe("Cut engine", func() {
	Context("with a single cut", func() {
		var (
			s      *System
			writes *int
		)

		BeforeEach(func() {
			s = MakeBuilder().
				WithNumChannel(4).
				WithNumBankGroup(4).
				WithNumBank(4).
				WithTREFI(100000000).
				WithEpochPeriod(0).
				Build("System")
			_, writes = countingCallbacks(s)

			submitWords(s, configWord(1, 1, 1, 1, 0, 256))
			submitWords(s, loadWords(0, 16, 16, 16)...)
			submitWords(s, EncodeComputeEnable(1))
		})

		It("should run a 16x16x16 multiplication to completion",
			func() {
				tickAndCheck(s, 5000)

				Expect(s.PIMTurnedOff()).To(BeTrue())
				Expect(s.cuts[0].inPIM).To(BeFalse())

				// One output sweep: 16 row writes spanning the
				// 4 channels of the cut.
				drainWrites(s)
				Expect(*writes).To(Equal(64))
			})

		It("should walk the phases in order", func() {
			seen := make(map[int]bool)

			for i := 0; i < 5000 && !s.PIMTurnedOff(); i++ {
				s.Tick()
				seen[s.cuts[0].iwStatus] = true
			}

			Expect(seen).To(HaveKey(statusFetchWeight))
			Expect(seen).To(HaveKey(statusFeedInput))
			Expect(seen).To(HaveKey(statusInputFinished))
		})

		It("should report turn-off exactly at output exhaustion",
			func() {
				turnedOffAt := -1

				for i := 0; i < 5000; i++ {
					s.Tick()
					if s.PIMTurnedOff() {
						turnedOffAt = i
						break
					}
				}

				Expect(turnedOffAt).To(BeNumerically(">", 0))

				// Turn-off is sticky once every cut is off.
				s.Tick()
				Expect(s.PIMTurnedOff()).To(BeTrue())
			})
	})

	Context("with two tenants", func() {
		var (
			s      *System
			writes *int
		)

		BeforeEach(func() {
			s = MakeBuilder().
				WithNumChannel(4).
				WithNumBankGroup(4).
				WithNumBank(4).
				WithTREFI(100000000).
				WithEpochPeriod(0).
				Build("System")
			_, writes = countingCallbacks(s)

			submitWords(s, configWord(2, 1, 1, 1, 0, 128))
			submitWords(s, loadWords(0, 16, 16, 16)...)
			submitWords(s, loadWords(1, 16, 16, 16)...)
			submitWords(s, EncodeComputeEnable(0b11))
		})

		It("should set every controller to multi-tenant mode", func() {
			s.Tick()

			for _, c := range s.ctrls {
				Expect(c.(*ctrl.Controller).MultiTenant()).
					To(BeTrue())
			}
		})

		It("should drive both cuts through their phases", func() {
			phases := []map[int]bool{
				make(map[int]bool),
				make(map[int]bool),
			}

			for i := 0; i < 20000 && !s.PIMTurnedOff(); i++ {
				s.Tick()
				expectInvariants(s)

				for j := range s.cuts {
					phases[j][s.cuts[j].iwStatus] = true
				}
			}

			Expect(s.PIMTurnedOff()).To(BeTrue())

			for j := range phases {
				Expect(phases[j]).To(HaveKey(statusFetchWeight))
				Expect(phases[j]).To(HaveKey(statusFeedInput))
				Expect(phases[j]).
					To(HaveKey(statusInputFinished))
			}

			// Each cut writes its 16 output rows through its two
			// channels.
			drainWrites(s)
			Expect(*writes).To(Equal(64))
		})
	})

	Context("with refreshes close enough to interfere", func() {
		var (
			s      *System
			writes *int
		)

		BeforeEach(func() {
			s = MakeBuilder().
				WithNumChannel(4).
				WithNumBankGroup(4).
				WithNumBank(4).
				WithTREFI(300).
				WithTRFC(50).
				WithPIMRefreshLead(40).
				WithPIMRefreshLead2(8).
				WithEpochPeriod(0).
				Build("System")
			_, writes = countingCallbacks(s)

			submitWords(s, configWord(1, 1, 1, 1, 0, 256))
			submitWords(s, loadWords(0, 64, 64, 16)...)
			submitWords(s, EncodeComputeEnable(1))
		})

		It("should drop open-row state ahead of each refresh and "+
			"still finish", func() {
			for i := 0; i < 50000 && !s.PIMTurnedOff(); i++ {
				coming := false
				for _, c := range s.ctrls {
					if c.PIMRefreshComing() {
						coming = true
					}
				}

				s.Tick()
				expectInvariants(s)

				if coming {
					for j := range s.cuts {
						c := &s.cuts[j]
						Expect(c.wActPlaced).
							To(BeFalse())
						Expect(c.inActPlaced).
							To(BeFalse())
						Expect(c.outActPlaced).
							To(BeFalse())
					}
				}
			}

			Expect(s.PIMTurnedOff()).To(BeTrue())

			refreshes := uint64(0)
			for _, c := range s.ctrls {
				refreshes += c.CollectStats().NumRefresh
			}
			Expect(refreshes).To(BeNumerically(">", 0))

			// 64 output rows, 4 channels each.
			drainWrites(s)
			Expect(*writes).To(Equal(256))
		})
	})

	Context("with paired cuts sharing a channel row", func() {
		var (
			s      *System
			writes *int
		)

		BeforeEach(func() {
			s = MakeBuilder().
				WithNumChannel(8).
				WithNumBankGroup(4).
				WithNumBank(16).
				WithTREFI(100000000).
				WithEpochPeriod(0).
				Build("System")
			_, writes = countingCallbacks(s)

			submitWords(s, configWord(16, 1, 1, 1, 0, 16))
			for i := 0; i < 16; i++ {
				submitWords(s, loadWords(i, 8, 8, 8)...)
			}
			submitWords(s, EncodeComputeEnable(0xffff))
		})

		It("should retire each pair through its even cut", func() {
			tickAndCheck(s, 50000)

			Expect(s.PIMTurnedOff()).To(BeTrue())
			for i := range s.cuts {
				Expect(s.cuts[i].inPIM).To(BeFalse())
			}

			// Only the even cut of each pair writes: 8 pairs, 8
			// output rows each.
			drainWrites(s)
			Expect(*writes).To(Equal(64))
		})
	})

	Context("with the depth-first dataflow", func() {
		var s *System

		BeforeEach(func() {
			s = MakeBuilder().
				WithNumChannel(4).
				WithNumBankGroup(4).
				WithNumBank(16).
				WithTREFI(100000000).
				WithEpochPeriod(0).
				Build("System")

			submitWords(s, configWord(4, 1, 4, 4, 1, 256))
			for i := 0; i < 4; i++ {
				submitWords(s, loadWords(i, 16, 16, 16)...)
			}
			for i := 0; i < 20; i++ {
				s.Tick()
			}
		})

		It("should rotate the output channel with the N tile "+
			"iterator", func() {
			cut := &s.cuts[2]
			cut.inPIM = true
			cut.iwStatus = statusInputFinished
			cut.inCnt = -1
			cut.outputValid = 1
			cut.nOutTileIt = 0

			g := s.cutGeometry(2, cut)
			batch := s.writeOutput(2, cut, g, false)

			Expect(batch).To(HaveLen(1))
			Expect(batch[0].Location.Channel).To(Equal(uint64(2)))

			cut.nOutTileIt = 3
			cut.outActPlaced = false
			batch = s.writeOutput(2, cut, g, false)

			Expect(batch).To(HaveLen(1))
			Expect(batch[0].Location.Channel).To(Equal(uint64(1)))
		})

		It("should write through a single bank per channel row",
			func() {
				cut := &s.cuts[0]
				cut.inPIM = true
				cut.iwStatus = statusInputFinished
				cut.inCnt = -1
				cut.outputValid = 1

				g := s.cutGeometry(0, cut)
				batch := s.writeOutput(0, cut, g, false)

				// df == 1 bounds the bank loop to one command
				// and keeps the input bank (no +1 offset).
				Expect(batch).To(HaveLen(1))
				Expect(batch[0].Location.BankGroup).
					To(Equal(uint64(0)))
				Expect(batch[0].Location.Bank).
					To(Equal(uint64(0)))
			})
	})
})
