package cpu_test

import (
	"bytes"
	"errors"
	"log"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ezrec/armsim/cpu"
	"github.com/ezrec/armsim/memory"
)

func assemble(lines ...string) *cpu.Program {
	asm := &cpu.Assembler{}
	prog, err := asm.Assemble(strings.Join(lines, "\n"))
	Expect(err).NotTo(HaveOccurred())
	return prog
}

var _ = Describe("Cpu", func() {
	var (
		mem *memory.Memory
		c   *cpu.Cpu
	)

	BeforeEach(func() {
		mem = memory.NewMemory(memory.MEMORY_SIZE)
		c = cpu.NewCpu(mem)
	})

	Context("without a program", func() {
		It("should be idle and ignore steps", func() {
			Expect(c.State()).To(Equal(cpu.STATE_IDLE))
			Expect(c.Step()).To(Succeed())
			Expect(c.Pc()).To(Equal(int32(0)))
			Expect(c.History.Len()).To(Equal(0))

			steps, err := c.Run(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal(0))
		})
	})

	Context("Arithmetic Instructions", func() {
		It("should add two registers and halt after the last instruction", func() {
			c.LoadProgram(assemble(
				"MOV R0, #5",
				"MOV R1, #10",
				"ADD R2, R0, R1",
			))
			Expect(c.State()).To(Equal(cpu.STATE_READY))

			Expect(c.Step()).To(Succeed())
			Expect(c.Step()).To(Succeed())
			Expect(c.Halted()).To(BeFalse())
			Expect(c.Step()).To(Succeed())

			regs := c.Registers()
			Expect(regs[0]).To(Equal(int32(5)))
			Expect(regs[1]).To(Equal(int32(10)))
			Expect(regs[2]).To(Equal(int32(15)))
			Expect(c.Flag(cpu.FLAG_Z)).To(BeFalse())
			Expect(c.Flag(cpu.FLAG_N)).To(BeFalse())
			Expect(c.Halted()).To(BeTrue())
			Expect(c.State()).To(Equal(cpu.STATE_HALTED))
			Expect(c.Pc()).To(Equal(int32(12)))
		})

		It("should accumulate with the two operand form", func() {
			c.LoadProgram(assemble(
				"MOV R0, #40",
				"ADD R0, #2",
				"SUB R0, #50",
			))
			_, err := c.Run(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[0]).To(Equal(int32(-8)))
			Expect(c.Flag(cpu.FLAG_N)).To(BeTrue())
		})

		It("should wrap on 32-bit overflow", func() {
			c.LoadProgram(assemble(
				"MOV R0, #0x7FFFFFFF",
				"ADD R0, R0, #1",
				"MOV R1, #0x10000",
				"MUL R1, R1, R1",
			))
			_, err := c.Run(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[0]).To(Equal(int32(-2147483648)))
			Expect(c.Register[1]).To(Equal(int32(0)))
			Expect(c.Flag(cpu.FLAG_Z)).To(BeTrue())
			Expect(c.Flag(cpu.FLAG_C | cpu.FLAG_V)).To(BeFalse())
		})

		It("should do logical operations and shifts", func() {
			c.LoadProgram(assemble(
				"MOV R0, #-1",
				"LSR R1, R0, #28",
				"MOV R2, #1",
				"LSL R2, R2, #31",
				"MOV R3, #0xF0",
				"AND R4, R3, #0x3C",
				"ORR R5, R3, #0x0F",
				"EOR R6, R3, R5",
				"LSL R7, R2, #33",
			))
			_, err := c.Run(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[1]).To(Equal(int32(15)))
			Expect(c.Register[2]).To(Equal(int32(-2147483648)))
			Expect(c.Register[4]).To(Equal(int32(0x30)))
			Expect(c.Register[5]).To(Equal(int32(0xFF)))
			Expect(c.Register[6]).To(Equal(int32(0x0F)))
			// Shift counts use the low five bits.
			Expect(c.Register[7]).To(Equal(int32(0)))
		})

		It("should read memory references as zero outside of LDR and STR", func() {
			c.LoadProgram(assemble(
				"MOV R1, #1",
				"MOV R0, [R1]",
			))
			_, err := c.Run(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[0]).To(Equal(int32(0)))
			Expect(c.Flag(cpu.FLAG_Z)).To(BeTrue())
		})
	})

	Context("Compare and Branch", func() {
		It("should set Z on equal compare without writing registers", func() {
			c.LoadProgram(assemble(
				"MOV R0, #5",
				"CMP R0, #5",
			))
			_, err := c.Run(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Flag(cpu.FLAG_Z)).To(BeTrue())
			Expect(c.Flag(cpu.FLAG_N)).To(BeFalse())
			Expect(c.Register[0]).To(Equal(int32(5)))
			Expect(c.Status()).To(Equal(cpu.FLAG_Z))
		})

		It("should set N on a negative compare", func() {
			c.LoadProgram(assemble(
				"MOV R0, #1",
				"CMP R0, #2",
			))
			_, err := c.Run(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Flag(cpu.FLAG_N)).To(BeTrue())
			Expect(c.Flag(cpu.FLAG_Z)).To(BeFalse())
		})

		It("should trace branches that are not taken", func() {
			var trace bytes.Buffer
			prev := log.Writer()
			log.SetOutput(&trace)
			DeferCleanup(func() { log.SetOutput(prev) })

			c.Verbose = true
			c.LoadProgram(assemble(
				"MOV R0, #0",
				"CMP R0, #1",
				"BEQ end",
				"MOV R1, #1",
				"B end",
				"end:",
			))
			steps, err := c.Run(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal(5))
			Expect(c.Register[1]).To(Equal(int32(1)))

			Expect(trace.String()).To(ContainSubstring("0008: BEQ not taken"))
			Expect(trace.String()).NotTo(ContainSubstring(": B not taken"))
		})

		It("should compute a factorial", func() {
			c.LoadProgram(assemble(
				"MOV R0, #5",
				"MOV R1, #1",
				"loop: CMP R0, #1",
				"BEQ end",
				"MUL R1, R1, R0",
				"SUB R0, R0, #1",
				"B loop",
				"end:",
			))
			steps, err := c.Run(1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Halted()).To(BeTrue())
			Expect(c.Register[1]).To(Equal(int32(120)))
			Expect(steps).To(Equal(24))
		})

		It("should fall through an untaken branch", func() {
			c.LoadProgram(assemble(
				"MOV R0, #1",
				"CMP R0, #1",
				"BNE skip",
				"MOV R1, #7",
				"skip: MOV R2, #9",
			))
			_, err := c.Run(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[1]).To(Equal(int32(7)))
			Expect(c.Register[2]).To(Equal(int32(9)))
		})

		It("should treat a write to PC as a branch", func() {
			c.LoadProgram(assemble(
				"MOV PC, #8",
				"MOV R0, #1",
				"MOV R1, #2",
			))
			Expect(c.Step()).To(Succeed())
			Expect(c.Pc()).To(Equal(int32(8)))
			Expect(c.Step()).To(Succeed())
			Expect(c.Register[0]).To(Equal(int32(0)))
			Expect(c.Register[1]).To(Equal(int32(2)))
			Expect(c.Halted()).To(BeTrue())
		})

		It("should branch through a register", func() {
			c.LoadProgram(assemble(
				"MOV LR, #12",
				"B LR",
				"MOV R0, #1",
				"MOV R1, #1",
			))
			_, err := c.Run(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[0]).To(Equal(int32(0)))
			Expect(c.Register[1]).To(Equal(int32(1)))
		})

		It("should halt on a branch outside of the program", func() {
			c.LoadProgram(assemble(
				"B #-4",
				"MOV R0, #1",
			))
			Expect(c.Step()).To(Succeed())
			Expect(c.Halted()).To(BeTrue())
			Expect(c.Step()).To(Succeed())
			Expect(c.Register[0]).To(Equal(int32(0)))
		})
	})

	Context("Memory Instructions", func() {
		It("should store and load a word", func() {
			c.LoadProgram(assemble(
				"MOV R0, #0x1234",
				"MOV R1, #16",
				"STR R0, [R1]",
				"LDR R2, [R1]",
				"MOV R3, #0xAB",
				"MOV R4, #0",
				"STR R3, [R4]",
			))
			_, err := c.Run(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[2]).To(Equal(int32(0x1234)))

			b, err := mem.Read8(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(uint8(0xAB)))
		})

		It("should ignore the memory offset", func() {
			c.LoadProgram(assemble(
				"MOV R0, #77",
				"MOV R1, #8",
				"STR R0, [R1, #4]",
			))
			_, err := c.Run(3)
			Expect(err).NotTo(HaveOccurred())

			word, err := mem.Read32(8)
			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(uint32(77)))
		})

		It("should halt on a memory fault", func() {
			c.LoadProgram(assemble(
				"MOV R0, #1",
				"MOV R1, #1022",
				"STR R0, [R1]",
				"MOV R2, #3",
			))
			steps, err := c.Run(10)
			Expect(steps).To(Equal(2))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, memory.ErrAccess)).To(BeTrue())

			var fault *memory.ErrFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.Address).To(Equal(1022))

			var exec *cpu.ErrExecution
			Expect(errors.As(err, &exec)).To(BeTrue())
			Expect(exec.LineNo).To(Equal(3))
			Expect(exec.Op).To(Equal(cpu.OP_STR))

			Expect(c.Halted()).To(BeTrue())
			Expect(c.Pc()).To(Equal(int32(8)))
			Expect(c.Register[1]).To(Equal(int32(1022)))

			Expect(c.Step()).To(Succeed())
			Expect(c.Register[2]).To(Equal(int32(0)))

			data, err := mem.Read(1020, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0, 0, 0, 0}))
		})
	})

	Context("with a mock bus", func() {
		var (
			mockCtrl *gomock.Controller
			bus      *MockBus
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			bus = NewMockBus(mockCtrl)
			c = cpu.NewCpu(bus)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should load words through the base register", func() {
			bus.EXPECT().Read32(16).Return(uint32(0xdeadbeef), nil)

			c.LoadProgram(assemble(
				"MOV R1, #16",
				"LDR R2, [R1]",
			))
			_, err := c.Run(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Register[2]).To(Equal(int32(-559038737)))
		})

		It("should store words through the base register", func() {
			bus.EXPECT().Write32(32, uint32(0xffffffff)).Return(nil)

			c.LoadProgram(assemble(
				"MOV R0, #-1",
				"MOV SP, #32",
				"STR R0, [SP]",
			))
			_, err := c.Run(3)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should propagate bus errors", func() {
			busErr := errors.New("bus error")
			bus.EXPECT().Read32(0).Return(uint32(0), busErr)

			c.LoadProgram(assemble(
				"LDR R0, [R0]",
			))
			err := c.Step()
			Expect(errors.Is(err, busErr)).To(BeTrue())
			Expect(c.Halted()).To(BeTrue())
		})
	})

	Context("History", func() {
		It("should snapshot before each instruction", func() {
			c.LoadProgram(assemble(
				"MOV R0, #5",
				"CMP R0, #5",
				"MOV R1, #1",
			))
			_, err := c.Run(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.History.Len()).To(Equal(3))

			snap := c.History.Data[2]
			Expect(snap.Registers[cpu.REG_PC]).To(Equal(int32(8)))
			Expect(snap.Registers[0]).To(Equal(int32(5)))
			Expect(snap.Status).To(Equal(cpu.FLAG_Z))
		})

		It("should bound the history", func() {
			c.LoadProgram(assemble(
				"loop: ADD R0, R0, #1",
				"B loop",
			))
			steps, err := c.Run(600)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal(600))
			Expect(c.History.Len()).To(Equal(cpu.HISTORY_LIMIT))

			oldest := c.History.Data[0]
			Expect(oldest.Registers[0]).To(Equal(int32(50)))

			newest, ok := c.History.Peek()
			Expect(ok).To(BeTrue())
			Expect(newest.Registers[cpu.REG_PC]).To(Equal(int32(4)))
		})
	})

	Context("Reset", func() {
		It("should be idempotent and keep the program", func() {
			prog := assemble(
				"MOV R0, #-3",
				"MOV R1, #4",
			)
			c.LoadProgram(prog)
			_, err := c.Run(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Halted()).To(BeTrue())

			c.Reset()
			once := c.Snapshot()
			onceLen := c.History.Len()
			onceState := c.State()

			c.Reset()
			Expect(c.Snapshot()).To(Equal(once))
			Expect(c.History.Len()).To(Equal(onceLen))
			Expect(c.State()).To(Equal(onceState))

			Expect(onceState).To(Equal(cpu.STATE_READY))
			Expect(once).To(Equal(cpu.Snapshot{}))
			Expect(c.Program()).To(BeIdenticalTo(prog))
		})

		It("should reset on program load", func() {
			c.LoadProgram(assemble("MOV R0, #-1"))
			Expect(c.Step()).To(Succeed())
			Expect(c.Halted()).To(BeTrue())

			c.LoadProgram(assemble("MOV R1, #1", "MOV R2, #2"))
			Expect(c.Halted()).To(BeFalse())
			Expect(c.Register[0]).To(Equal(int32(0)))
			Expect(c.Status()).To(Equal(uint32(0)))
			Expect(c.History.Len()).To(Equal(0))
		})

		It("should halt an empty program without executing", func() {
			c.LoadProgram(&cpu.Program{})
			Expect(c.State()).To(Equal(cpu.STATE_READY))

			steps, err := c.Run(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal(0))
			Expect(c.Halted()).To(BeTrue())
			Expect(c.History.Len()).To(Equal(0))
		})
	})

	Context("Faults", func() {
		It("should halt on a malformed instruction", func() {
			c.LoadProgram(&cpu.Program{
				Instructions: []cpu.Instruction{
					{Op: cpu.OP_MOV, Operands: []cpu.Operand{cpu.Register(0)}, LineNo: 1},
				},
			})
			err := c.Step()
			Expect(errors.Is(err, cpu.ErrOperandCount)).To(BeTrue())
			Expect(c.Halted()).To(BeTrue())
		})

		It("should halt on an unknown opcode", func() {
			c.LoadProgram(&cpu.Program{
				Instructions: []cpu.Instruction{
					{Op: cpu.Op(99), LineNo: 1},
				},
			})
			err := c.Step()
			Expect(errors.Is(err, cpu.ErrOpcodeDecode)).To(BeTrue())
			Expect(c.State()).To(Equal(cpu.STATE_HALTED))
		})
	})

	Context("Values", func() {
		It("should list registers then status", func() {
			c.LoadProgram(assemble("MOV R3, #-1"))
			Expect(c.Step()).To(Succeed())

			values := map[string]uint32{}
			var names []string
			for name, value := range c.Values() {
				names = append(names, name)
				values[name] = value
			}
			Expect(names).To(HaveLen(cpu.REGISTER_COUNT + 1))
			Expect(names[13:]).To(Equal([]string{"SP", "LR", "PC", "CPSR"}))
			Expect(values["R3"]).To(Equal(uint32(0xffffffff)))
			Expect(values["CPSR"]).To(Equal(cpu.FLAG_N))
			Expect(c.String()).To(ContainSubstring("cpsr: Nzcv"))
		})
	})
})
