// Package gpio drives BCM283x GPIO pins through the memory-mapped register
// block exposed at /dev/gpiomem. It needs no root privileges when the user is
// in the gpio group.
package gpio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	blockSize = 4 * 1024

	// Word offsets into the register block.
	regSet0 = 7
	regClr0 = 10
	regLev0 = 13

	// MaxPin is the highest BCM pin number.
	MaxPin = 53
)

// ErrClosed is returned by operations on a closed Bank.
var ErrClosed = errors.New("gpio: bank closed")

// Bank is an open mapping of the GPIO register block.
type Bank struct {
	mu   sync.Mutex
	mem  []byte
	regs []uint32
}

// Open maps the GPIO registers from device, usually /dev/gpiomem.
func Open(device string) (*Bank, error) {
	file, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", device, err)
	}
	defer file.Close()

	mem, err := unix.Mmap(int(file.Fd()), 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("gpio: mmap %s: %w", device, err)
	}
	regs := unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4)
	return &Bank{mem: mem, regs: regs}, nil
}

// SetInput configures pin as an input.
func (b *Bank) SetInput(pin int) error {
	return b.setFunction(pin, 0)
}

// SetOutput configures pin as an output.
func (b *Bank) SetOutput(pin int) error {
	return b.setFunction(pin, 1)
}

func (b *Bank) setFunction(pin int, mode uint32) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.regs == nil {
		return ErrClosed
	}
	word, shift := functionSelect(pin)
	b.regs[word] = (b.regs[word] &^ (7 << shift)) | (mode << shift)
	return nil
}

// Write drives an output pin high or low.
func (b *Bank) Write(pin int, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.regs == nil {
		return
	}
	base := regClr0
	if high {
		base = regSet0
	}
	word, mask := bankBit(base, pin)
	b.regs[word] = mask
}

// Read returns the level of pin.
func (b *Bank) Read(pin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.regs == nil {
		return false
	}
	word, mask := bankBit(regLev0, pin)
	return b.regs[word]&mask != 0
}

// Close unmaps the register block. Calling Close more than once is safe.
func (b *Bank) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	b.regs = nil
	return err
}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("gpio: pin %d out of range", pin)
	}
	return nil
}

// functionSelect returns the GPFSELn word index and bit shift for pin.
// Each word holds three mode bits for ten pins.
func functionSelect(pin int) (int, uint) {
	return pin / 10, uint(pin%10) * 3
}

// bankBit returns the word index and bit mask for pin in a register group
// (set, clear, or level) that starts at base and holds 32 pins per word.
func bankBit(base, pin int) (int, uint32) {
	return base + pin/32, 1 << uint(pin%32)
}
