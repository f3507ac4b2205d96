// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// quietCodec returns a codec whose frame traces are discarded
func quietCodec(opts ...Option) *Codec {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewCodec(append([]Option{WithLogger(log)}, opts...)...)
}

var fuzzOpcodes = []byte{XStatus, XStatusChanged, XVersion, XCVResult, XLocLibData, XLocoInfo, XFirmware}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzProcessInbound_RandomBytes feeds random frames of any length
// and verifies the decoder never panics
func TestFuzzProcessInbound_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	c := quietCodec()
	for i := 0; i < rounds; i++ {
		frame := make([]byte, rng.Intn(40))
		rng.Read(frame)
		_, _ = c.ProcessInbound(frame)
	}
}

// TestFuzzProcessInbound_XBusOpcodes targets known opcodes with random
// bodies of every length
func TestFuzzProcessInbound_XBusOpcodes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		c := quietCodec()
		opcode := fuzzOpcodes[rng.Intn(len(fuzzOpcodes))]
		frame := make([]byte, rng.Intn(24)+HeaderSize+1)
		rng.Read(frame)
		frame[2] = GroupXBus
		frame[4] = opcode

		kind, err := c.ProcessInbound(frame)
		if err != nil && !errors.Is(err, ErrTruncatedFrame) {
			t.Fatalf("opcode 0x%02X len %d: unexpected error %v", opcode, len(frame), err)
		}
		if err != nil && kind != EventNone {
			t.Fatalf("opcode 0x%02X: kind %v returned with error", opcode, kind)
		}
	}
}

// TestFuzzProcessInbound_TruncatedLocoInfo verifies that a short loco-info
// frame never touches cached state
func TestFuzzProcessInbound_TruncatedLocoInfo(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	c := quietCodec()
	_, err := c.ProcessInbound(xbusFrame(0xEF, 0x00, 0x03, 0x02, 0x89, 0x1F, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := c.LocoInfo()

	for i := 0; i < rounds; i++ {
		frame := make([]byte, rng.Intn(13))
		rng.Read(frame)
		if len(frame) > 2 {
			frame[2] = GroupXBus
		}
		if len(frame) > 4 {
			frame[4] = XLocoInfo
		}
		if _, err := c.ProcessInbound(frame); !errors.Is(err, ErrTruncatedFrame) {
			t.Fatalf("len %d: err = %v, want ErrTruncatedFrame", len(frame), err)
		}
		if c.LocoInfo() != want {
			t.Fatalf("len %d: cached state changed to %+v", len(frame), c.LocoInfo())
		}
	}
}

// ============================================================
// Framer Fuzz Tests
// ============================================================

// TestFuzzFramer_RandomStream feeds random bytes and checks that every
// emitted frame carries its own length
func TestFuzzFramer_RandomStream(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		f := NewFramer()
		data := make([]byte, rng.Intn(512)+1)
		rng.Read(data)

		frames, _ := f.Write(data)
		for _, frame := range frames {
			length := int(frame[0]) | int(frame[1])<<8
			if length != len(frame) || length < HeaderSize || length > MaxFrameSize {
				t.Fatalf("frame length %d, header says %d", len(frame), length)
			}
		}
	}
}

// ============================================================
// Composer Fuzz Tests
// ============================================================

// TestFuzzCompose_Checksum composes random drive commands and verifies the
// trailing checksum against the payload
func TestFuzzCompose_Checksum(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	c := quietCodec()
	for i := 0; i < rounds; i++ {
		steps := SpeedSteps(rng.Intn(3))
		loco := LocoInfo{
			Address:   uint16(rng.Intn(10000)),
			Steps:     steps,
			Speed:     uint8(rng.Intn(int(MaxSpeed(steps)) + 1)),
			Direction: Direction(rng.Intn(2)),
		}
		if err := c.SetLocoDrive(loco); err != nil {
			t.Fatalf("%+v: %v", loco, err)
		}
		frame, _ := c.PullOutbound()
		if int(frame[0]) != len(frame) {
			t.Fatalf("length byte %d, frame %d", frame[0], len(frame))
		}
		if got, want := frame[len(frame)-1], CalculateChecksum(frame[HeaderSize:len(frame)-1]); got != want {
			t.Fatalf("checksum 0x%02X, want 0x%02X", got, want)
		}
	}
}
