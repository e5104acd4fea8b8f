// hdcp-sim authenticates against a simulated HDCP 1.4 receiver and prints
// the resulting session state. It wires the full engine together: the
// simulated hardware port, the HDMI shim over an in-memory DDC bus, and
// the session controller with its link monitor.
//
// Usage:
//
//	hdcp-sim [options]
//
// Options:
//
//	-devices   number of downstream devices behind a repeater;
//	           0 simulates a plain sink (default: 0)
//	-depth     repeater cascade depth (default: 1)
//	-watch     how long to leave the link monitor running (default: 5s)
//	-loglevel  log level: error, warn, info, debug (default: info)
//
// Example:
//
//	hdcp-sim -devices 3 -watch 10s -loglevel debug
package main

import (
	"crypto/sha1"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/hdcp"
	"github.com/backkem/hdcp/pkg/hw"
	"github.com/backkem/hdcp/pkg/ksv"
	"github.com/backkem/hdcp/pkg/shim"
)

// ddcReceiver is an in-memory DDC register file acting as the downstream
// receiver. The simulated hardware port accepts any Ri', so the receiver
// only needs consistent Bksv, Bcaps and repeater topology data.
type ddcReceiver struct {
	mem [256]byte
}

func (r *ddcReceiver) Read(offset uint8, buf []byte) error {
	copy(buf, r.mem[offset:])
	return nil
}

func (r *ddcReceiver) Write(offset uint8, buf []byte) error {
	copy(r.mem[offset:], buf)
	return nil
}

const (
	ddcBksv    = 0x00
	ddcVPrime  = 0x20
	ddcBcaps   = 0x40
	ddcBstatus = 0x41
	ddcKsvFifo = 0x43

	bcapsKsvFifoReady = 1 << 5
	bcapsRepeater     = 1 << 6
)

// newReceiver populates a receiver with a valid Bksv and, for devices > 0,
// a repeater topology whose V' is the true SHA-1 over the KSV list,
// Bstatus and the hardware M0 secret.
func newReceiver(devices, depth int, m0 [8]byte) *ddcReceiver {
	r := &ddcReceiver{}
	bksv := ksv.KSV{0xaa, 0x55, 0xaa, 0x55, 0xaa}
	copy(r.mem[ddcBksv:], bksv[:])
	if devices == 0 {
		return r
	}

	r.mem[ddcBcaps] = bcapsRepeater | bcapsKsvFifoReady
	bstatus := [2]byte{byte(devices), byte(depth)}
	copy(r.mem[ddcBstatus:], bstatus[:])

	msg := make([]byte, 0, devices*ksv.Len+10)
	for i := 0; i < devices; i++ {
		var k ksv.KSV
		for j := range k {
			k[j] = byte(0x10*(i+1) + j)
		}
		copy(r.mem[ddcKsvFifo+i*ksv.Len:], k[:])
		msg = append(msg, k[:]...)
	}
	msg = append(msg, bstatus[0], bstatus[1])
	msg = append(msg, m0[:]...)
	digest := sha1.Sum(msg)
	copy(r.mem[ddcVPrime:], digest[:])
	return r
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch s {
	case "error":
		return logging.LogLevelError, nil
	case "warn":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func main() {
	devices := flag.Int("devices", 0, "downstream devices behind a repeater, 0 for a plain sink")
	depth := flag.Int("depth", 1, "repeater cascade depth")
	watch := flag.Duration("watch", 5*time.Second, "how long to leave the link monitor running")
	logLevel := flag.String("loglevel", "info", "log level: error, warn, info, debug")
	flag.Parse()

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = level

	sim := hw.NewSim()
	bus := newReceiver(*devices, *depth, sim.M0())
	hdmi, err := shim.NewHDMI(shim.HDMIConfig{
		Bus:           bus,
		Port:          sim,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("creating HDMI shim: %v", err)
	}

	connector, err := hdcp.NewConnector(hdcp.Config{
		Port:          sim,
		DDI:           hw.DDIB,
		Shim:          hdmi,
		Aksv:          ksv.KSV{0x55, 0xaa, 0x55, 0xaa, 0x55},
		CheckPeriod:   time.Second,
		LoggerFactory: loggerFactory,
		OnStateChange: func(s hdcp.ProtectionState) {
			fmt.Printf("protection state: %v\n", s)
		},
	})
	if err != nil {
		log.Fatalf("creating connector: %v", err)
	}
	defer connector.Close() //nolint:errcheck

	if err := connector.Enable(); err != nil {
		log.Fatalf("enabling protection: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for connector.State() != hdcp.Enabled {
		if time.Now().After(deadline) {
			log.Fatalf("authentication never completed, state %v", connector.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	info := connector.DownstreamInfo()
	fmt.Printf("authenticated Bksv %s\n", info.BKSV)
	if info.IsRepeater {
		fmt.Printf("repeater: %d devices, depth %d\n", info.DeviceCount, info.Depth)
		for _, k := range info.KSVList {
			fmt.Printf("  downstream KSV %s\n", k)
		}
	}

	fmt.Printf("watching the link for %v\n", *watch)
	time.Sleep(*watch)
	if err := connector.CheckLink(); err != nil {
		log.Fatalf("link check: %v", err)
	}
	fmt.Println("link intact")

	if err := connector.Disable(); err != nil {
		log.Fatalf("disabling protection: %v", err)
	}
}
