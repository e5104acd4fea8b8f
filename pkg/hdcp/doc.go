// Package hdcp implements the HDCP 1.4 authentication engine run by a
// display controller: primary link authentication (protocol Part 1),
// repeater downstream verification with the hardware SHA-1 engine
// (Part 2), periodic link-integrity monitoring (Part 3), and enforcement
// of the System Renewability Message revocation list.
//
// A Connector owns the per-port session state. It drives the transport
// shim (pkg/shim) for receiver traffic and the hardware port (pkg/hw) for
// the display engine's HDCP block. Enable runs in the background so
// callers never block on multi-second hardware polling; protection-state
// changes are reported through an asynchronous callback.
package hdcp
