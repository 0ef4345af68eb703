// Package link provides the byte stream between the controller and the
// kayak's modem.
//
// The link is best-effort: packets are written back to back without
// framing, checksum or acknowledgement. Whatever the peer sends back is
// buffered in the background and handed out on request without
// blocking, so the control loop can drain responses between ticks.
package link
