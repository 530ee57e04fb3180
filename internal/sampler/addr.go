package sampler

import (
	"encoding/binary"
	"net/netip"
)

const maxAddr = uint64(^uint32(0))

// ParseAddr parses a dotted-quad IPv4 address. IPv6 input is rejected.
func ParseAddr(s string) (uint32, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

func Format(n uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b).String()
}

// Add steps addr forward by n with per-octet carry. Stepping past
// 255.255.255.255 reports false instead of wrapping to 0.0.0.0.
func Add(addr uint32, n uint64) (uint32, bool) {
	sum := uint64(addr) + n
	if sum > maxAddr {
		return 0, false
	}
	return uint32(sum), true
}
