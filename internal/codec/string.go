package codec

// EncodeStringValue lays out the strings column family's value:
// payload_bytes || expire_u32.
func EncodeStringValue(payload []byte, expire uint32) []byte {
	buf := make([]byte, len(payload)+4)
	copy(buf, payload)
	putU32(buf[len(payload):], expire)
	return buf
}

// DecodeStringValue splits a strings CF value back into its payload
// (aliasing buf) and expire timestamp.
func DecodeStringValue(buf []byte) (payload []byte, expire uint32, err error) {
	if len(buf) < 4 {
		return nil, 0, ErrCorruption
	}
	n := len(buf) - 4
	return buf[:n], getU32(buf[n:]), nil
}

// IsStringExpired reports whether a decoded expire timestamp means the
// value is logically gone.
func IsStringExpired(expire, now uint32) bool {
	return expire != 0 && expire <= now
}
