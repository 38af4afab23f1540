package codec

// Subentry keys share one shape across hash fields, set members and list
// nodes so that all subentries of one logical key sort contiguously:
//
//	len(user_key) u32 || user_key bytes || version u32 || suffix
//
// suffix is the field, the member, or (for lists) a fixed 8-byte
// big-endian index.
const subkeyPrefixOverhead = 4 + 4 // len(user_key) u32 + version u32

func encodeSubkey(userKey []byte, version uint32, suffix []byte) []byte {
	buf := make([]byte, 4+len(userKey)+4+len(suffix))
	putU32(buf[0:4], uint32(len(userKey)))
	copy(buf[4:4+len(userKey)], userKey)
	putU32(buf[4+len(userKey):8+len(userKey)], version)
	copy(buf[8+len(userKey):], suffix)
	return buf
}

// SplitSubkey parses the common prefix of any subentry key, returning
// views of the user_key and suffix plus the embedded version. All
// returned slices alias buf.
func SplitSubkey(buf []byte) (userKey []byte, version uint32, suffix []byte, err error) {
	if len(buf) < 4 {
		return nil, 0, nil, ErrCorruption
	}
	klen := int(getU32(buf[0:4]))
	if len(buf) < 4+klen+4 {
		return nil, 0, nil, ErrCorruption
	}
	userKey = buf[4 : 4+klen]
	version = getU32(buf[4+klen : 8+klen])
	suffix = buf[8+klen:]
	return userKey, version, suffix, nil
}

// SubkeyUserKey is a cheap variant of SplitSubkey for the compaction
// filter's hot path: it extracts only the user_key, without touching the
// version or suffix.
func SubkeyUserKey(buf []byte) (userKey []byte, err error) {
	if len(buf) < 4 {
		return nil, ErrCorruption
	}
	klen := int(getU32(buf[0:4]))
	if len(buf) < 4+klen {
		return nil, ErrCorruption
	}
	return buf[4 : 4+klen], nil
}

// EncodeHashFieldKey / EncodeSetMemberKey produce identical shapes; kept
// as distinct named functions for readability at call sites.

func EncodeHashFieldKey(userKey []byte, version uint32, field []byte) []byte {
	return encodeSubkey(userKey, version, field)
}

func DecodeHashFieldKey(buf []byte) (userKey []byte, version uint32, field []byte, err error) {
	return SplitSubkey(buf)
}

func EncodeSetMemberKey(userKey []byte, version uint32, member []byte) []byte {
	return encodeSubkey(userKey, version, member)
}

func DecodeSetMemberKey(buf []byte) (userKey []byte, version uint32, member []byte, err error) {
	return SplitSubkey(buf)
}

func EncodeListNodeKey(userKey []byte, version uint32, index int64) []byte {
	var idx [8]byte
	putI64(idx[:], index)
	return encodeSubkey(userKey, version, idx[:])
}

func DecodeListNodeKey(buf []byte) (userKey []byte, version uint32, index int64, err error) {
	userKey, version, suffix, err := SplitSubkey(buf)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(suffix) != 8 {
		return nil, 0, 0, ErrCorruption
	}
	return userKey, version, getI64(suffix), nil
}

// SubkeyPrefix returns the byte string that every subentry of userKey at
// the given version starts with; used to seek a column family's ordered
// index at the start of that user_key's contiguous run.
func SubkeyPrefix(userKey []byte, version uint32) []byte {
	buf := make([]byte, 4+len(userKey)+4)
	putU32(buf[0:4], uint32(len(userKey)))
	copy(buf[4:4+len(userKey)], userKey)
	putU32(buf[4+len(userKey):], version)
	return buf
}

// SubkeyKeyPrefix returns the prefix shared by every version of
// userKey's subentries (i.e. without the version component), useful for
// a filter that wants to recognize "same user_key" runs regardless of
// version.
func SubkeyKeyPrefix(userKey []byte) []byte {
	buf := make([]byte, 4+len(userKey))
	putU32(buf[0:4], uint32(len(userKey)))
	copy(buf[4:], userKey)
	return buf
}
