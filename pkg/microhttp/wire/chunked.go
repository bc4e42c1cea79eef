package wire

// parseChunkSizeLine parses a chunk-size line per RFC 7230 §4.1:
//
//	chunk-size = 1*HEXDIG [ chunk-ext ]
//
// Chunk extensions (anything after ';') are discarded without
// interpretation: they have no defined effect here, and ignoring them
// avoids a class of request-smuggling tricks that hide data in extension
// syntax.
func parseChunkSizeLine(line []byte) (uint64, error) {
	if idx := indexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = trimSpace(line)
	if len(line) == 0 {
		return 0, ErrInvalidChunkSize
	}

	var size uint64
	for _, b := range line {
		size <<= 4
		switch {
		case b >= '0' && b <= '9':
			size |= uint64(b - '0')
		case b >= 'a' && b <= 'f':
			size |= uint64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			size |= uint64(b-'A') + 10
		default:
			return 0, ErrInvalidChunkSize
		}
	}
	return size, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
