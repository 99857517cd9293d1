package fat

import (
	"encoding/binary"
)

// Build timestamps are fixed so repeated synthesis runs stay
// byte-identical: 2026-01-01 00:00:00 in FAT encoding.
const (
	buildDate = (46 << 9) | (1 << 5) | 1
	buildTime = 0
)

// dirEntry is the classic 32-byte FAT directory record. Long file names
// are not generated or consumed; every path component must fit 8.3.
type dirEntry struct {
	name         [11]byte
	attr         byte
	firstCluster uint32
	size         uint32
}

func (e dirEntry) isDir() bool {
	return e.attr&attrDirectory != 0
}

func (e dirEntry) encode() []byte {
	b := make([]byte, dirEntrySize)
	copy(b[0:11], e.name[:])
	b[11] = e.attr
	b[13] = 0 // creation time, tenths
	binary.LittleEndian.PutUint16(b[14:], buildTime)
	binary.LittleEndian.PutUint16(b[16:], buildDate)
	binary.LittleEndian.PutUint16(b[18:], buildDate)
	binary.LittleEndian.PutUint16(b[20:], uint16(e.firstCluster>>16))
	binary.LittleEndian.PutUint16(b[22:], buildTime)
	binary.LittleEndian.PutUint16(b[24:], buildDate)
	binary.LittleEndian.PutUint16(b[26:], uint16(e.firstCluster&0xFFFF))
	binary.LittleEndian.PutUint32(b[28:], e.size)
	return b
}

func decodeDirEntry(b []byte) dirEntry {
	var e dirEntry
	copy(e.name[:], b[0:11])
	e.attr = b[11]
	hi := uint32(binary.LittleEndian.Uint16(b[20:]))
	lo := uint32(binary.LittleEndian.Uint16(b[26:]))
	e.firstCluster = hi<<16 | lo
	e.size = binary.LittleEndian.Uint32(b[28:])
	return e
}

// entryTerminator and entryDeleted are the first-byte markers that end or
// skip a directory slot during scans.
const (
	entryTerminator = 0x00
	entryDeleted    = 0xE5
)

func usableEntry(b []byte) bool {
	return b[0] != entryTerminator && b[0] != entryDeleted && b[11]&attrVolumeID == 0
}

// dotEntries builds the "." and ".." records a fresh subdirectory starts
// with. A parent of 0 means the root directory, per the FAT convention.
func dotEntries(self, parent uint32) []byte {
	dot := dirEntry{attr: attrDirectory, firstCluster: self}
	copy(dot.name[:], ".          ")
	dotdot := dirEntry{attr: attrDirectory, firstCluster: parent}
	copy(dotdot.name[:], "..         ")

	return append(dot.encode(), dotdot.encode()...)
}
