package wal

import "hash/crc32"

// castagnoliTable backs every record's CRC32 (spec §4.4 "CRC-protected");
// Castagnoli has hardware acceleration on modern CPUs, unlike IEEE.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CalculateCRC32 computes data's checksum.
func CalculateCRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// ValidateCRC32 reports whether data matches the expected checksum.
func ValidateCRC32(data []byte, expected uint32) bool {
	return CalculateCRC32(data) == expected
}
