package server

import "strconv"

// PairRoomId derives the shared room identifier for a conversation between
// two participants. The result is independent of argument order, so both
// sides of a conversation always land in the same room.
func PairRoomId(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return strconv.Itoa(a) + "-" + strconv.Itoa(b)
}
