package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairRoomId(t *testing.T) {
	tcases := []struct {
		name     string
		a, b     int
		expected string
	}{
		{name: "ascending pair", a: 10, b: 20, expected: "10-20"},
		{name: "descending pair", a: 20, b: 10, expected: "10-20"},
		{name: "same id", a: 7, b: 7, expected: "7-7"},
		{name: "multi-digit ordering", a: 100, b: 99, expected: "99-100"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PairRoomId(tc.a, tc.b))
		})
	}
}

func TestPairRoomId_Commutative(t *testing.T) {
	ids := []int{1, 2, 10, 20, 99, 100, 12345}
	for _, a := range ids {
		for _, b := range ids {
			assert.Equalf(t, PairRoomId(a, b), PairRoomId(b, a),
				"expected PairRoomId(%d, %d) to be commutative", a, b)
		}
	}
}
