package database

import (
	"math"
	"testing"

	"github.com/fixfusion/chat-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLocation(t *testing.T) {
	tcases := []struct {
		name  string
		loc   *types.Location
		field string
	}{
		{name: "nil payload", loc: nil, field: "locationData"},
		{name: "latitude too large", loc: &types.Location{Latitude: 200, Longitude: 10}, field: "latitude"},
		{name: "latitude too small", loc: &types.Location{Latitude: -90.5, Longitude: 10}, field: "latitude"},
		{name: "latitude NaN", loc: &types.Location{Latitude: math.NaN(), Longitude: 10}, field: "latitude"},
		{name: "longitude too large", loc: &types.Location{Latitude: 10, Longitude: 180.1}, field: "longitude"},
		{name: "longitude infinite", loc: &types.Location{Latitude: 10, Longitude: math.Inf(1)}, field: "longitude"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateLocation(tc.loc)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve, "expected a ValidationError")
			assert.Equal(t, tc.field, ve.Field, "expected the offending field to be named")
		})
	}
}

func TestValidateLocation_Valid(t *testing.T) {
	assert.NoError(t, validateLocation(&types.Location{Latitude: 24.8607, Longitude: 67.0011, Address: "Karachi", Accuracy: 5}))
	assert.NoError(t, validateLocation(&types.Location{Latitude: -90, Longitude: 180}), "expected boundary values to pass")
	assert.NoError(t, validateLocation(&types.Location{Latitude: 0, Longitude: 0}), "expected the origin to pass")
}

func TestCreateMessage_RejectsBeforeStorage(t *testing.T) {
	// validation failures must surface before any SQL runs, so a repository
	// without a live connection is sufficient here
	db := &PgChatRepository{}

	t.Run("location message without payload", func(t *testing.T) {
		_, err := db.CreateMessage(CreateMessageParams{
			SenderId:   10,
			ReceiverId: 20,
			Content:    "Location shared",
			Type:       types.MessageTypeLocation,
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "locationData", ve.Field)
	})

	t.Run("location message with out-of-range latitude", func(t *testing.T) {
		_, err := db.CreateMessage(CreateMessageParams{
			SenderId:   10,
			ReceiverId: 20,
			Content:    "Location shared",
			Type:       types.MessageTypeLocation,
			Location:   &types.Location{Latitude: 200, Longitude: 10},
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "latitude", ve.Field)
	})

	t.Run("text message with stray payload", func(t *testing.T) {
		_, err := db.CreateMessage(CreateMessageParams{
			SenderId:   10,
			ReceiverId: 20,
			Content:    "hi",
			Type:       types.MessageTypeText,
			Location:   &types.Location{Latitude: 24.86, Longitude: 67.01},
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "locationData", ve.Field)
	})
}
