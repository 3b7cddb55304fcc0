package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{
			name:    "plain E.164",
			address: "+33612345678",
			want:    "+33612345678",
		},
		{
			name:    "channel prefix stripped",
			address: "whatsapp:+33612345678",
			want:    "+33612345678",
		},
		{
			name:    "channel prefix is case insensitive",
			address: "WhatsApp:+33612345678",
			want:    "+33612345678",
		},
		{
			name:    "spaces and dashes removed",
			address: " +33 6 12-34-56-78 ",
			want:    "+33612345678",
		},
		{
			name:    "missing plus restored",
			address: "33612345678",
			want:    "+33612345678",
		},
		{
			name:    "empty input",
			address: "",
			want:    "",
		},
		{
			name:    "prefix only",
			address: "whatsapp:",
			want:    "",
		},
		{
			name:    "letters rejected",
			address: "+33ABC45678",
			want:    "",
		},
		{
			name:    "inner plus rejected",
			address: "+336+12345678",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.address))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	normalized := Normalize("whatsapp:+33 612 345 678")
	assert.Equal(t, normalized, Normalize(normalized))
}

func TestDeliveryError(t *testing.T) {
	cause := errors.New("twilio: 21211 invalid number")
	err := &DeliveryError{To: "+33612345678", Err: cause}

	assert.Contains(t, err.Error(), "+33612345678")
	assert.ErrorIs(t, err, cause)

	var de *DeliveryError
	assert.ErrorAs(t, error(err), &de)
	assert.Equal(t, "+33612345678", de.To)
}
