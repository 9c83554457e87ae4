package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vid2md/vid2md/internal/api/storage"
)

func TestProjectCursorRoundTrip(t *testing.T) {
	original := &storage.ProjectCursor{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC),
		ProjectID: "0f8fad5b-d9cb-469f-a165-70867728950e",
	}

	encoded, err := EncodeProjectCursor(original)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeProjectCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, original.ProjectID, decoded.ProjectID)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecodeProjectCursor(t *testing.T) {
	tests := []struct {
		name    string
		cursor  string
		wantErr bool
		wantNil bool
	}{
		{
			name:    "empty cursor means first page",
			cursor:  "",
			wantNil: true,
		},
		{
			name:    "not base64",
			cursor:  "%%%not-base64%%%",
			wantErr: true,
		},
		{
			name:    "missing separator",
			cursor:  base64.StdEncoding.EncodeToString([]byte("12345")),
			wantErr: true,
		},
		{
			name:    "non-numeric timestamp",
			cursor:  base64.StdEncoding.EncodeToString([]byte("abc|some-id")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeProjectCursor(tt.cursor)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, decoded)
			}
		})
	}
}
