package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/encoding"
)

func TestToUTF8(t *testing.T) {
	type testCase struct {
		name        string
		input       []byte
		want        string
		wantCharset encoding.Charset
	}

	tests := []testCase{
		{
			name:        "UTF8Passthrough",
			input:       []byte("member;amount\nRenée;R 1 500,00\n"),
			want:        "member;amount\nRenée;R 1 500,00\n",
			wantCharset: encoding.UTF8,
		},
		{
			name:        "UTF8BOMStripped",
			input:       append([]byte{0xEF, 0xBB, 0xBF}, []byte("member;amount\n")...),
			want:        "member;amount\n",
			wantCharset: encoding.UTF8,
		},
		{
			// "Renée;500\n" with é = 0xE9 in Windows-1252.
			name:  "Windows1252",
			input: []byte{'R', 'e', 'n', 0xE9, 'e', ';', '5', '0', '0', '\n'},
			want:  "Renée;500\n",
		},
		{
			name:        "UTF16LEWithBOM",
			input:       []byte{0xFF, 0xFE, 'm', 0, 'e', 0, ';', 0, '1', 0, '\n', 0},
			want:        "me;1\n",
			wantCharset: encoding.UTF16LE,
		},
		{
			name:        "UTF16BEWithBOM",
			input:       []byte{0xFE, 0xFF, 0, 'm', 0, 'e', 0, ';', 0, '1', 0, '\n'},
			want:        "me;1\n",
			wantCharset: encoding.UTF16BE,
		},
		{
			name:        "Empty",
			input:       nil,
			want:        "",
			wantCharset: encoding.UTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, charset, err := encoding.ToUTF8(bytes.NewReader(tt.input))
			require.NoError(t, err)

			got, err := io.ReadAll(r)
			require.NoError(t, err)

			assert.Equal(t, tt.want, string(got))
			// Single-byte Latin charsets are left to chardet, so only the text is pinned.
			if tt.wantCharset != "" {
				assert.Equal(t, tt.wantCharset, charset)
			}
		})
	}
}
