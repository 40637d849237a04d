// Package printer drives an ESC/POS receipt printer over its own serial handle.
package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/korean"
)

// Command types accepted in a print job.
const (
	Bold       = "bold"
	Unbold     = "unbold"
	Alignment  = "alignment"
	Text       = "text"
	NormalText = "normal_text"
	SmallText  = "small_text"
	MediumText = "medium_text"
	LargeText  = "large_text"
	KoreanText = "korean_text"
	BlankLine  = "blank_line"
	FullCut    = "full_cut"
	ClearAll   = "clear_all"
	QRCode     = "qr_code"
)

// MaxQRPayload is the largest QR payload the printer accepts, in bytes.
const MaxQRPayload = 230

var (
	ErrMissingValue       = errors.New("missing value")
	ErrInvalidAlignment   = errors.New("invalid alignment value")
	ErrQRTooLong          = errors.New("data too long for QR code capacity")
	ErrUnsupportedCommand = errors.New("unsupported command type")
	ErrEncoding           = errors.New("encoding failed for Korean text")
)

// Command is one step of a print job. Value is required for text,
// korean_text, alignment and qr_code.
type Command struct {
	Type  string  `json:"type"`
	Value *string `json:"value,omitempty"`
}

// UnmarshalJSON also accepts the older "commandType" key.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string  `json:"type"`
		CommandType string  `json:"commandType"`
		Value       *string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Type = raw.Type
	if c.Type == "" {
		c.Type = raw.CommandType
	}
	c.Value = raw.Value
	return nil
}

// Cmd builds a Command without a value.
func Cmd(typ string) Command { return Command{Type: typ} }

// CmdValue builds a Command carrying value.
func CmdValue(typ, value string) Command { return Command{Type: typ, Value: &value} }

// PayloadError reports the command that stopped a print job.
type PayloadError struct {
	Index int
	Type  string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("print command %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

var fixedCommands = map[string][]byte{
	Bold:       {0x1B, 'E', 0x01},
	Unbold:     {0x1B, 'E', 0x00},
	NormalText: {0x1D, '!', 0x00},
	SmallText:  {0x1D, '!', 0x01},
	MediumText: {0x1D, '!', 0x11},
	LargeText:  {0x1D, '!', 0x11},
	BlankLine:  {'\n'},
	FullCut:    {0x1D, 'V', 0x00},
	ClearAll:   {0x1B, '@'},
}

var alignments = map[string]byte{
	"left":   0x00,
	"center": 0x01,
	"right":  0x02,
}

var (
	selectKorean  = []byte{0x1B, 't', 0x0B}
	selectDefault = []byte{0x1B, 't', 0x00}
)

// WidthCommand is GS W nL nH for a print area of widthMM at dpi.
func WidthCommand(dpi, widthMM int) []byte {
	dots := int(float64(widthMM) * float64(dpi) / 25.4)
	return []byte{0x1D, 'W', byte(dots % 256), byte(dots / 256)}
}

// Encode turns one command into the writes that express it, in order.
// Each write is sent and flushed separately.
func Encode(c Command) ([][]byte, error) {
	if seq, ok := fixedCommands[c.Type]; ok {
		return [][]byte{seq}, nil
	}

	switch c.Type {
	case Text, KoreanText, Alignment, QRCode:
		if c.Value == nil {
			return nil, ErrMissingValue
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, c.Type)
	}
	value := *c.Value

	switch c.Type {
	case Text:
		return [][]byte{[]byte(value)}, nil

	case Alignment:
		n, ok := alignments[value]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAlignment, value)
		}
		return [][]byte{{0x1B, 'a', n}}, nil

	case KoreanText:
		encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return [][]byte{selectKorean, encoded, selectDefault}, nil

	default: // QRCode
		return encodeQR(value)
	}
}

// encodeQR writes the centring and margin prefix, then the QR block. An empty
// value sends the prefix alone.
func encodeQR(value string) ([][]byte, error) {
	if len(value) > MaxQRPayload {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrQRTooLong, len(value), MaxQRPayload)
	}

	const margin = 0
	var b bytes.Buffer
	b.Write([]byte{0x1B, 'a', 0x01})
	b.Write([]byte{0x1D, 'L', margin * 8, 0x00})
	if value != "" {
		b.Write([]byte{0x1A, 'B', 0x02, byte(len(value)), 0x05})
		b.WriteString(value)
		b.Write([]byte{0x00, '\n'})
	}
	return [][]byte{b.Bytes()}, nil
}
