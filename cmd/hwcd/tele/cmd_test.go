package tele

import (
	"encoding/hex"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele_api "github.com/temoto/hwcomposer/internal/tele"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	report, err := proto.Marshal(&tele_api.Report{ClientId: "hwc1", Frames: 42})
	require.NoError(t, err)
	cmd, err := proto.Marshal(&tele_api.Command{Id: 7, Kind: tele_api.Command_Blank, Display: 1})
	require.NoError(t, err)

	type Case struct {
		name   string
		line   string
		expect []string
		check  func(error) bool
	}
	cases := []Case{
		{"empty", "  ", nil, nil},
		{"report", hex.EncodeToString(report), []string{`client_id: "hwc1"`, "frames: 42"}, nil},
		{"command", "command " + hex.EncodeToString(cmd), []string{"id: 7", "kind: Blank", "display: 1"}, nil},
		{"hex", "zz", nil, func(e error) bool { return e != nil }},
		{"kind", "telemetry 00", nil, errors.IsNotSupported},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			s, err := Decode(c.line)
			if c.check != nil {
				assert.True(t, c.check(err), "err=%v", err)
				return
			}
			require.NoError(t, err)
			for _, e := range c.expect {
				assert.Contains(t, s, e)
			}
		})
	}
}
