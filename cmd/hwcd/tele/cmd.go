// Decode telemetry messages, paste hex payload from mosquitto_sub -F %x
package tele

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/cmd/hwcd/subcmd"
	"github.com/temoto/hwcomposer/helpers/cli"
	"github.com/temoto/hwcomposer/internal/state"
	tele_api "github.com/temoto/hwcomposer/internal/tele"
	"github.com/temoto/hwcomposer/log2"
)

const modName = "tele"

var Mod = subcmd.Mod{Name: modName, Usage: "decode telemetry payload: [report|command|response] HEX", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	log := log2.ContextValueLogger(ctx)
	cli.MainLoop(modName, func(line string) {
		s, err := Decode(line)
		if err != nil {
			log.Errorf("%s", errors.ErrorStack(err))
			return
		}
		if s != "" {
			log.Info(s)
		}
	}, func(prompt.Document) []prompt.Suggest { return nil })
	return nil
}

// Decode line "[kind] hex" into protobuf text. Default kind is report.
func Decode(line string) (string, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return "", nil
	}
	kind := "report"
	if len(words) > 1 {
		kind, words = words[0], words[1:]
	}
	input := words[0]
	// mosquitto_sub wrongly strips leading zero in hex format
	if len(input)%2 == 1 {
		input = "0" + input
	}
	b, err := hex.DecodeString(input)
	if err != nil {
		return "", errors.Annotate(err, "hex decode")
	}

	var pb proto.Message
	switch kind {
	case "report":
		pb = new(tele_api.Report)
	case "command":
		pb = new(tele_api.Command)
	case "response":
		pb = new(tele_api.Response)
	default:
		return "", errors.NotSupportedf("kind=%s", kind)
	}
	if err = proto.Unmarshal(b, pb); err != nil {
		return "", errors.Annotatef(err, "proto unmarshal %s", kind)
	}
	return proto.MarshalTextString(pb), nil
}
