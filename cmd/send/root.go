package send

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/mavkit/mavconn/cmd/util"
	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport/common"
)

var (
	SendCmd = &cobra.Command{
		Use:   "send <endpoint>",
		Short: "Inject frames into a channel",
		Long: `Open a channel and send one or more frames, e.g.

  mavconn send --msgid 0 --payload 000000000000000000020300 tcp://localhost:5760
  mavconn send --msgid 0 --count 10 --interval 1s udp://0.0.0.0:0@localhost:14550`,
		Args:    cobra.ExactArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "msgid"
	SendCmd.Flags().Int(key, 0, cmdUtil.WrapString("Message id of the injected frame"))

	key = "payload"
	SendCmd.Flags().String(key, "", cmdUtil.WrapString("Frame payload as a hex string (empty for a zero-length payload)"))

	key = "count"
	SendCmd.Flags().Int(key, 1, cmdUtil.WrapString("How many frames to send"))

	key = "interval"
	SendCmd.Flags().Duration(key, 0, cmdUtil.WrapString("Delay between frames"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return cmdUtil.BindCommandFlags(cmd)
}

func run(_ *cobra.Command, args []string) error {
	conf := cmdUtil.GetChannelConfig()
	common.InitLoggers(conf.LogLevel)

	payload, err := hex.DecodeString(viper.GetString("payload"))
	if err != nil {
		return fmt.Errorf("invalid payload hex: %v", err)
	}
	if len(payload) > mavlink.MaxPayloadLen {
		return fmt.Errorf("payload too long: %d bytes (max %d)", len(payload), mavlink.MaxPayloadLen)
	}

	ch, err := cmdUtil.OpenChannel(args[0], conf)
	if err != nil {
		return fmt.Errorf("open %s: %v", args[0], err)
	}
	defer ch.Close()

	count := viper.GetInt("count")
	interval := viper.GetDuration("interval")

	for i := 0; i < count; i++ {
		msg := &mavlink.Message{
			Seq:     uint8(i),
			SysID:   conf.SystemID,
			CompID:  conf.ComponentID,
			MsgID:   uint8(viper.GetInt("msgid")),
			Payload: payload,
		}
		mavlink.Seal(msg)
		ch.SendMessage(msg, conf.SystemID, conf.ComponentID)

		if interval > 0 && i < count-1 {
			time.Sleep(interval)
		}
	}

	// give the transmit queue a moment to drain before teardown discards it
	time.Sleep(100 * time.Millisecond)

	fmt.Printf("sent %d frame(s) to %s\n", count, args[0])
	return nil
}
